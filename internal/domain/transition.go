package domain

import "fmt"

// TransitionPolicy decides whether an order may move from one status to another.
type TransitionPolicy func(from, to OrderStatus) error

// AnyTransition accepts every move between known statuses, including
// backward ones such as completed -> pending.
func AnyTransition(_, _ OrderStatus) error {
	return nil
}

var forward = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled},
}

// ForwardTransitions follows pending -> processing -> completed, with
// cancelled reachable from pending or processing. Re-applying the current
// status is allowed.
func ForwardTransitions(from, to OrderStatus) error {
	if from == to {
		return nil
	}
	for _, next := range forward[from] {
		if next == to {
			return nil
		}
	}
	return Invalid(fmt.Sprintf("Cannot change order status from %s to %s", from, to))
}
