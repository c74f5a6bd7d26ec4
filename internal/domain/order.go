package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// ParseOrderStatus accepts exactly the four known statuses.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch status := OrderStatus(s); status {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return status, nil
	default:
		return "", Invalid("Invalid status")
	}
}

type OrderLine struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Product         *ProductSummary `json:"product,omitempty"`
}

type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Items       []OrderLine     `json:"items,omitempty"`
}

// LinesFromCart turns a cart snapshot into order lines, carrying each
// price snapshot over unchanged.
func LinesFromCart(orderID string, cart []CartLine) []OrderLine {
	lines := make([]OrderLine, 0, len(cart))
	for _, c := range cart {
		lines = append(lines, OrderLine{
			OrderID:         orderID,
			ProductID:       c.ProductID,
			Quantity:        c.Quantity,
			PriceAtPurchase: c.PriceAtAddition,
		})
	}
	return lines
}

// OrderTotal is Σ quantity × priceAtPurchase.
func OrderTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.PriceAtPurchase.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}
