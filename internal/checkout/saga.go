package checkout

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// step is one write of the checkout sequence. undo reverses it and may be
// nil when a later compensation already covers the write.
type step struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// saga runs steps in order and remembers the completed ones so they can be
// compensated in reverse when a later step fails.
type saga struct {
	tracer trace.Tracer
	logger *slog.Logger
	done   []step
}

func (s *saga) run(ctx context.Context, st step) error {
	ctx, span := s.tracer.Start(ctx, "checkout."+st.name)
	defer span.End()

	if err := st.do(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.done = append(s.done, st)
	return nil
}

// compensate undoes every completed step, newest first. It keeps going
// when an undo fails and returns how many undo actions ran. Request
// cancellation does not stop it.
func (s *saga) compensate(ctx context.Context) (ran int, failed int) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := s.tracer.Start(ctx, "checkout.compensate")
	defer span.End()

	for i := len(s.done) - 1; i >= 0; i-- {
		st := s.done[i]
		if st.undo == nil {
			continue
		}
		ran++
		if err := st.undo(ctx); err != nil {
			failed++
			span.RecordError(err)
			s.logger.Error("compensation failed", "step", st.name, "error", err)
		}
	}
	s.done = nil

	if failed > 0 {
		span.SetStatus(codes.Error, "compensation incomplete")
	}
	return ran, failed
}
