package supervisor

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-pm/internal/record"
)

// Dispatch runs the lifecycle operation named op on the records matched by
// token. It backs remote commands; an unknown op yields a single Invalid
// outcome.
func (s *Supervisor) Dispatch(ctx context.Context, op, token string) []Outcome {
	sel := record.ParseSelector(token)
	switch op {
	case OpStart:
		return s.Start(ctx, sel)
	case OpStop:
		return s.Stop(ctx, sel)
	case OpRestart:
		return s.Restart(ctx, sel)
	case OpReset:
		return s.Reset(ctx, sel)
	case OpRemove, "rm":
		return s.Remove(ctx, sel)
	}
	return []Outcome{{
		Op:       op,
		Code:     Invalid,
		Severity: Invalid.Severity(),
		ID:       record.NoID,
		PID:      record.NoPID,
		Message:  fmt.Sprintf("unknown operation %q", op),
	}}
}
