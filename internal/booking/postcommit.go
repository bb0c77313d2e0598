package booking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/practice-booking/internal/metrics"
)

// task is a side effect scheduled to run once the core transaction has
// committed.
type task struct {
	name string
	run  func(ctx context.Context) error
}

// postCommit collects side effects for one operation.
type postCommit []task

func (p *postCommit) add(name string, run func(ctx context.Context) error) {
	*p = append(*p, task{name: name, run: run})
}

// run executes the tasks in order.  Each task gets its own timeout and
// is detached from the caller's cancellation; a failure or panic is
// logged and counted, never returned.
func (p postCommit) run(ctx context.Context, log *zap.Logger, timeout time.Duration, bookingID uint64) {
	base := context.WithoutCancel(ctx)
	for _, t := range p {
		err := runTask(base, timeout, t)
		if err != nil {
			metrics.SideEffectFailures.WithLabelValues(t.name).Inc()
			log.Warn("post-commit task failed",
				zap.String("task", t.name),
				zap.Uint64("booking_id", bookingID),
				zap.Error(err))
		}
	}
}

func runTask(base context.Context, timeout time.Duration, t task) (err error) {
	ctx, cancel := context.WithTimeout(base, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.run(ctx)
}
