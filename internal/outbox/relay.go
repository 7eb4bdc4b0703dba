package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Relay retries due outbox events on a cron schedule.
type Relay struct {
	outbox  *Outbox
	cron    *cron.Cron
	timeout time.Duration
}

// NewRelay schedules RetryDue with a cron spec such as "@every 30s".
func NewRelay(o *Outbox, schedule string) (*Relay, error) {
	logger := cron.PrintfLogger(log.StandardLogger())
	r := &Relay{
		outbox:  o,
		cron:    cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		timeout: 30 * time.Second,
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid outbox schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Relay) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	ok, failed, err := r.outbox.RetryDue(ctx)
	if err != nil {
		log.WithError(err).Error("Outbox relay run failed")
		return
	}
	if ok+failed > 0 {
		log.WithFields(log.Fields{"succeeded": ok, "failed": failed}).Info("Outbox relay run completed")
	}
}

// Start runs the schedule in the background.
func (r *Relay) Start() {
	r.cron.Start()
	log.Info("Outbox relay started")
}

// Stop halts the schedule and waits for a running retry to finish or ctx to expire.
func (r *Relay) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warn("Outbox relay did not stop in time")
	}
}
