package agenda

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSyncInterval is how often a context polls for writes it may have missed.
const DefaultSyncInterval = 15 * time.Second

// Refresher re-reads state when the stored version moved.
type Refresher interface {
	Refresh(ctx context.Context) (bool, error)
}

// Poller runs the version poll for every registered Refresher on a cron schedule.
// It stands in for the focus-regained re-read of a browser tab.
type Poller struct {
	cron    *cron.Cron
	targets map[string]Refresher
	timeout time.Duration
	log     *zap.Logger
}

// NewPoller creates a stopped poller.
func NewPoller(log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		targets: map[string]Refresher{},
		timeout: 10 * time.Second,
		log:     log,
	}
}

// Every schedules an additional job at the given interval.
// PRE: interval >= 1s; must be called before Start
func (p *Poller) Every(interval time.Duration, name string, fn func(ctx context.Context) error) error {
	if interval < time.Second {
		return errors.Errorf("poll interval %s is below one second", interval)
	}
	_, err := p.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			p.log.Warn("scheduled_job_failed", zap.String("job", name), zap.Error(err))
		}
	})
	return errors.Wrapf(err, "schedule %s", name)
}

// Watch polls target every interval.
// PRE: must be called before Start
func (p *Poller) Watch(name string, target Refresher, interval time.Duration) error {
	p.targets[name] = target
	return p.Every(interval, name, func(ctx context.Context) error {
		changed, err := target.Refresh(ctx)
		if changed {
			p.log.Debug("poll_picked_up_change", zap.String("target", name))
		}
		return err
	})
}

// PollNow refreshes every watched target once, the way a regained focus would.
// POST: returns the first error; every target is still polled
func (p *Poller) PollNow(ctx context.Context) error {
	var first error
	for name, t := range p.targets {
		if _, err := t.Refresh(ctx); err != nil {
			p.log.Warn("poll_failed", zap.String("target", name), zap.Error(err))
			if first == nil {
				first = errors.Wrapf(err, "poll %s", name)
			}
		}
	}
	return first
}

// Start runs the schedule in the background.
func (p *Poller) Start() { p.cron.Start() }

// Stop halts the schedule and waits for running jobs.
func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
}
