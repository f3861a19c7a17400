/*
scheduler.go - Nightly sweep and penalty accrual scheduler

PURPOSE:
  Runs the overdue sweep and the penalty accrual engine on a cron
  schedule so schedules converge without operator action. Both jobs are
  idempotent per calendar day, so an extra run (manual trigger, restart)
  is harmless.

CONFIGURATION:
  - CronSpec: standard 5-field cron expression (default: 02:00 daily)
  - Enabled:  whether the scheduler starts at all

USAGE:
  scheduler := NewJobScheduler(sweeper, engine, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - sweep/sweep.go: overdue sweep
  - penalty/accrual.go: penalty accrual engine
*/
package api

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/warp/lease-engine/penalty"
	"github.com/warp/lease-engine/sweep"
)

// DefaultCronSpec runs the nightly jobs at 02:00 server time.
const DefaultCronSpec = "0 2 * * *"

// JobScheduler drives the nightly sweep and accrual jobs.
type JobScheduler struct {
	Sweeper   *sweep.Sweeper
	Penalties *penalty.Engine
	Log       *logrus.Logger
	CronSpec  string
	Enabled   bool

	mu   sync.Mutex
	cron *cron.Cron
}

// NewJobScheduler creates a scheduler with the default nightly spec.
func NewJobScheduler(sweeper *sweep.Sweeper, penalties *penalty.Engine, log *logrus.Logger) *JobScheduler {
	return &JobScheduler{
		Sweeper:   sweeper,
		Penalties: penalties,
		Log:       log,
		CronSpec:  DefaultCronSpec,
		Enabled:   true,
	}
}

// Start registers the cron entries and begins scheduling.
func (js *JobScheduler) Start() error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if !js.Enabled {
		js.Log.Info("scheduler disabled, not starting")
		return nil
	}
	if js.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(js.CronSpec, js.RunNow); err != nil {
		return err
	}
	c.Start()
	js.cron = c

	js.Log.WithField("spec", js.CronSpec).Info("scheduler started")
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (js *JobScheduler) Stop() {
	js.mu.Lock()
	defer js.mu.Unlock()

	if js.cron == nil {
		return
	}
	<-js.cron.Stop().Done()
	js.cron = nil
	js.Log.Info("scheduler stopped")
}

// RunNow executes the sweep then the accrual pass immediately.
func (js *JobScheduler) RunNow() {
	ctx := context.Background()

	sweepResult, err := js.Sweeper.Run(ctx)
	if err != nil {
		js.Log.WithError(err).Error("nightly sweep failed")
	} else {
		js.Log.WithFields(logrus.Fields{
			"scanned": sweepResult.Scanned,
			"flipped": sweepResult.Flipped,
			"errors":  len(sweepResult.Errors),
		}).Info("nightly sweep completed")
	}

	accrualResult, err := js.Penalties.RunAll(ctx)
	if err != nil {
		js.Log.WithError(err).Error("nightly accrual failed")
		return
	}
	js.Log.WithFields(logrus.Fields{
		"scanned": accrualResult.Scanned,
		"accrued": accrualResult.Accrued,
		"total":   accrualResult.TotalAccrued.StringFixed(2),
		"errors":  len(accrualResult.Errors),
	}).Info("nightly accrual completed")
}
