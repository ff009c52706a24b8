// Package schedule re-runs a batch job on a cron spec until its context
// is canceled.
package schedule

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Job is one batch run. It receives a context that is not canceled when
// the scheduler stops, so a started run always finishes.
type Job func(ctx context.Context) error

// Options controls a scheduler.
type Options struct {
	// Spec is a five-field cron expression or a descriptor like @hourly.
	Spec string
	// RunAtStart runs the job once immediately after starting.
	RunAtStart bool
}

// Validate reports whether spec is a schedule the scheduler accepts.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// any running job before returning. Runs never overlap; a tick that fires
// while the previous run is still going is skipped.
func Run(ctx context.Context, opts Options, job Job) error {
	if err := Validate(opts.Spec); err != nil {
		return err
	}

	jobCtx := context.WithoutCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(zerologAdapter{})))
	id, err := c.AddFunc(opts.Spec, func() {
		log.Info().Str("schedule", opts.Spec).Msg("scheduled run starting")
		if err := job(jobCtx); err != nil {
			log.Error().Err(err).Msg("scheduled run failed")
			return
		}
		log.Info().Msg("scheduled run finished")
	})
	if err != nil {
		return fmt.Errorf("adding job: %w", err)
	}

	c.Start()
	log.Info().Str("schedule", opts.Spec).Time("next", c.Entry(id).Next).Msg("scheduler started")

	var initial sync.WaitGroup
	if opts.RunAtStart {
		initial.Add(1)
		go func() {
			defer initial.Done()
			c.Entry(id).WrappedJob.Run()
		}()
	}

	<-ctx.Done()
	log.Info().Msg("stopping scheduler, waiting for running job")
	<-c.Stop().Done()
	initial.Wait()
	log.Info().Msg("scheduler stopped")
	return nil
}

// zerologAdapter routes cron's own logging through zerolog.
type zerologAdapter struct{}

func (zerologAdapter) Info(msg string, keysAndValues ...any) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (zerologAdapter) Error(err error, msg string, keysAndValues ...any) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
