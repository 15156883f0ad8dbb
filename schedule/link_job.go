// Package schedule runs the linker repeatedly on a cron schedule.
package schedule

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Job is one linker run
type Job func(ctx context.Context)

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec checks a six-field (seconds first) cron expression
func ValidateSpec(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// RunLinkSchedule calls job on every tick of spec until ctx is done.
// A tick that fires while the previous run is still going is skipped.
// With runNow the job also runs once before the first tick.
func RunLinkSchedule(ctx context.Context, spec string, runNow bool, job Job) error {
	if err := ValidateSpec(spec); err != nil {
		return err
	}

	logger := cron.PrintfLogger(log.StandardLogger())
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(spec, func() { job(ctx) }); err != nil {
		return fmt.Errorf("failed to add link job: %w", err)
	}

	if runNow {
		job(ctx)
	}

	log.Infof("Link schedule started: %s", spec)
	c.Start()

	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	log.Info("Link schedule stopped")
	return nil
}
