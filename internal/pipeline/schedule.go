package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type Runner interface {
	Run(ctx context.Context) (*Report, error)
}

// RunScheduled runs r on the cron schedule spec (5 fields, UTC) until ctx is
// done. A tick that fires while the previous run is still going is skipped.
func RunScheduled(ctx context.Context, spec string, r Runner) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.StandardLogger()))),
	)

	_, err := c.AddFunc(spec, func() {
		if _, err := r.Run(ctx); err != nil {
			log.Errorf("scheduled update: %s", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule update %q: %w", spec, err)
	}

	c.Start()
	log.Infof("update scheduled: %s", spec)

	<-ctx.Done()
	// wait for a run in progress
	<-c.Stop().Done()
	log.Infoln("update schedule stopped")
	return nil
}
