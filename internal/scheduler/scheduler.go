package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Reloader is anything refreshed from the database on a schedule.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Run reloads target at each tick of the cron spec (e.g. "@every 1m") until ctx
// is done. A failed reload is logged and the previous state is kept.
func Run(ctx context.Context, spec, name string, target Reloader) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := target.Reload(ctx); err != nil {
			log.Warn().Err(err).Str("job", name).Msg("scheduler: reload failed")
			return
		}
		log.Debug().Str("job", name).Msg("scheduler: reloaded")
	})
	if err != nil {
		return fmt.Errorf("scheduler: invalid cron spec %q for %s: %w", spec, name, err)
	}

	c.Start()
	log.Info().Str("job", name).Str("cron", spec).Msg("scheduler: started")
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
