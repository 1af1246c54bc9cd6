package scheduler

import (
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/quotagate/internal/sweeper"
	"github.com/robfig/cron/v3"
)

// A Controller is an Iversion Of Control pattern used to init the scheduler package.
type Controller struct {
	Logger        logger.Logger
	Sweeper       *sweeper.Sweeper
	Specification string
}

// Start lauches the scheduler asynchronously.
func Start(c Controller) {
	cron := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	log := c.Logger.WithPrefix("[scheduler]")

	_, err := cron.AddFunc(c.Specification, func() {
		result, err := c.Sweeper.Sweep(time.Now())
		if err != nil {
			log.Error(err)
			return
		}

		if result.Deleted > 0 {
			log.Infof("retention sweep: %d objects, %d bytes freed", result.Deleted, result.FreedBytes)
		}
	})
	if err != nil {
		panic(err)
	}
	log.Info("Retention sweep task registred")

	cron.Start()
	log.Info("Scheduler is running")
}
