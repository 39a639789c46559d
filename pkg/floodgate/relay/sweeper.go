package relay

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically drops memory entries that were never consumed.
type Sweeper struct {
	cron *cron.Cron
}

func StartSweeper(s *MemoryStore, interval, maxAge time.Duration, logger *zap.Logger) (*Sweeper, error) {
	c := cron.New()
	schedule := fmt.Sprintf("@every %s", interval)
	if _, err := c.AddJob(schedule, cron.FuncJob(func() {
		if n := s.Sweep(maxAge); n > 0 {
			logger.Debug("swept stale relay entries",
				zap.Int("count", n),
			)
		}
	})); err != nil {
		return nil, err
	}
	c.Start()

	return &Sweeper{
		cron: c,
	}, nil
}

// Stop stops the sweeper and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
