package outbox

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron"
)

// Retrier periodically retries failed outbox jobs.
type Retrier struct {
	cron *cron.Cron
}

// StartRetrier schedules RetryDue on a cron spec such as "@every 1m".
func StartRetrier(d *Dispatcher, schedule string, timeout time.Duration) (*Retrier, error) {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	c := cron.New()
	err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		n, err := d.RetryDue(ctx)
		if err != nil {
			log.Println("[OUTBOX] [ERROR] retry sweep failed:", err)
			return
		}
		if n > 0 {
			log.Println("[OUTBOX] [INFO] retried jobs:", n)
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	log.Println("[OUTBOX] [INFO] retrier scheduled:", schedule)
	return &Retrier{cron: c}, nil
}

func (r *Retrier) Stop() {
	r.cron.Stop()
}
