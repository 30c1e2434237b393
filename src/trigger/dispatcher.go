package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Dispatcher fires triggers in the background. Callers never see the outcome;
// failures are logged.
type Dispatcher struct {
	trigger Trigger
	timeout time.Duration
	log     *logrus.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(trigger Trigger, timeout time.Duration, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{trigger: trigger, timeout: timeout, log: log}
}

// Dispatch starts the trigger for batchID and returns immediately. The trigger
// runs on its own context so it outlives the request that started it.
func (d *Dispatcher) Dispatch(batchID int) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		start := time.Now()
		entry := d.log.WithField("batch_id", batchID)
		if err := d.trigger.Trigger(ctx, batchID); err != nil {
			entry.WithError(err).Error("Failed to trigger batch processing")
			return
		}
		entry.WithField("duration", time.Since(start)).Info("Triggered batch processing")
	}()
}

// Wait blocks until every dispatched trigger has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
