package keeper

import (
	"errors"
	"time"

	"raffle/internal/services"

	"github.com/google/logger"
)

// Keeper polls the raffle's upkeep predicate and triggers the draw
// when it becomes eligible. It plays the role of the external
// automation layer: it holds no privileges the raffle relies on, and a
// lost race with another trigger is harmless.
type Keeper struct {
	service  *services.RaffleService
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// New creates a keeper polling at the given interval.
func New(service *services.RaffleService, interval time.Duration) *Keeper {
	return &Keeper{
		service:  service,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop in the background.
func (k *Keeper) Start() {
	go k.run()
}

// Stop terminates the poll loop and waits for it to exit.
func (k *Keeper) Stop() {
	close(k.stop)
	<-k.done
}

func (k *Keeper) run() {
	defer close(k.done)
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-k.stop:
			return
		case <-ticker.C:
			k.poll()
		}
	}
}

func (k *Keeper) poll() {
	needed, _ := k.service.CheckUpkeep()
	if !needed {
		return
	}
	requestID, err := k.service.PerformUpkeep(nil)
	if err != nil {
		// Someone else may have triggered the draw between the check
		// and the trigger.
		var notNeeded *services.UpkeepNotNeededError
		if errors.As(err, &notNeeded) {
			return
		}
		logger.Errorf("Upkeep trigger failed: %v", err)
		return
	}
	logger.Infof("Upkeep triggered draw, request id %d", requestID)
}
