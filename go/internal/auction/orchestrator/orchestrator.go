// Package orchestrator drives server-side auction expiry: it sleeps until
// the earliest bidding deadline across all sessions and hands expired
// sessions to a worker pool for resolution.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mattiabrun/fantalega/go/internal/auction"
	"github.com/mattiabrun/fantalega/go/internal/models"
)

// ExpiryEngine defines what the orchestrator needs from the auction engine.
type ExpiryEngine interface {
	NextDeadline(ctx context.Context) (*auction.NextDeadline, error)
	SessionsDue(ctx context.Context, limit int32) ([]uuid.UUID, error)
	ResolveExpired(ctx context.Context, sessionID uuid.UUID) (*models.MarketSession, error)
}

// Clock is the time source. Production uses clockwork.NewRealClock, tests a
// FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

type Orchestrator struct {
	engine     ExpiryEngine
	batchSize  int32
	clock      Clock
	wakeCh     chan struct{}
	instanceID string

	numWorkers int
	workCh     chan uuid.UUID

	// in-flight sessions are skipped so two workers never race one expiry
	inFlight   map[uuid.UUID]bool
	inFlightMu sync.Mutex
}

func New(engine ExpiryEngine, clock Clock, batchSize int32) *Orchestrator {
	numWorkers := 10
	return &Orchestrator{
		engine:     engine,
		batchSize:  batchSize,
		clock:      clock,
		wakeCh:     make(chan struct{}, 1),
		instanceID: uuid.New().String()[:8],
		numWorkers: numWorkers,
		workCh:     make(chan uuid.UUID, numWorkers*2),
		inFlight:   make(map[uuid.UUID]bool),
	}
}

// Wake signals the scheduler that a sooner deadline may exist. Non-blocking.
func (o *Orchestrator) Wake() {
	select {
	case o.wakeCh <- struct{}{}:
	default:
	}
}

// Run loops forever, sleeping until the next deadline and dispatching due
// sessions to the worker pool. Returns when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().
		Str("instance", o.instanceID).
		Int("workers", o.numWorkers).
		Msg("expiry scheduler started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < o.numWorkers; i++ {
		wg.Add(1)
		go o.worker(workerCtx, &wg, i)
	}
	defer func() {
		cancelWorkers()
		close(o.workCh)
		wg.Wait()
		log.Info().Str("instance", o.instanceID).Msg("expiry scheduler stopped")
	}()

	timer := o.clock.NewTimer(0)
	defer timer.Stop()

	const idlePollDuration = 5 * time.Second

	for {
		// drain a stale wake so a signal sent mid-iteration is not lost
		select {
		case <-o.wakeCh:
		default:
		}

		nd, err := o.engine.NextDeadline(ctx)
		if err != nil {
			log.Error().Err(err).Str("instance", o.instanceID).Msg("fetch next deadline failed")
			if !o.sleep(ctx, timer, time.Second) {
				return nil
			}
			continue
		}

		if nd.Deadline == nil {
			// no live auction anywhere; idle until woken or next poll
			if !o.sleep(ctx, timer, idlePollDuration) {
				return nil
			}
			continue
		}

		if wait := nd.Deadline.Sub(o.clock.Now()); wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.Chan():
			case <-ctx.Done():
				return nil
			case <-o.wakeCh:
				// a sooner deadline may have appeared; recompute
				continue
			}
		}

		due, err := o.engine.SessionsDue(ctx, o.batchSize)
		if err != nil {
			log.Error().Err(err).Str("instance", o.instanceID).Msg("fetch due sessions failed")
			if !o.sleep(ctx, timer, time.Second) {
				return nil
			}
			continue
		}

		for _, sessionID := range due {
			o.inFlightMu.Lock()
			if o.inFlight[sessionID] {
				o.inFlightMu.Unlock()
				continue
			}
			o.inFlight[sessionID] = true
			o.inFlightMu.Unlock()

			select {
			case o.workCh <- sessionID:
			case <-ctx.Done():
				o.clearInFlight(sessionID)
				return nil
			}
		}
	}
}

// sleep waits for d, a wake signal, or cancellation. Returns false on
// cancellation.
func (o *Orchestrator) sleep(ctx context.Context, timer clockwork.Timer, d time.Duration) bool {
	timer.Reset(d)
	select {
	case <-timer.Chan():
		return true
	case <-o.wakeCh:
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sessionID, ok := <-o.workCh:
			if !ok {
				return
			}
			if _, err := o.engine.ResolveExpired(ctx, sessionID); err != nil {
				log.Error().Err(err).
					Str("session_id", sessionID.String()).
					Int("worker_id", workerID).
					Msg("expiry resolution failed")
			}
			o.clearInFlight(sessionID)
		}
	}
}

func (o *Orchestrator) clearInFlight(sessionID uuid.UUID) {
	o.inFlightMu.Lock()
	delete(o.inFlight, sessionID)
	o.inFlightMu.Unlock()
}
