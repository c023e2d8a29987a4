package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/solardesk/webhookd/internal/config"
	"github.com/solardesk/webhookd/internal/storage"
)

// Sweeper re-attempts deliveries whose scheduled retry time has arrived. It
// can run embedded on a ticker (Start/Stop) or one-shot via ProcessRetries
// for an external scheduler.
type Sweeper struct {
	store    storage.Storage
	engine   *Engine
	batch    int
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewSweeper(cfg config.DeliveryConfig, store storage.Storage, engine *Engine, log zerolog.Logger) *Sweeper {
	batch := cfg.SweepBatch
	if batch <= 0 {
		batch = 100
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Sweeper{
		store:    store,
		engine:   engine,
		batch:    batch,
		interval: interval,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		stop:     make(chan struct{}),
	}
}

// ProcessRetries attempts every due retrying delivery in the current batch,
// sequentially. Records whose next_retry_at has not arrived are excluded by
// the query, so calling this early is a no-op for them.
func (s *Sweeper) ProcessRetries(ctx context.Context) (int, error) {
	due, err := s.store.GetDueRetries(ctx, s.now(), s.batch)
	if err != nil {
		return 0, err
	}
	for _, d := range due {
		s.engine.Attempt(ctx, d)
	}
	return len(due), nil
}

func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Int("batch", s.batch).Msg("starting retry sweeper")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.ProcessRetries(ctx)
				if err != nil {
					s.log.Error().Err(err).Msg("retry sweep failed")
					continue
				}
				if n > 0 {
					s.log.Debug().Int("count", n).Msg("retry sweep processed deliveries")
				}
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
	s.log.Info().Msg("retry sweeper stopped")
}
