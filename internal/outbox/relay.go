package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Relay moves pending outbox records to a Publisher in id order. The first
// record that fails to publish and everything after it stay pending and are
// retried on the next tick.
type Relay struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	batchSize int
}

func NewRelay(store Store, publisher Publisher, interval time.Duration, batchSize int) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{store: store, publisher: publisher, interval: interval, batchSize: batchSize}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Int("batch", r.batchSize).Msg("outbox: relay started")
	for {
		r.Flush(ctx)
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox: relay stopped")
			return
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch and returns how many records were marked sent.
func (r *Relay) Flush(ctx context.Context) int {
	records, err := r.store.FetchPending(ctx, r.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("outbox: failed to fetch pending events")
		}
		return 0
	}

	if len(records) == 0 {
		return 0
	}

	events := make([]Event, 0, len(records))
	for _, rec := range records {
		events = append(events, rec.Event)
	}

	// Records after the first failure stay pending so delivery keeps outbox order.
	published, err := r.publisher.Publish(ctx, events)
	published = min(max(published, 0), len(records))
	if err != nil {
		event := log.Warn().Err(err).Int("published", published)
		if published < len(records) {
			event = event.Int64("outbox_id", records[published].ID).Str("topic", records[published].Event.Topic)
		}
		event.Msg("outbox: publish failed, will retry")
	}

	sent := 0
	for _, rec := range records[:published] {
		if err := r.store.MarkSent(ctx, rec.ID); err != nil {
			log.Error().Err(err).Int64("outbox_id", rec.ID).Msg("outbox: failed to mark event sent")
			break
		}
		sent++
	}
	if sent > 0 {
		log.Debug().Int("sent", sent).Msg("outbox: events relayed")
	}
	return sent
}
