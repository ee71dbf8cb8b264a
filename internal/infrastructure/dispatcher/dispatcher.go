// Package dispatcher drains the outbox and delivers side effects to the
// party and smart-ops services.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/sbms/trading/internal/domain"
	"github.com/sbms/trading/internal/infrastructure/metrics"
	"github.com/sbms/trading/internal/usecase"
)

// Dispatcher polls the outbox and pushes each pending event to the
// service it targets. Balance adjustments are retried until they land;
// offer usage events are abandoned once their attempts run out.
type Dispatcher struct {
	outboxRepo usecase.OutboxRepository
	parties    usecase.PartyLedgerClient
	offers     usecase.OfferServiceClient
	logger     zerolog.Logger
	metrics    *metrics.Metrics

	batchSize     int
	interval      time.Duration
	maxAttempts   int
	retryInterval time.Duration
	retention     time.Duration
}

// Config for Dispatcher.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Parties    usecase.PartyLedgerClient
	Offers     usecase.OfferServiceClient
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics

	BatchSize     int           // Number of events to fetch per batch
	Interval      time.Duration // Polling interval
	MaxAttempts   int           // Attempts before a best-effort event is dropped
	RetryInterval time.Duration // Initial backoff between in-batch delivery retries
	Retention     time.Duration // How long delivered events are kept; 0 keeps them forever
}

// New creates a new Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 200 * time.Millisecond
	}

	return &Dispatcher{
		outboxRepo:    cfg.OutboxRepo,
		parties:       cfg.Parties,
		offers:        cfg.Offers,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		batchSize:     cfg.BatchSize,
		interval:      cfg.Interval,
		maxAttempts:   cfg.MaxAttempts,
		retryInterval: cfg.RetryInterval,
		retention:     cfg.Retention,
	}
}

// Start runs the dispatch loop until the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info().
		Int("batch_size", d.batchSize).
		Dur("interval", d.interval).
		Msg("outbox dispatcher started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// Drain immediately on start
	if err := d.processEvents(ctx); err != nil {
		d.logger.Error().Err(err).Msg("failed to process outbox batch")
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("outbox dispatcher shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := d.processEvents(ctx); err != nil {
				d.logger.Error().Err(err).Msg("failed to process outbox batch")
			}
			d.prune(ctx)
		}
	}
}

// processEvents fetches and delivers one batch of pending events.
func (d *Dispatcher) processEvents(ctx context.Context) error {
	events, err := d.outboxRepo.GetUnpublished(ctx, d.batchSize)
	if err != nil {
		return fmt.Errorf("fetch pending events: %w", err)
	}

	if d.metrics != nil {
		d.metrics.OutboxPending.Set(float64(len(events)))
	}
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		d.dispatch(ctx, event)
	}

	return nil
}

// dispatch delivers one event, updating its outbox row according to the
// outcome. Events stay in the batch order they were written in, so a
// revert always reaches the downstream service before its reapply.
func (d *Dispatcher) dispatch(ctx context.Context, event *domain.OutboxEvent) {
	err := d.deliverWithRetry(ctx, event)
	if err == nil {
		if markErr := d.outboxRepo.MarkPublished(ctx, event.ID, time.Now().UTC()); markErr != nil {
			d.logger.Error().Err(markErr).
				Str("event_id", event.ID).
				Msg("failed to mark event published")
			return
		}
		if d.metrics != nil {
			d.metrics.OutboxDispatched.WithLabelValues(string(event.EffectType)).Inc()
		}
		d.logger.Debug().
			Str("event_id", event.ID).
			Str("effect", string(event.EffectType)).
			Msg("event delivered")
		return
	}

	if d.metrics != nil {
		d.metrics.OutboxFailures.WithLabelValues(string(event.EffectType)).Inc()
	}
	if incErr := d.outboxRepo.IncrementAttempts(ctx, event.ID); incErr != nil {
		d.logger.Error().Err(incErr).
			Str("event_id", event.ID).
			Msg("failed to record delivery attempt")
	}

	attempts := event.Attempts + 1
	permanent := isPermanent(err)

	switch {
	case permanent:
		// A payload that cannot be decoded will never deliver. Drop it
		// so it stops blocking the queue, loudly if it carried money.
		d.drop(ctx, event, err, attempts)
	case event.EffectType.Critical():
		// Balance adjustments are never abandoned. Keep the row pending
		// and escalate once the attempt budget is spent.
		evt := d.logger.Warn()
		if attempts >= d.maxAttempts {
			evt = d.logger.Error()
		}
		evt.Err(err).
			Str("event_id", event.ID).
			Str("idempotency_key", event.IdempotencyKey).
			Int("attempts", attempts).
			Msg("balance adjustment undelivered")
	case attempts >= d.maxAttempts:
		d.drop(ctx, event, err, attempts)
	default:
		d.logger.Warn().Err(err).
			Str("event_id", event.ID).
			Str("effect", string(event.EffectType)).
			Int("attempts", attempts).
			Msg("event delivery failed, will retry")
	}
}

func (d *Dispatcher) drop(ctx context.Context, event *domain.OutboxEvent, cause error, attempts int) {
	evt := d.logger.Warn()
	if event.EffectType.Critical() {
		evt = d.logger.Error()
	}
	evt.Err(cause).
		Str("event_id", event.ID).
		Str("effect", string(event.EffectType)).
		Int("attempts", attempts).
		Msg("abandoning undeliverable event")

	if err := d.outboxRepo.MarkPublished(ctx, event.ID, time.Now().UTC()); err != nil {
		d.logger.Error().Err(err).
			Str("event_id", event.ID).
			Msg("failed to mark abandoned event")
		return
	}
	if d.metrics != nil {
		d.metrics.OutboxDropped.WithLabelValues(string(event.EffectType)).Inc()
	}
}

// deliverWithRetry retries transient delivery failures within the batch
// before the event falls back to the slower tick-based retry.
func (d *Dispatcher) deliverWithRetry(ctx context.Context, event *domain.OutboxEvent) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.retryInterval
	bo.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := d.deliver(ctx, event)
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx))
}

func (d *Dispatcher) deliver(ctx context.Context, event *domain.OutboxEvent) error {
	switch event.EffectType {
	case domain.EffectBalanceAdjust:
		var p domain.BalanceAdjustPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return &permanentError{fmt.Errorf("decode balance payload: %w", err)}
		}
		return d.parties.AdjustBalance(ctx, p.PartyID, p.Amount, p.BearerToken)

	case domain.EffectOfferRedemption:
		var p domain.OfferRedemptionPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return &permanentError{fmt.Errorf("decode redemption payload: %w", err)}
		}
		return d.offers.RecordRedemption(ctx, p)

	case domain.EffectOfferRollback:
		var p domain.OfferRollbackPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return &permanentError{fmt.Errorf("decode rollback payload: %w", err)}
		}
		return d.offers.RollbackRedemption(ctx, p)

	default:
		return &permanentError{fmt.Errorf("unknown effect type %q", event.EffectType)}
	}
}

func (d *Dispatcher) prune(ctx context.Context) {
	if d.retention <= 0 {
		return
	}
	if err := d.outboxRepo.DeletePublished(ctx, time.Now().UTC().Add(-d.retention)); err != nil {
		d.logger.Error().Err(err).Msg("failed to prune delivered events")
	}
}

// permanentError marks a failure no amount of retrying can fix, such as
// an undecodable payload.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func isPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}
