/*
Copyright 2026 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package processor runs the event processor workers: a bounded pool of
// goroutines pulling envelopes off pkg/bus consumer groups and driving
// each through validate, enrich, dual-write, orchestrate, and ack.
// Idempotency on event_id is enforced upstream by the DualWriteCoordinator;
// the pool's own job is deciding, per errclass.Outcome, whether a
// failure gets redelivered, dead-lettered, or acked anyway.
package processor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/baggageops/core/pkg/bus"
	"github.com/baggageops/core/pkg/coordinator"
	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/orchestrator"
	"github.com/baggageops/core/pkg/processor/errclass"
	shrderrors "github.com/baggageops/core/pkg/shared/errors"
)

// Config controls batch sizing and concurrency. Zero values fall back
// to DefaultConfig's defaults.
type Config struct {
	ConsumerName string
	Concurrency  int64
	BatchSize    int64
	BlockTimeout time.Duration
	StaleAfter   time.Duration // claim_stale's min-idle-time
}

// DefaultConfig returns sane worker defaults for a single consumer.
func DefaultConfig(consumerName string) Config {
	return Config{
		ConsumerName: consumerName,
		Concurrency:  16,
		BatchSize:    50,
		BlockTimeout: 5 * time.Second,
		StaleAfter:   30 * time.Second,
	}
}

// Processor pulls envelopes from a bus.Bus and drives them through the
// dual-write coordinator and an orchestrator.Driver, bounded by a
// golang.org/x/sync/semaphore-gated errgroup.Group rather than
// hand-rolled channels and WaitGroups.
type Processor struct {
	bus    bus.Bus
	coord  *coordinator.Coordinator
	driver *orchestrator.Driver
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

// New constructs a Processor. coord is used both for idempotent writes
// and as the read side for the bag snapshot each incoming event is
// replayed against.
func New(b bus.Bus, coord *coordinator.Coordinator, driver *orchestrator.Driver, cfg Config, logger *zap.Logger) *Processor {
	return &Processor{bus: b, coord: coord, driver: driver, cfg: cfg, now: time.Now, logger: logger}
}

// Run consumes until ctx is cancelled, returning ctx.Err() on exit. Each
// batch is drained by a bounded pool of goroutines before the next
// Consume call, so the worker never holds more than cfg.Concurrency
// envelopes in flight at once.
func (p *Processor) Run(ctx context.Context) error {
	sem := semaphore.NewWeighted(p.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		envelopes, err := p.bus.Consume(ctx, p.cfg.ConsumerName, p.cfg.BatchSize, p.cfg.BlockTimeout)
		if err != nil {
			p.logger.Warn("consume failed, backing off", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		if len(envelopes) == 0 {
			continue
		}

		if n, err := p.bus.ClaimStale(ctx, p.cfg.ConsumerName, p.cfg.StaleAfter); err != nil {
			p.logger.Warn("claim_stale failed", zap.Error(err))
		} else if n > 0 {
			p.logger.Info("reclaimed stale messages", zap.Int("count", n))
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, env := range envelopes {
			env := env
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			g.Go(func() error {
				defer sem.Release(1)
				p.processOne(gctx, env)
				return nil
			})
		}
		_ = g.Wait()
	}
}

// processOne drives one envelope through validate, enrich, dual-write,
// orchestrate, and ack/dlq/redeliver. It never returns an error itself:
// every failure path is fully resolved (acked, dead-lettered, or left
// for redelivery) before it returns.
func (p *Processor) processOne(ctx context.Context, env bus.Envelope) {
	event := env.Event

	if err := validate(event); err != nil {
		p.resolve(ctx, env, shrderrors.Permanent(err))
		return
	}

	bag, err := p.coord.GetBag(ctx, event.BagTag)
	if err != nil {
		// GetBag's own error is an unclassified shrderrors.OperationError;
		// a failed read is presumed transient (connection blip, pool
		// exhaustion) rather than defaulting to errclass's fail-closed DLQ.
		p.resolve(ctx, env, shrderrors.Transient(err))
		return
	}

	var fromStatus domain.BagStatus
	if bag != nil {
		fromStatus = bag.Status
	}

	severity := domain.SeverityLow
	if ap, ok := event.Payload.(domain.AnomalyPayload); ok {
		severity = ap.Severity
	}

	newStatus, terr := orchestrator.Transition(fromStatus, event.EventType, severity)
	if terr != nil {
		p.resolve(ctx, env, shrderrors.Permanent(terr))
		return
	}

	if bag == nil {
		bag = domain.NewBag(event.BagTag, p.now())
		if err := p.coord.UpsertBag(ctx, bag); err != nil {
			p.resolve(ctx, env, err)
			return
		}
	}

	rawPayload, err := domain.MarshalEvent(event)
	if err != nil {
		p.resolve(ctx, env, shrderrors.Permanent(err))
		return
	}

	scan := domain.ScanEvent{
		EventID:    event.EventID,
		BagTag:     event.BagTag,
		ScanType:   event.EventType,
		Location:   event.Location,
		Timestamp:  event.Timestamp,
		RawPayload: rawPayload,
	}

	result, err := p.coord.RecordEvent(ctx, scan, newStatus, event.Location, p.now())
	if err != nil {
		p.resolve(ctx, env, err)
		return
	}
	if result.AlreadyApplied {
		p.ack(ctx, env)
		return
	}

	bag.Status = newStatus
	bag.CurrentLocation = event.Location

	openCase, err := p.coord.GetOpenCaseForBag(ctx, event.BagTag)
	if err != nil {
		p.resolve(ctx, env, shrderrors.Transient(err))
		return
	}

	sc := orchestrator.StepContext{Ctx: ctx, Bag: *bag, Event: event, Case: openCase}
	outcomes := p.driver.Run(sc)

	var stepErrs []error
	for _, o := range outcomes {
		if o.Kind == orchestrator.DecisionDefer && o.Err != nil {
			stepErrs = append(stepErrs, fmt.Errorf("step %s: %w", o.Step, o.Err))
		}
	}
	if len(stepErrs) > 0 {
		// Workflow steps have already exhausted their own in-call retry
		// schedule (orchestrator.Driver). A deferred step here is
		// transient from the processor's point of view: redelivery gives
		// the next attempt a fresh in-call retry budget.
		p.resolve(ctx, env, shrderrors.Transient(shrderrors.Chain(stepErrs...)))
		return
	}

	p.ack(ctx, env)
}

// resolve applies errclass.Decide to err and acts on the outcome.
func (p *Processor) resolve(ctx context.Context, env bus.Envelope, err error) {
	switch errclass.Decide(err, env.DeliveryCount) {
	case errclass.OutcomeAck:
		p.ack(ctx, env)
	case errclass.OutcomeDLQ:
		if dlqErr := p.bus.MoveToDLQ(ctx, env.IngestID, err.Error()); dlqErr != nil {
			p.logger.Error("failed to dead-letter message", zap.String("ingest_id", env.IngestID), zap.Error(dlqErr))
		}
	case errclass.OutcomeRedeliver:
		p.logger.Info("leaving message unacked for redelivery",
			zap.String("ingest_id", env.IngestID), zap.Int64("delivery_count", env.DeliveryCount), zap.Error(err))
	}
}

func (p *Processor) ack(ctx context.Context, env bus.Envelope) {
	if err := p.bus.Ack(ctx, env.IngestID); err != nil {
		p.logger.Error("failed to ack message", zap.String("ingest_id", env.IngestID), zap.Error(err))
	}
}

// validate re-checks structural correctness (bag_tag shape, event_id
// presence) on an already-parsed Event before it drives any write. The
// ingest-service's HTTP boundary validates the wire DTO; this is the
// worker's own defense against a malformed message that slipped past
// the bus (a hand-crafted replay, a bug in an older producer version).
func validate(e domain.Event) error {
	if e.EventID == "" {
		return fmt.Errorf("event missing event_id")
	}
	if !domain.ValidBagTag(e.BagTag) {
		return fmt.Errorf("invalid bag_tag %q", e.BagTag)
	}
	if e.EventType == "" {
		return fmt.Errorf("event missing event_type")
	}
	return nil
}
