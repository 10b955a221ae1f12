package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/surflamp/surf-lamp-processor/internal/catalog"
	"github.com/surflamp/surf-lamp-processor/internal/models"
	"github.com/surflamp/surf-lamp-processor/internal/surf"
	"github.com/surflamp/surf-lamp-processor/pkg/client"
)

// Fetcher fetches one endpoint and decodes its JSON body. Failed fetches
// carry a client.FailureKind in their error chain.
type Fetcher interface {
	Fetch(ctx context.Context, ep catalog.Endpoint) (any, error)
}

// ConditionsStore is the database surface a cycle writes through.
type ConditionsStore interface {
	DevicesFor(ctx context.Context, location string) ([]models.Device, error)
	UpsertConditions(ctx context.Context, lampID int64, rec models.SurfRecord, ts time.Time) error
	TouchLamps(ctx context.Context, lampIDs []int64, ts time.Time) error
}

// DevicePusher delivers a merged record to one lamp. Optional; the
// orchestrator works push-free when it is nil.
type DevicePusher interface {
	Push(ctx context.Context, dev models.Device, rec models.SurfRecord) error
}

// Orchestrator runs one full pass over every active location: fetch sources
// in priority order, standardize, merge, persist, push. RunCycle is not
// reentrant; the scheduler's single-flight guard ensures one cycle at a time.
type Orchestrator struct {
	resolver *Resolver
	store    ConditionsStore
	fetcher  Fetcher
	pusher   DevicePusher
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	lastGood map[string]string // location -> last endpoint that contributed fields
}

func NewOrchestrator(resolver *Resolver, store ConditionsStore, fetcher Fetcher, pusher DevicePusher, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		store:    store,
		fetcher:  fetcher,
		pusher:   pusher,
		logger:   logger,
		now:      time.Now,
		lastGood: make(map[string]string),
	}
}

// RunCycle processes every active location once. The only fatal error is the
// active-location query itself failing; everything below that is contained
// to the location it happened in.
func (o *Orchestrator) RunCycle(ctx context.Context) (models.CycleResult, error) {
	started := o.now()
	result := models.CycleResult{
		CycleID:   uuid.NewString(),
		StartedAt: started,
	}
	log := o.logger.With(zap.String("cycle_id", result.CycleID))

	log.Info("Starting processing cycle")

	plans, err := o.resolver.Resolve(ctx)
	if err != nil {
		log.Error("Cycle aborted, could not resolve active locations", zap.Error(err))
		return result, err
	}
	if len(plans) == 0 {
		log.Warn("No active locations, nothing to process")
		result.Duration = o.now().Sub(started)
		return result, nil
	}

	cache := newFetchCache()
	for _, plan := range plans {
		result.Locations = append(result.Locations, o.processLocation(ctx, log, cache, plan))
	}

	result.Duration = o.now().Sub(started)
	persisted, skipped, failed := result.Counts()
	fetches, hits := cache.stats()
	log.Info("Processing cycle completed",
		zap.Duration("duration", result.Duration),
		zap.Int("locations", len(result.Locations)),
		zap.Int("persisted", persisted),
		zap.Int("skipped_empty", skipped),
		zap.Int("failed", failed),
		zap.Int("fetches", fetches),
		zap.Int("cache_hits", hits))
	return result, nil
}

func (o *Orchestrator) processLocation(ctx context.Context, log *zap.Logger, cache *fetchCache, plan Plan) (res models.LocationResult) {
	res = models.LocationResult{Location: plan.Location}

	// A misbehaving payload must not take the rest of the cycle down with it.
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while processing location",
				zap.String("location", plan.Location),
				zap.Any("panic", r))
			res.Outcome = models.OutcomeFailed
		}
	}()

	log.Info("Processing location",
		zap.String("location", plan.Location),
		zap.Int("sources", len(plan.Endpoints)))

	var records []models.SurfRecord
	reachable := 0
	lowConfidence := false

	for _, ep := range plan.Endpoints {
		payload, err := o.fetchCached(ctx, cache, ep)
		if err != nil {
			kind := client.KindOf(err)
			res.SourceFailures = append(res.SourceFailures, models.SourceFailure{
				Endpoint: ep.URL,
				Kind:     string(kind),
				Message:  err.Error(),
			})
			log.Warn("Source failed",
				zap.String("location", plan.Location),
				zap.String("endpoint", ep.URL),
				zap.String("kind", string(kind)),
				zap.Error(err))
			continue
		}
		reachable++

		rec, meta := surf.Standardize(payload, ep, o.now())
		if meta.LowConfidence {
			lowConfidence = true
		}
		if rec.Empty() {
			log.Warn("Source returned no usable fields",
				zap.String("location", plan.Location),
				zap.String("endpoint", ep.URL))
			continue
		}

		records = append(records, rec)
		res.Sources = append(res.Sources, ep.URL)
		o.rememberGoodSource(plan.Location, ep.URL)

		if m, _ := surf.Merge(records); m.Complete() {
			log.Debug("All fields collected, skipping remaining sources",
				zap.String("location", plan.Location))
			break
		}
	}

	merged, ok := surf.Merge(records)
	if !ok {
		if reachable == 0 {
			res.Outcome = models.OutcomeFailed
			log.Error("Every source failed",
				zap.String("location", plan.Location),
				zap.Int("sources", len(plan.Endpoints)))
		} else {
			res.Outcome = models.OutcomeSkippedEmpty
			log.Warn("No fields extracted, nothing to persist",
				zap.String("location", plan.Location),
				zap.Int("reachable_sources", reachable))
		}
		return res
	}

	res.Record = merged
	res.LowConfidence = lowConfidence
	if !merged.Complete() {
		log.Warn("Persisting partial record",
			zap.String("location", plan.Location),
			zap.Any("record", merged))
	}

	res.DevicesUpdated = o.deliver(ctx, log, plan.Location, merged)
	if res.DevicesUpdated == 0 {
		res.Outcome = models.OutcomeFailed
		return res
	}

	res.Outcome = models.OutcomePersisted
	log.Info("Location processed",
		zap.String("location", plan.Location),
		zap.Int("devices_updated", res.DevicesUpdated),
		zap.Strings("sources", res.Sources),
		zap.Bool("low_confidence", lowConfidence))
	return res
}

// fetchCached consults the per-cycle cache before going to the network.
func (o *Orchestrator) fetchCached(ctx context.Context, cache *fetchCache, ep catalog.Endpoint) (any, error) {
	if out, ok := cache.get(ep.URL); ok {
		o.logger.Debug("Using cached source outcome", zap.String("endpoint", ep.URL))
		return out.payload, out.err
	}

	payload, err := o.fetcher.Fetch(ctx, ep)
	cache.put(ep.URL, fetchOutcome{payload: payload, err: err})
	return payload, err
}

// deliver upserts the merged record for each of the location's devices, then
// pushes to them if a pusher is configured. The database always comes first;
// the dashboard must see fresh conditions even when every push fails.
func (o *Orchestrator) deliver(ctx context.Context, log *zap.Logger, location string, rec models.SurfRecord) int {
	devices, err := o.store.DevicesFor(ctx, location)
	if err != nil {
		log.Error("Failed to resolve devices",
			zap.String("location", location),
			zap.Error(err))
		return 0
	}
	if len(devices) == 0 {
		log.Warn("No devices registered anymore",
			zap.String("location", location))
		return 0
	}

	now := o.now()
	updated := make([]int64, 0, len(devices))
	for _, dev := range devices {
		if err := o.store.UpsertConditions(ctx, dev.LampID, rec, now); err != nil {
			log.Error("Failed to persist conditions",
				zap.String("location", location),
				zap.Int64("lamp_id", dev.LampID),
				zap.Error(err))
			continue
		}
		updated = append(updated, dev.LampID)
	}

	if len(updated) > 0 {
		if err := o.store.TouchLamps(ctx, updated, now); err != nil {
			log.Warn("Failed to stamp lamp sync time",
				zap.String("location", location),
				zap.Error(err))
		}
	}

	if o.pusher != nil {
		for _, dev := range devices {
			if err := o.pusher.Push(ctx, dev, rec); err != nil {
				log.Warn("Failed to push to device",
					zap.Int64("lamp_id", dev.LampID),
					zap.Int64("arduino_id", dev.ArduinoID),
					zap.Error(err))
			}
		}
	}

	return len(updated)
}

func (o *Orchestrator) rememberGoodSource(location, endpoint string) {
	o.mu.Lock()
	o.lastGood[location] = endpoint
	o.mu.Unlock()
}

// LastGoodSources reports, per location, the most recent endpoint that
// contributed fields. Observational only; it never reorders priorities.
func (o *Orchestrator) LastGoodSources() map[string]string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[string]string, len(o.lastGood))
	for loc, ep := range o.lastGood {
		out[loc] = ep
	}
	return out
}
