package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/example/maintrack/internal/apperrors"
	"github.com/example/maintrack/internal/metrics"
	"github.com/example/maintrack/internal/models"
)

// StageSyncer persists a stage change at the system of record. It must be safe to call
// concurrently for distinct ids and must eventually return.
type StageSyncer interface {
	PersistStageChange(ctx context.Context, requestID string, stage models.Stage) error
}

// Loader supplies the authoritative request collection, display fields included.
type Loader interface {
	LoadRequests(ctx context.Context) ([]models.MaintenanceRequest, error)
}

// EquipmentNotifier is told when a request reaches scrap. The result is advisory.
type EquipmentNotifier interface {
	EquipmentUnusable(ctx context.Context, equipmentID, requestID string) error
}

// Store is the slice of the request store the engine writes through.
type Store interface {
	Get(id string) (models.MaintenanceRequest, error)
	Patch(id string, p models.RequestPatch) (models.MaintenanceRequest, error)
	ReplaceAll(records []models.MaintenanceRequest) error
}

// Recorder receives transition telemetry. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveTransition(outcome string)
	ObserveSync(d time.Duration, err error)
	ObserveReload(err error)
}

// Params groups Engine dependencies. Store and Syncer are required.
type Params struct {
	Store    Store
	Syncer   StageSyncer
	Loader   Loader
	Notifier EquipmentNotifier
	Metrics  Recorder
	Logger   *zap.Logger
	Now      func() time.Time
}

// Engine mediates every stage change of a maintenance request. Changes are applied
// to the store optimistically, confirmed with the StageSyncer and rolled back to the
// exact previous stage when confirmation fails. Changes to the same request are
// serialized; changes to different requests run independently.
type Engine struct {
	store    Store
	syncer   StageSyncer
	loader   Loader
	notifier EquipmentNotifier
	metrics  Recorder
	logger   *zap.Logger
	now      func() time.Time
	locks    *keyedLock

	mu       sync.Mutex
	pending  map[string]models.Stage
	versions map[string]uint64
}

// NewEngine builds an Engine.
func NewEngine(p Params) *Engine {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	var rec Recorder = p.Metrics
	if rec == nil {
		rec = (*metrics.Metrics)(nil)
	}
	return &Engine{
		store:    p.Store,
		syncer:   p.Syncer,
		loader:   p.Loader,
		notifier: p.Notifier,
		metrics:  rec,
		logger:   logger,
		now:      now,
		locks:    newKeyedLock(),
		pending:  map[string]models.Stage{},
		versions: map[string]uint64{},
	}
}

// RequestStageChange moves request id to target.
//
// Unknown ids fail with apperrors.ErrNotFound and requests in a terminal stage fail with
// apperrors.ErrInvalidTransition, both before anything is mutated. Asking for the current
// stage returns the record unchanged without contacting the syncer. When the syncer
// fails the store is restored and the error matches apperrors.ErrSyncFailed.
//
// ctx bounds only the wait for an earlier change of the same request. Once the change
// is applied it runs to completion.
func (e *Engine) RequestStageChange(ctx context.Context, id string, target models.Stage) (models.MaintenanceRequest, error) {
	change, err := e.ChangeStage(ctx, id, target)
	return change.Request, err
}

// StageChange describes the outcome of ChangeStage.
type StageChange struct {
	Request models.MaintenanceRequest
	// From is the stage the request held once earlier changes of it had settled.
	From    models.Stage
	Applied bool
}

// ChangeStage behaves like RequestStageChange and also reports the stage the change
// started from, read while holding the request's lock.
func (e *Engine) ChangeStage(ctx context.Context, id string, target models.Stage) (StageChange, error) {
	if !target.Valid() {
		e.metrics.ObserveTransition(metrics.OutcomeRejected)
		return StageChange{}, apperrors.Clonef(apperrors.ErrValidation, "invalid stage %q", target)
	}

	release, err := e.locks.acquire(ctx, id)
	if err != nil {
		return StageChange{}, errors.Wrapf(err, "waiting for pending change of request %s", id)
	}
	defer release()

	current, err := e.store.Get(id)
	if err != nil {
		e.metrics.ObserveTransition(metrics.OutcomeNotFound)
		return StageChange{}, err
	}
	if current.Stage == target {
		e.metrics.ObserveTransition(metrics.OutcomeNoop)
		return StageChange{Request: current, From: current.Stage}, nil
	}
	if current.Stage.IsTerminal() {
		e.metrics.ObserveTransition(metrics.OutcomeRejected)
		return StageChange{Request: current, From: current.Stage}, apperrors.Clonef(apperrors.ErrInvalidTransition,
			"request %s is %s and cannot move to %s", id, current.Stage, target)
	}

	previousStage, previousUpdatedAt := current.Stage, current.UpdatedAt
	now := e.now().UTC()
	applied, err := e.apply(id, target, now)
	if err != nil {
		return StageChange{}, err
	}

	syncCtx := context.WithoutCancel(ctx)
	start := time.Now()
	syncErr := e.syncer.PersistStageChange(syncCtx, id, target)
	e.metrics.ObserveSync(time.Since(start), syncErr)

	if syncErr != nil {
		if err := e.rollback(id, previousStage, previousUpdatedAt); err != nil {
			e.logger.Warn("stage rollback could not be applied",
				zap.String("request_id", id),
				zap.String("stage", string(previousStage)),
				zap.Error(err))
		}
		e.metrics.ObserveTransition(metrics.OutcomeRolledBack)
		e.logger.Warn("stage change rolled back",
			zap.String("request_id", id),
			zap.String("from", string(previousStage)),
			zap.String("to", string(target)),
			zap.Error(syncErr))
		return StageChange{From: previousStage}, apperrors.Wrap(syncErr, apperrors.ErrSyncFailed, "")
	}

	e.settle(id)
	e.metrics.ObserveTransition(metrics.OutcomeApplied)
	e.logger.Info("stage changed",
		zap.String("request_id", id),
		zap.String("from", string(previousStage)),
		zap.String("to", string(target)))

	if target == models.StageScrap && e.notifier != nil {
		if err := e.notifier.EquipmentUnusable(syncCtx, applied.EquipmentID, id); err != nil {
			e.logger.Warn("equipment unusable notification failed",
				zap.String("equipment_id", applied.EquipmentID),
				zap.String("request_id", id),
				zap.Error(err))
		}
	}
	return StageChange{Request: applied, From: previousStage, Applied: true}, nil
}

// Reload replaces the store with a fresh snapshot from the Loader. Stage changes that
// are still awaiting confirmation keep their optimistic stage in the new snapshot, and a
// request whose stage changed while the snapshot was being read keeps its current stage.
func (e *Engine) Reload(ctx context.Context) error {
	if e.loader == nil {
		return errors.New("no request loader configured")
	}

	e.mu.Lock()
	seen := make(map[string]uint64, len(e.versions))
	for id, v := range e.versions {
		seen[id] = v
	}
	e.mu.Unlock()

	records, err := e.loader.LoadRequests(ctx)
	if err != nil {
		e.metrics.ObserveReload(err)
		return errors.Wrap(err, "load requests")
	}

	e.mu.Lock()
	for i := range records {
		id := records[i].ID
		if stage, ok := e.pending[id]; ok {
			records[i].Stage = stage
			continue
		}
		if e.versions[id] != seen[id] {
			if current, err := e.store.Get(id); err == nil {
				records[i].Stage = current.Stage
				records[i].UpdatedAt = current.UpdatedAt
			}
		}
	}
	err = e.store.ReplaceAll(records)
	e.mu.Unlock()

	e.metrics.ObserveReload(err)
	if err != nil {
		return err
	}
	e.logger.Debug("request store reloaded", zap.Int("count", len(records)))
	return nil
}

// Pending reports how many stage changes of id are in flight or queued.
func (e *Engine) Pending(id string) int {
	return e.locks.waiting(id)
}

// apply, rollback and settle hold e.mu so Reload sees a store and pending set that agree.
// Each bumps the request's version so a Reload that started earlier knows its snapshot
// of that request is stale.
func (e *Engine) apply(id string, stage models.Stage, at time.Time) (models.MaintenanceRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	applied, err := e.store.Patch(id, models.RequestPatch{Stage: &stage, UpdatedAt: &at})
	if err != nil {
		return models.MaintenanceRequest{}, err
	}
	e.pending[id] = stage
	e.versions[id]++
	return applied, nil
}

func (e *Engine) rollback(id string, stage models.Stage, updatedAt time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, id)
	e.versions[id]++
	_, err := e.store.Patch(id, models.RequestPatch{Stage: &stage, UpdatedAt: &updatedAt})
	return err
}

func (e *Engine) settle(id string) {
	e.mu.Lock()
	delete(e.pending, id)
	e.versions[id]++
	e.mu.Unlock()
}
