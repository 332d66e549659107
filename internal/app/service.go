// Package service wires the evaluation pipeline: it owns the domain
// components, the persistence stores, and the trigger queue, and runs
// one user's full evaluation per trigger. The pipeline math lives in
// the domain packages; this layer sequences it, degrades gracefully on
// collaborator failures, and persists exactly one snapshot per run.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vitalislabs/vitalis/internal/adapters/mq/queue"
	"github.com/vitalislabs/vitalis/internal/adapters/mq/worker"
	"github.com/vitalislabs/vitalis/internal/adapters/repository"
	"github.com/vitalislabs/vitalis/internal/domain/allostatic"
	"github.com/vitalislabs/vitalis/internal/domain/baseline"
	"github.com/vitalislabs/vitalis/internal/domain/catalog"
	"github.com/vitalislabs/vitalis/internal/domain/fusion"
	"github.com/vitalislabs/vitalis/internal/domain/model"
	"github.com/vitalislabs/vitalis/internal/domain/publish"
	"github.com/vitalislabs/vitalis/internal/domain/signals"
	"github.com/vitalislabs/vitalis/internal/domain/velocity"
	"github.com/vitalislabs/vitalis/pkg/logger"
)

// Default service configuration constants.
const (
	defaultWorkerCount        = 4
	defaultQueueSize          = 10000
	defaultWearableWindowDays = 180
	defaultPipelineVersion    = "v1"

	wearableBaselineDays = 28 // trailing mean used for fusion deviations
	publishRetryLimit    = 3
)

// ErrUnknownMetric guards ingestion of metric types the catalog does
// not define.
var ErrUnknownMetric = errors.New("unknown metric type")

// Service implements the evaluation pipeline.
type Service struct {
	mu sync.RWMutex

	cat       *catalog.Catalog
	estimator *baseline.Estimator
	extractor *signals.Extractor
	fuser     *fusion.Fuser
	velo      *velocity.Model
	gate      *publish.Gate
	allo      *allostatic.Scorer

	store    repository.Store
	triggers queue.Queue
	pool     *worker.Pool

	workerCount        int
	queueSize          int
	wearableWindowDays int
	pipelineVersion    string
	velocityOpts       []velocity.Option
	now                func() time.Time

	userLocks sync.Map // userID -> *sync.Mutex
	flight    singleflight.Group

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCatalog sets the reference catalog.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(s *Service) {
		if cat != nil {
			s.cat = cat
		}
	}
}

// WithGate sets the publish gate policy.
func WithGate(g *publish.Gate) Option {
	return func(s *Service) {
		if g != nil {
			s.gate = g
		}
	}
}

// WithVelocityOptions forwards options to the velocity model.
func WithVelocityOptions(opts ...velocity.Option) Option {
	return func(s *Service) {
		s.velocityOpts = opts
	}
}

// WithWorkerCount sets the number of evaluation workers.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithQueueSize bounds the trigger queue.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithPipelineVersion tags snapshots and drives publish version resets.
func WithPipelineVersion(v string) Option {
	return func(s *Service) {
		if v != "" {
			s.pipelineVersion = v
		}
	}
}

// WithWearableWindow sets how far back wearable samples are fetched.
func WithWearableWindow(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.wearableWindowDays = days
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:        defaultWorkerCount,
		queueSize:          defaultQueueSize,
		wearableWindowDays: defaultWearableWindowDays,
		pipelineVersion:    defaultPipelineVersion,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes components and launches the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.cat == nil {
		s.cat = catalog.New()
	}
	if s.store == nil {
		s.store = repository.NewMemStore()
	}
	if s.gate == nil {
		s.gate = publish.New()
	}

	s.estimator = baseline.New()
	s.extractor = signals.New(s.cat)
	s.fuser = fusion.New(s.cat)
	s.velo = velocity.New(s.cat, s.velocityOpts...)
	s.allo = allostatic.New(s.cat)

	s.triggers = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.triggers, evaluatorFunc(s.runForWorker))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "evaluation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.String("pipeline_version", s.pipelineVersion),
	)
	return nil
}

// Stop shuts the service down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.triggers != nil {
		_ = s.triggers.Close()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	s.started = false
	s.logger.Info(context.Background(), "evaluation service stopped")
}

// evaluatorFunc adapts a function to the worker.Evaluator interface.
type evaluatorFunc func(ctx context.Context, t queue.Trigger) error

func (f evaluatorFunc) Evaluate(ctx context.Context, t queue.Trigger) error {
	return f(ctx, t)
}

func (s *Service) runForWorker(ctx context.Context, t queue.Trigger) error {
	_, err := s.Run(ctx, t)
	return err
}

// IngestLabPanel stores a parsed lab panel and queues an evaluation.
func (s *Service) IngestLabPanel(ctx context.Context, userID, uploadID string, readings []model.BiomarkerReading) error {
	if err := s.store.AppendReadings(ctx, userID, readings); err != nil {
		return fmt.Errorf("store lab panel: %w", err)
	}
	s.enqueue(ctx, model.Trigger{
		TriggerID:  uuid.NewString(),
		UserID:     userID,
		Kind:       model.TriggerLabUpload,
		UploadID:   uploadID,
		ReceivedAt: s.now(),
	})
	return nil
}

// IngestWearable stores raw wearable samples and queues an evaluation.
func (s *Service) IngestWearable(ctx context.Context, userID, metricType string, samples []model.WearableSample) error {
	if _, ok := s.cat.Metric(metricType); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMetric, metricType)
	}
	if err := s.store.AppendSamples(ctx, userID, metricType, samples); err != nil {
		return fmt.Errorf("store wearable samples: %w", err)
	}
	s.enqueue(ctx, model.Trigger{
		TriggerID:  uuid.NewString(),
		UserID:     userID,
		Kind:       model.TriggerWearableSync,
		ReceivedAt: s.now(),
	})
	return nil
}

func (s *Service) enqueue(ctx context.Context, t model.Trigger) {
	if !s.triggers.Enqueue(ctx, t) {
		// Not fatal for ingestion: the data is already stored and the
		// next trigger re-evaluates from scratch anyway.
		s.logger.Warn(ctx, "trigger queue rejected trigger",
			logger.String("user_id", t.UserID),
			logger.String("kind", string(t.Kind)),
		)
	}
}

// Refresh runs a synchronous evaluation for a user, collapsing
// concurrent identical requests.
func (s *Service) Refresh(ctx context.Context, userID string) (model.BrainOutput, error) {
	out, err, _ := s.flight.Do("refresh:"+userID, func() (any, error) {
		return s.Run(ctx, model.Trigger{
			TriggerID:  uuid.NewString(),
			UserID:     userID,
			Kind:       model.TriggerManualRefresh,
			ReceivedAt: s.now(),
		})
	})
	if err != nil {
		return model.BrainOutput{}, err
	}
	return out.(model.BrainOutput), nil
}

// LatestOutput returns the user's most recent evaluation snapshot.
func (s *Service) LatestOutput(ctx context.Context, userID string) (model.BrainOutput, error) {
	return s.store.LatestSnapshot(ctx, userID)
}

// Published returns the user's current published velocity state.
func (s *Service) Published(ctx context.Context, userID string) (model.PublishedVelocityState, error) {
	return s.store.GetPublished(ctx, userID)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":          s.started,
		"worker_count":     s.workerCount,
		"queue_capacity":   s.queueSize,
		"pipeline_version": s.pipelineVersion,
	}
	if s.started {
		stats["queue_length"] = s.triggers.Len(context.Background())
	}
	return stats
}

// userLock serializes evaluations per user so overlapping triggers
// cannot interleave publish read-modify-writes.
func (s *Service) userLock(userID string) *sync.Mutex {
	v, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// fetched bundles the parallel read results. Any of the three may be
// absent after a degraded fetch.
type fetched struct {
	readings  []model.BiomarkerReading
	baselines map[string]model.PersonalBaseline
	samples   map[string][]model.WearableSample
}

// fetch issues the independent reads concurrently and joins them.
// Failures degrade to absent contributions; they never abort the run.
func (s *Service) fetch(ctx context.Context, userID string) fetched {
	var (
		f  fetched
		to = s.now()
	)
	from := to.AddDate(0, 0, -s.wearableWindowDays)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		readings, err := s.store.Readings(gctx, userID)
		if err != nil {
			s.logger.Warn(gctx, "lab readings fetch failed, treating as absent",
				logger.String("user_id", userID), logger.Error(err))
			return nil
		}
		f.readings = readings
		return nil
	})
	g.Go(func() error {
		baselines, err := s.store.Baselines(gctx, userID)
		if err != nil {
			s.logger.Warn(gctx, "baselines fetch failed, treating as absent",
				logger.String("user_id", userID), logger.Error(err))
			return nil
		}
		f.baselines = baselines
		return nil
	})
	g.Go(func() error {
		samples, err := s.store.Samples(gctx, userID, s.cat.MetricTypes(), from, to)
		if err != nil {
			s.logger.Warn(gctx, "wearable samples fetch failed, treating as absent",
				logger.String("user_id", userID), logger.Error(err))
			return nil
		}
		f.samples = samples
		return nil
	})
	_ = g.Wait()

	if f.baselines == nil {
		f.baselines = make(map[string]model.PersonalBaseline)
	}
	return f
}

// sortedKeys returns the map keys in a stable order so per-run
// iteration is deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
