// Package service wires the ledger, the scoring engine, the store and the
// event broker into the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/overcall/internal/adapters/mq/broker"
	"github.com/okian/overcall/internal/adapters/repository"
	"github.com/okian/overcall/internal/adapters/scheduler"
	"github.com/okian/overcall/internal/domain/dedupe"
	"github.com/okian/overcall/internal/domain/ledger"
	"github.com/okian/overcall/internal/domain/model"
	"github.com/okian/overcall/internal/domain/scoring"
	"github.com/okian/overcall/pkg/logger"
	"github.com/okian/overcall/pkg/metrics"
)

// Service implements the API dependencies for the game.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	ledger  *ledger.Ledger
	scorer  scoring.Scorer
	broker  broker.Broker
	deduper dedupe.Deduper
	sched   *scheduler.Scheduler

	// Serializes ScoreRound.
	scoreMu sync.Mutex

	// Configuration
	storeBackend     string
	postgresDSN      string
	brokerBackend    string
	redis            broker.RedisConfig
	storeTimeout     time.Duration
	leaderboardCap   int
	maxLimit         int
	retryLimit       int
	dedupeSize       int
	subscriberBuffer int
	statsInterval    time.Duration
	seedTeams        []string
	scoringOpts      []scoring.Option

	ownStore  bool
	ownBroker bool
	started   bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a store. The service does not close injected stores.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithStoreBackend selects the store opened at Start.
func WithStoreBackend(backend, dsn string) Option {
	return func(s *Service) {
		s.storeBackend = backend
		s.postgresDSN = dsn
	}
}

// WithBroker injects an event broker. The service does not close it.
func WithBroker(b broker.Broker) Option {
	return func(s *Service) {
		if b != nil {
			s.broker = b
		}
	}
}

// WithBrokerBackend selects the broker opened at Start.
func WithBrokerBackend(backend string, cfg broker.RedisConfig) Option {
	return func(s *Service) {
		s.brokerBackend = backend
		s.redis = cfg
	}
}

// WithStoreTimeout bounds each store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.storeTimeout = d
		}
	}
}

// WithLeaderboardCap sets the default leaderboard size.
func WithLeaderboardCap(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.leaderboardCap = n
		}
	}
}

// WithMaxLeaderboardLimit caps caller supplied limits.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithScoreRetryLimit bounds recomputes after a version conflict.
func WithScoreRetryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retryLimit = n
		}
	}
}

// WithDedupeSize sets how many admin request IDs are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithSubscriberBuffer sets the per subscriber event buffer.
func WithSubscriberBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.subscriberBuffer = n
		}
	}
}

// WithStatsRefreshInterval sets the gauge refresh period.
func WithStatsRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.statsInterval = d
		}
	}
}

// WithTeams provisions teams at Start.
func WithTeams(names ...string) Option {
	return func(s *Service) {
		s.seedTeams = append(s.seedTeams, names...)
	}
}

// WithScoring passes options to the scoring engine.
func WithScoring(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scoringOpts = append(s.scoringOpts, opts...)
	}
}

// WithScorer replaces the scoring engine.
func WithScorer(scorer scoring.Scorer) Option {
	return func(s *Service) {
		if scorer != nil {
			s.scorer = scorer
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
		storeBackend:     repository.BackendMemory,
		brokerBackend:    broker.BackendMemory,
		storeTimeout:     2 * time.Second,
		leaderboardCap:   50,
		maxLimit:         500,
		retryLimit:       3,
		dedupeSize:       10_000,
		subscriberBuffer: 64,
		statsInterval:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and broker, provisions seed teams and starts the
// stats job.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.logger.Info(ctx, "starting game service...")

	if s.store == nil {
		st, err := repository.Open(ctx, s.storeBackend, s.postgresDSN)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = st
		s.ownStore = true
	}
	if s.broker == nil {
		b, err := broker.Open(ctx, s.brokerBackend, s.redis, broker.WithSubscriberBuffer(s.subscriberBuffer))
		if err != nil {
			s.closeOwned()
			return fmt.Errorf("open broker: %w", err)
		}
		s.broker = b
		s.ownBroker = true
	}
	if s.scorer == nil {
		s.scorer = scoring.NewEngine(s.scoringOpts...)
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.ledger = ledger.New(s.store, ledger.WithTimeout(s.storeTimeout))

	if err := s.provision(ctx); err != nil {
		s.closeOwned()
		return err
	}

	sched, err := scheduler.New()
	if err != nil {
		s.closeOwned()
		return err
	}
	if err := sched.Every("stats_refresh", s.statsInterval, s.RefreshStats); err != nil {
		_ = sched.Stop()
		s.closeOwned()
		return err
	}
	sched.Start()
	s.sched = sched

	s.started = true
	s.logger.Info(ctx, "game service started",
		logger.String("store", s.storeBackend),
		logger.String("broker", s.brokerBackend),
		logger.Int("leaderboardCap", s.leaderboardCap),
		logger.Int("seedTeams", len(s.seedTeams)),
	)
	return nil
}

func (s *Service) provision(ctx context.Context) error {
	for _, raw := range s.seedTeams {
		name, err := model.NormalizeTeamName(raw)
		if err != nil {
			s.logger.Warn(ctx, "skipping invalid seed team", logger.String("team", raw), logger.Error(err))
			continue
		}
		bctx, cancel := s.bound(ctx)
		_, err = s.store.CreateTeam(bctx, name)
		cancel()
		switch {
		case err == nil:
			s.logger.Info(ctx, "provisioned team", logger.String("team", name))
		case errors.Is(err, repository.ErrAlreadyExists):
		default:
			return fmt.Errorf("provision %s: %w", name, repository.Unavailable(err))
		}
	}
	return nil
}

// closeOwned closes components the service opened. Caller holds s.mu.
func (s *Service) closeOwned() {
	if s.ownBroker && s.broker != nil {
		_ = s.broker.Close()
		s.broker = nil
		s.ownBroker = false
	}
	if s.ownStore && s.store != nil {
		_ = s.store.Close()
		s.store = nil
		s.ownStore = false
	}
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping game service...")

	if s.sched != nil {
		if err := s.sched.Stop(); err != nil {
			s.logger.Warn(ctx, "scheduler shutdown", logger.Error(err))
		}
		s.sched = nil
	}
	s.closeOwned()
	s.started = false
	s.logger.Info(ctx, "game service stopped")
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// publish sends an event. Stream delivery is best effort, so failures are
// logged and never fail the caller.
func (s *Service) publish(ctx context.Context, typ, roundID, team string, data any) {
	e, err := broker.NewEvent(typ, roundID, team, data)
	if err == nil {
		err = s.broker.Publish(ctx, e)
	}
	if err != nil {
		s.logger.Warn(ctx, "event not published", logger.String("type", typ), logger.Error(err))
		metrics.RecordErrorByComponent("broker", "publish")
	}
}

// SeenAndRecord atomically checks if a request id was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordDuplicateRequest()
	}
	return seen
}

// Unrecord forgets a request id so it can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of remembered request ids.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Subscribe streams game events until cancel is called or ctx ends.
func (s *Service) Subscribe(ctx context.Context) (<-chan broker.Event, func()) {
	return s.broker.Subscribe(ctx)
}

// RefreshStats updates the gauges that are not maintained inline.
func (s *Service) RefreshStats(ctx context.Context) error {
	bctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.store.Count(bctx)
	if err != nil {
		metrics.RecordStoreError("count")
		return repository.Unavailable(err)
	}
	metrics.UpdateTeamsTotal(n)

	r, err := s.store.GetRound(bctx)
	if err != nil {
		metrics.RecordStoreError("get_round")
		return repository.Unavailable(err)
	}
	metrics.UpdateRoundOpen(r.Open)
	metrics.UpdateStreamSubscribers(s.broker.Subscribers())

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	metrics.UpdateSystemMemoryUsage(ms.HeapAlloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if ms.NumGC > 0 {
		last := ms.PauseNs[(ms.NumGC+255)%256]
		metrics.RecordSystemGCPauseTime(float64(last) / float64(time.Millisecond))
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"store":          s.storeBackend,
		"broker":         s.brokerBackend,
		"leaderboardCap": s.leaderboardCap,
		"dedupeSize":     s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	ctx, cancel := s.bound(context.Background())
	defer cancel()
	if n, err := s.store.Count(ctx); err == nil {
		stats["totalTeams"] = n
		metrics.UpdateTeamsTotal(n)
	}
	if r, err := s.store.GetRound(ctx); err == nil {
		stats["round"] = r
	}
	stats["subscribers"] = s.broker.Subscribers()
	stats["rememberedRequests"] = s.deduper.Size()
	return stats
}
