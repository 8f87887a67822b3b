package scheduler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/timeshareflow/pbxsync/internal/archive"
	"github.com/timeshareflow/pbxsync/internal/config"
	"github.com/timeshareflow/pbxsync/internal/logging"
	"github.com/timeshareflow/pbxsync/internal/objectstore"
	"github.com/timeshareflow/pbxsync/internal/stage"
	"github.com/timeshareflow/pbxsync/internal/tenant"
	"github.com/timeshareflow/pbxsync/internal/tunnel"
)

// refreshInterval bounds how often the scheduler re-lists active tenants
// and adds or removes per-tenant tickers from the supervisor tree.
const refreshInterval = 30 * time.Second

const defaultTickInterval = 5 * time.Minute

// Deps bundles the shared infrastructure every tenant ticker draws from.
type Deps struct {
	Registry *tenant.Registry
	Tunnels  *tunnel.Manager
	Archive  *archive.Writer
	Objects  *objectstore.Client
}

// Scheduler owns the root supervisor tree, one child ticker per active
// tenant, the shared global-concurrency semaphore, and the circuit
// breaker registry every ticker draws from. Grounded on the teacher's
// internal/supervisor.SupervisorTree (one root, children added/removed at
// runtime) generalized from three fixed layers to one child per tenant.
type Scheduler struct {
	deps    Deps
	options stage.Options

	root     *suture.Supervisor
	breakers *breakerRegistry
	sem      chan struct{}

	mu     sync.Mutex
	tokens map[string]suture.ServiceToken
}

// New builds a Scheduler. concurrency is clamped to at least 1; when cfg
// leaves MaxConcurrency unset, it defaults to min(NumCPU, 8) per spec §8.
func New(cfg config.SchedulerConfig, deps Deps, options stage.Options) *Scheduler {
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
		if concurrency > 8 {
			concurrency = 8
		}
		if concurrency < 1 {
			concurrency = 1
		}
	}

	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	root := suture.New("pbxsync-scheduler", suture.Spec{
		EventHook: handler.MustHook(),
	})

	return &Scheduler{
		deps:     deps,
		options:  options,
		root:     root,
		breakers: newBreakerRegistry(),
		sem:      make(chan struct{}, concurrency),
		tokens:   make(map[string]suture.ServiceToken),
	}
}

// Run starts the supervisor tree and the tenant-refresh loop, blocking
// until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	done := s.root.ServeBackground(ctx)

	if err := s.refresh(ctx); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("initial tenant refresh failed")
	}

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-done
			return ctx.Err()
		case err := <-done:
			return err
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil {
				logging.Ctx(ctx).Error().Err(err).Msg("tenant refresh failed")
			}
		}
	}
}

// refresh adds a ticker for every active tenant missing one, and removes
// tickers for tenants no longer active.
func (s *Scheduler) refresh(ctx context.Context) error {
	tenants, err := s.deps.Registry.ListActiveTenants(ctx)
	if err != nil {
		return err
	}

	active := make(map[string]tenant.Tenant, len(tenants))
	for _, t := range tenants {
		active[t.ID] = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range active {
		if _, ok := s.tokens[id]; ok {
			continue
		}
		interval := time.Duration(t.SyncIntervalS) * time.Second
		if interval <= 0 {
			interval = defaultTickInterval
		}
		ticker := &tenantTicker{
			tenantID:   id,
			registry:   s.deps.Registry,
			tunnels:    s.deps.Tunnels,
			archive:    s.deps.Archive,
			objects:    s.deps.Objects,
			breakers:   s.breakers,
			sem:        s.sem,
			interval:   interval,
			options:    s.options,
			minBackoff: 10 * time.Second,
			maxBackoff: 10 * time.Minute,
		}
		s.tokens[id] = s.root.Add(ticker)
		logging.Ctx(ctx).Info().Str("tenant", id).Dur("interval", interval).Msg("tenant ticker added")
	}

	for id, token := range s.tokens {
		if _, ok := active[id]; ok {
			continue
		}
		if err := s.root.Remove(token); err != nil {
			logging.Ctx(ctx).Warn().Str("tenant", id).Err(err).Msg("failed to remove tenant ticker")
			continue
		}
		delete(s.tokens, id)
		s.tunnels.CloseTenant(id)
		logging.Ctx(ctx).Info().Str("tenant", id).Msg("tenant ticker removed")
	}
	return nil
}
