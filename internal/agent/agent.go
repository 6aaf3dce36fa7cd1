package agent

import (
	"sync"

	"github.com/jheapagent/internal/host"
	apperrors "github.com/jheapagent/pkg/errors"
	"github.com/jheapagent/pkg/model"
	"github.com/jheapagent/pkg/utils"
)

// Agent is the boundary the rest of the process talks to. It owns the one
// piece of process-scoped state the engine carries — the "is the engine
// attached" flag — and serializes traversals: tag handles are scoped to a
// single traversal, so two queries must never interleave their walks.
type Agent struct {
	// mu covers one full traversal plus its marshaling. Interleaved
	// traversals would alias tag slots, so the lock is held for the whole
	// query, not just the walk.
	mu sync.Mutex

	stateMu sync.RWMutex
	loaded  bool
	host    host.Host

	resolver  *RootPathResolver
	estimator *RetainedSizeEstimator

	maxPaths int
	logger   utils.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent's logger.
func WithLogger(logger utils.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithMaxPaths bounds how many root paths a gcRoots query reconstructs.
// Zero means unbounded.
func WithMaxPaths(n int) Option {
	return func(a *Agent) { a.maxPaths = n }
}

// New creates an unattached Agent. Queries fail until Init is called.
func New(opts ...Option) *Agent {
	a := &Agent{logger: &utils.NullLogger{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init attaches the agent to a host heap. It is called once when the host
// process brings the engine up; calling it again replaces the host.
func (a *Agent) Init(h host.Host) error {
	if h == nil {
		return apperrors.New(apperrors.CodeInvalidInput, "host is nil")
	}
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.host = h
	a.resolver = NewRootPathResolver(h, a.maxPaths, a.logger)
	a.estimator = NewRetainedSizeEstimator(h, a.logger)
	a.loaded = true
	a.logger.Debug("agent initialized")
	return nil
}

// Shutdown detaches the agent. In-flight queries finish first.
func (a *Agent) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loaded = false
	a.host = nil
	a.resolver = nil
	a.estimator = nil
	a.logger.Debug("agent shut down")
}

// IsLoaded reports whether the engine is attached and ready. It never
// panics: any internal failure during the check reports false. This is the
// one boundary operation with blanket failure suppression, because callers
// use it as a capability probe before anything else exists.
func (a *Agent) IsLoaded() (loaded bool) {
	defer func() {
		if recover() != nil {
			loaded = false
		}
	}()
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.loaded
}

// GcRoots returns every reference chain from a GC root to the object. Each
// path is ordered root first; a single-step path means a root holds the
// object directly.
func (a *Agent) GcRoots(obj host.ObjectRef) ([]model.RootPath, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	resolver, _, err := a.components()
	if err != nil {
		return nil, err
	}
	paths, err := resolver.FindRootPaths(obj)
	if err != nil {
		return nil, err
	}
	return MarshalPaths(paths), nil
}

// Size returns the retained-size estimate for the object in bytes.
func (a *Agent) Size(obj host.ObjectRef) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, estimator, err := a.components()
	if err != nil {
		return 0, err
	}
	return estimator.EstimateSize(obj)
}

func (a *Agent) components() (*RootPathResolver, *RetainedSizeEstimator, error) {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	if !a.loaded {
		return nil, nil, apperrors.ErrAgentNotInitialized
	}
	return a.resolver, a.estimator, nil
}
