// Package service wires the inspection engine to its surroundings: it
// opens heap dumps, runs queries through the agent, formats the outcomes,
// and optionally persists them and uploads rendered reports.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/jheapagent/internal/agent"
	"github.com/jheapagent/internal/formatter"
	"github.com/jheapagent/internal/host"
	"github.com/jheapagent/internal/host/hprofhost"
	"github.com/jheapagent/internal/repository"
	"github.com/jheapagent/internal/storage"
	"github.com/jheapagent/pkg/config"
	"github.com/jheapagent/pkg/model"
	"github.com/jheapagent/pkg/parallel"
	"github.com/jheapagent/pkg/utils"
)

// Service is the main application service.
type Service struct {
	config  *config.Config
	logger  utils.Logger
	agent   *agent.Agent
	db      *repository.Repositories
	storage storage.Storage

	formatters *formatter.Registry

	mu         sync.RWMutex
	heap       host.Host
	snapshot   *hprofhost.Snapshot
	sourcePath string
}

// New creates a new Service instance.
func New(cfg *config.Config, logger utils.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	return &Service{
		config:     cfg,
		logger:     logger,
		formatters: formatter.NewRegistry(),
	}, nil
}

// Initialize initializes all service components.
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Info("Initializing service components...")

	if s.config.Database.Enabled {
		if err := s.initDatabase(ctx); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	if s.config.Storage.Enabled {
		if err := s.initStorage(); err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	s.agent = agent.New(
		agent.WithLogger(s.logger),
		agent.WithMaxPaths(s.config.Agent.MaxPaths),
	)

	s.logger.Info("Service components initialized successfully")
	return nil
}

// initDatabase initializes the database connection and repositories.
func (s *Service) initDatabase(ctx context.Context) error {
	s.logger.Info("Connecting to database (%s)...", s.config.Database.Type)

	gormDB, err := repository.NewGormDB(&s.config.Database)
	if err != nil {
		return err
	}

	repos, err := repository.NewRepositories(gormDB)
	if err != nil {
		return err
	}
	if err := repos.HealthCheck(ctx); err != nil {
		return err
	}

	s.db = repos
	s.logger.Info("Database connection established")

	return nil
}

// initStorage initializes the report storage backend.
func (s *Service) initStorage() error {
	s.logger.Info("Initializing storage (%s)...", s.config.Storage.Type)

	store, err := storage.NewStorage(&s.config.Storage)
	if err != nil {
		return err
	}

	s.storage = store
	s.logger.Info("Storage initialized")

	return nil
}

// OpenDump parses a heap dump file and attaches the engine to it.
func (s *Service) OpenDump(path string) error {
	s.logger.Info("Opening heap dump %s...", path)

	snap, err := hprofhost.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open heap dump: %w", err)
	}
	if err := s.attach(snap, path); err != nil {
		return err
	}

	s.logger.Info("Heap dump loaded: %d objects, %d roots",
		snap.NumObjects(), snap.NumRoots())
	return nil
}

// AttachHost attaches the engine to an already constructed host heap. Used
// when the heap view comes from somewhere other than a dump file.
func (s *Service) AttachHost(h host.Host, sourcePath string) error {
	snap, _ := h.(*hprofhost.Snapshot)
	if err := s.agent.Init(h); err != nil {
		return err
	}

	s.mu.Lock()
	s.heap = h
	s.snapshot = snap
	s.sourcePath = sourcePath
	s.mu.Unlock()
	return nil
}

func (s *Service) attach(snap *hprofhost.Snapshot, path string) error {
	if err := s.agent.Init(snap); err != nil {
		return err
	}

	s.mu.Lock()
	s.heap = snap
	s.snapshot = snap
	s.sourcePath = path
	s.mu.Unlock()
	return nil
}

// IsAttached reports whether a heap is loaded and the engine is ready.
func (s *Service) IsAttached() bool {
	return s.agent != nil && s.agent.IsLoaded()
}

// SourcePath returns the path of the currently attached heap dump.
func (s *Service) SourcePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourcePath
}

// Formatters returns the result formatter registry.
func (s *Service) Formatters() *formatter.Registry {
	return s.formatters
}

// Stats returns service statistics.
func (s *Service) Stats() ServiceStats {
	stats := ServiceStats{
		Attached:   s.IsAttached(),
		SourcePath: s.SourcePath(),
	}

	s.mu.RLock()
	if s.snapshot != nil {
		stats.NumObjects = s.snapshot.NumObjects()
		stats.NumRoots = s.snapshot.NumRoots()
	}
	s.mu.RUnlock()

	return stats
}

// HealthCheck performs a health check on the service.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	}

	return nil
}

// Close shuts down the service and releases its components.
func (s *Service) Close() error {
	s.logger.Info("Stopping service...")

	if s.agent != nil {
		s.agent.Shutdown()
	}

	s.mu.Lock()
	s.heap = nil
	s.snapshot = nil
	s.sourcePath = ""
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection: %v", err)
		}
	}

	s.logger.Info("Service stopped")
	return nil
}

// newPool builds the worker pool used for batch inspections.
func (s *Service) newPool() *parallel.WorkerPool[QueryRequest, *model.InspectionResult] {
	cfg := parallel.DefaultPoolConfig()
	if s.config.Agent.WorkerCount > 0 {
		cfg = cfg.WithWorkers(s.config.Agent.WorkerCount)
	}
	return parallel.NewWorkerPool[QueryRequest, *model.InspectionResult](cfg)
}

// ServiceStats holds service statistics.
type ServiceStats struct {
	Attached   bool   `json:"attached"`
	SourcePath string `json:"source_path,omitempty"`
	NumObjects int    `json:"num_objects,omitempty"`
	NumRoots   int    `json:"num_roots,omitempty"`
}
