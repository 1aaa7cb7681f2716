// Package engine orchestrates a project: it discovers models, loads seeds,
// materializes selected models in dependency order, and evaluates tests.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/leapstack-labs/strata/internal/config"
	"github.com/leapstack-labs/strata/internal/dag"
	"github.com/leapstack-labs/strata/internal/registry"
	"github.com/leapstack-labs/strata/internal/state"
	"github.com/leapstack-labs/strata/pkg/adapter"
	"github.com/leapstack-labs/strata/pkg/core"
)

// Engine orchestrates the execution of SQL models.
type Engine struct {
	// Database adapter (lazy initialized)
	db          core.Adapter
	dbConfig    core.AdapterConfig
	dbConnected bool
	dbMu        sync.Mutex

	// schemas already ensured on the target
	schemas   map[string]bool
	schemasMu sync.Mutex

	logger *slog.Logger

	store       state.Store
	modelsDir   string
	seedsDir    string
	environment string
	schema      string
	groups      *config.GroupTree
	threads     int
	lockTimeout time.Duration
	owner       string

	registry   *registry.ModelRegistry
	graph      *dag.Graph
	assertions []*core.Assertion
}

// Config holds engine configuration.
type Config struct {
	// ModelsDir is the path to the models directory
	ModelsDir string
	// SeedsDir is the path to the seeds directory (optional)
	SeedsDir string
	// StatePath is the path to the SQLite state database
	StatePath string
	// Environment is the current environment (dev, staging, prod)
	Environment string
	// Target is the store to materialize into
	Target core.TargetConfig
	// Groups carries the project and group defaults
	Groups *config.GroupTree
	// Threads bounds concurrent model and test execution (default 1)
	Threads int
	// LockTimeout is the age after which a held project lock is stale
	LockTimeout time.Duration
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger

	// Adapter overrides the adapter built from Target
	Adapter core.Adapter
	// Store overrides the state store opened at StatePath
	Store state.Store
}

// New creates a new engine with lazy database connection.
// The database adapter is only connected when something needs the store.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine",
		slog.String("models_dir", cfg.ModelsDir),
		slog.String("environment", cfg.Environment))

	store := cfg.Store
	if store == nil {
		statePath := cfg.StatePath
		if statePath == "" {
			statePath = ":memory:"
		}
		sqlite := state.NewSQLiteStore(logger)
		if err := sqlite.Open(context.Background(), statePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		store = sqlite
	}

	env := cfg.Environment
	if env == "" {
		env = config.DefaultEnv
	}

	target := cfg.Target
	if target.Type == "" {
		target.Type = config.DefaultTargetType
	}
	config.ApplyTargetDefaults(&target)

	threads := cfg.Threads
	if threads < 1 {
		threads = config.DefaultThreads
	}
	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = config.DefaultLockTimeout
	}

	e := &Engine{
		db:          cfg.Adapter,
		dbConfig:    target.AdapterConfig(),
		logger:      logger,
		store:       store,
		modelsDir:   cfg.ModelsDir,
		seedsDir:    cfg.SeedsDir,
		environment: env,
		schema:      target.Schema,
		groups:      cfg.Groups,
		threads:     threads,
		lockTimeout: lockTimeout,
		owner:       lockOwner(),
		schemas:     make(map[string]bool),
	}
	if cfg.Adapter != nil && cfg.Target.Schema == "" {
		e.schema = cfg.Adapter.Dialect().DefaultSchema
	}
	return e, nil
}

func lockOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// ensureDBConnected lazily connects to the database.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	if e.db == nil {
		db, err := adapter.Open(e.dbConfig, e.logger)
		if err != nil {
			return fmt.Errorf("failed to create database adapter: %w", err)
		}
		e.db = db
	}

	e.logger.Debug("connecting to database", slog.String("adapter_type", e.dbConfig.Type))
	if err := e.db.Connect(ctx, e.dbConfig); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	e.dbConnected = true

	e.logger.Debug("database connected", slog.String("dialect", e.db.Dialect().Name))
	return nil
}

// withLock runs fn while holding the project lock.
func (e *Engine) withLock(ctx context.Context, command string, fn func() error) error {
	if err := e.store.AcquireLock(ctx, e.owner, command, e.lockTimeout); err != nil {
		return err
	}
	defer func() {
		// released with a fresh context so a cancelled run still frees the lock
		if err := e.store.ReleaseLock(context.WithoutCancel(ctx), e.owner); err != nil {
			e.logger.Warn("failed to release project lock", slog.String("error", err.Error()))
		}
	}()
	return fn()
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.db != nil && e.dbConnected {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %w", errors.Join(errs...))
	}
	return nil
}

// --- Getters (public accessors) ---

// Graph returns the dependency graph, nil before Discover.
func (e *Engine) Graph() *dag.Graph {
	return e.graph
}

// Models returns all discovered models in registration order.
func (e *Engine) Models() []*core.Model {
	if e.registry == nil {
		return nil
	}
	return e.registry.Models()
}

// Model returns a discovered model by name.
func (e *Engine) Model(name string) (*core.Model, bool) {
	if e.registry == nil {
		return nil, false
	}
	return e.registry.GetModel(name)
}

// Seeds returns all discovered seeds.
func (e *Engine) Seeds() []*core.Seed {
	if e.registry == nil {
		return nil
	}
	return e.registry.Seeds()
}

// Assertions returns all declared tests.
func (e *Engine) Assertions() []*core.Assertion {
	return e.assertions
}

// StateStore returns the state store.
func (e *Engine) StateStore() state.Store {
	return e.store
}

// Environment returns the active environment name.
func (e *Engine) Environment() string {
	return e.environment
}

// DefaultSchema returns the schema relations live in unless a model says
// otherwise.
func (e *Engine) DefaultSchema() string {
	return e.schema
}

// Query runs a read query against the target.
func (e *Engine) Query(ctx context.Context, sql string) (*core.Rows, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return e.db.Query(ctx, sql)
}

// Describe returns the columns and row count of a relation in the target.
// An empty schema means the default schema.
func (e *Engine) Describe(ctx context.Context, rel core.RelationName) (*core.TableMetadata, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	if rel.Schema == "" {
		rel.Schema = e.schema
	}
	return e.db.GetTableMetadata(ctx, rel.Schema+"."+rel.Name)
}

// Dialect connects to the target if needed and returns its dialect.
func (e *Engine) Dialect(ctx context.Context) (*core.Dialect, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return e.db.Dialect(), nil
}
