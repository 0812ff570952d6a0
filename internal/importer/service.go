package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hiredesk/hiredesk/internal/reconcile"
	"github.com/hiredesk/hiredesk/internal/schema"
	"github.com/hiredesk/hiredesk/internal/store"
)

// Config holds the import service's tunables.
type Config struct {
	ChunkSize           int           // rows per reconciliation chunk (default: 200)
	SimilarityThreshold float64       // fuzzy product match acceptance (default: 0.8)
	RunRetention        time.Duration // how long finished runs stay queryable (default: 30m)
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 200
	}
	if c.RunRetention <= 0 {
		c.RunRetention = 30 * time.Minute
	}
	return c
}

// ErrRunActive is returned by Start while another run holds the import
// surface.
var ErrRunActive = errors.New("an import is already running")

// Service owns import runs. Only one run may be active at a time: the
// engine's per-chunk existence checks assume strictly ordered writes
// against the same customer and document key space, so a second start
// request is rejected while one is in flight.
type Service struct {
	store  store.Store
	ledger *Ledger
	cfg    Config

	mu     sync.RWMutex
	runs   map[string]*Run
	active string // ID of the run currently holding the import surface
}

// NewService creates an import service over the given record store.
func NewService(st store.Store, cfg Config) *Service {
	return &Service{
		store:  st,
		ledger: &Ledger{Store: st},
		cfg:    cfg.withDefaults(),
		runs:   make(map[string]*Run),
	}
}

// Start begins an asynchronous import run over already-validated
// canonical rows and returns its handle. The catalog is snapshotted once
// up front; the ledger records the start immediately and is finalized
// when the run ends.
func (s *Service) Start(ctx context.Context, fileName string, importType ImportType, rows []schema.Row) (*Run, error) {
	if !importType.Valid() {
		return nil, fmt.Errorf("unknown import type: %s", importType)
	}

	s.mu.Lock()
	if s.active != "" {
		active := s.active
		s.mu.Unlock()
		return nil, fmt.Errorf("%w (%s)", ErrRunActive, active)
	}
	runID := uuid.New().String()
	s.active = runID
	s.mu.Unlock()

	resolver, err := reconcile.LoadCatalog(ctx, s.store, s.cfg.SimilarityThreshold)
	if err != nil {
		s.release(runID)
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	engine := &reconcile.Engine{
		Store:    s.store,
		Resolver: resolver,
		DocType:  string(importType),
	}

	startedAt := time.Now()
	run := newRun(runID, fileName, importType, rows, s.cfg.ChunkSize, engine, func(result *Result) {
		// The run's context is cancelled by the time finalize fires; the
		// ledger write gets its own deadline.
		ledgerCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.ledger.RecordFinish(ledgerCtx, result, startedAt)

		s.release(runID)
		s.cleanup(runID, s.cfg.RunRetention)
	})

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	s.ledger.RecordStart(ctx, runID, fileName, importType)

	slog.Info("import run started",
		"run_id", runID,
		"file", fileName,
		"type", importType,
		"rows", len(rows),
		"chunk_size", s.cfg.ChunkSize,
	)

	run.start()
	return run, nil
}

// Get returns the handle for a known run.
func (s *Service) Get(runID string) (*Run, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("import run not found: %s", runID)
	}
	return run, nil
}

// Cancel requests cooperative cancellation of a run.
func (s *Service) Cancel(runID string) error {
	run, err := s.Get(runID)
	if err != nil {
		return err
	}
	run.Cancel()
	return nil
}

// Resume restarts a paused run from the given row index.
func (s *Service) Resume(runID string, index int) error {
	run, err := s.Get(runID)
	if err != nil {
		return err
	}
	if err := run.Resume(index); err != nil {
		return err
	}

	s.mu.Lock()
	if s.active == "" {
		s.active = runID
	}
	s.mu.Unlock()
	return nil
}

// release frees the import surface once a run terminates.
func (s *Service) release(runID string) {
	s.mu.Lock()
	if s.active == runID {
		s.active = ""
	}
	s.mu.Unlock()
}

// cleanup drops the run handle after the retention window so results stay
// retrievable for a while without growing forever.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}
