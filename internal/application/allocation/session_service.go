package allocation

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/allocation"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/infrastructure/config"
	"github.com/wms/backend/internal/infrastructure/csvimport"
	"github.com/wms/backend/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
)

// Service-level error codes
const (
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrCodeTooManySessions = "TOO_MANY_SESSIONS"
	ErrCodeNoDemandLoaded  = "NO_DEMAND_LOADED"
)

// AllocationBatchRepository is the persistence port for committed batches
type AllocationBatchRepository interface {
	Create(ctx context.Context, batch *models.AllocationBatchModel) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AllocationBatchModel, error)
	List(ctx context.Context, limit, offset int) ([]models.AllocationBatchModel, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// liveSession pairs a core session with its registry bookkeeping.
// Core operations are serialized per session; commits must be applied
// in the order the user issues them.
type liveSession struct {
	mu             sync.Mutex
	core           *allocation.Session
	sourceFilename string
	createdAt      time.Time
	lastActivityAt time.Time
}

// SessionService keeps the registry of live allocation sessions and
// orchestrates core operations, imports and commits.
type SessionService struct {
	cfg       config.SessionConfig
	importCfg config.ImportConfig
	batchRepo AllocationBatchRepository
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*liveSession
}

// NewSessionService creates a new SessionService
func NewSessionService(cfg config.SessionConfig, importCfg config.ImportConfig, batchRepo AllocationBatchRepository, logger *zap.Logger) *SessionService {
	return &SessionService{
		cfg:       cfg,
		importCfg: importCfg,
		batchRepo: batchRepo,
		logger:    logger.Named("allocation"),
		sessions:  make(map[uuid.UUID]*liveSession),
	}
}

// CreateSession parses an uploaded inventory file and registers a new
// session around the resulting index.
func (s *SessionService) CreateSession(r io.Reader, filename string, enc csvimport.Encoding) (*CreateSessionResult, error) {
	if !enc.IsValid() {
		enc = csvimport.Encoding(s.importCfg.DefaultEncoding)
	}

	read, err := csvimport.ReadInventoryWithLimit(r, s.importCfg.MaxRowErrors, csvimport.WithEncoding(enc))
	if err != nil {
		return nil, err
	}

	idx, build := allocation.BuildIndex(read.Records)
	now := time.Now()
	live := &liveSession{
		core:           allocation.NewSession(idx),
		sourceFilename: filename,
		createdAt:      now,
		lastActivityAt: now,
	}

	s.mu.Lock()
	if len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		return nil, shared.NewDomainError(ErrCodeTooManySessions,
			fmt.Sprintf("session limit of %d reached, discard an old session first", s.cfg.MaxSessions))
	}
	id := uuid.New()
	s.sessions[id] = live
	s.mu.Unlock()

	s.logger.Info("session created",
		zap.String("session_id", id.String()),
		zap.String("filename", filename),
		zap.Int("units", build.UnitCount),
		zap.Int("merged", build.MergedDuplicates),
		zap.Int("skipped", build.SkippedRows+len(read.RowErrors)),
	)

	return &CreateSessionResult{
		Session: SessionResponse{
			ID:             id,
			SourceFilename: filename,
			CreatedAt:      now,
			LastActivityAt: now,
			UnitCount:      build.UnitCount,
		},
		Import: ImportReport{
			RowsImported:     build.UnitCount,
			MergedDuplicates: build.MergedDuplicates,
			SkippedRows:      build.SkippedRows,
			RowErrors:        read.RowErrors,
		},
	}, nil
}

// DeleteSession discards a session and its in-memory state
func (s *SessionService) DeleteSession(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return shared.NewDomainError(ErrCodeSessionNotFound, "session not found")
	}
	delete(s.sessions, id)
	return nil
}

// get fetches a live session and bumps its activity clock
func (s *SessionService) get(id uuid.UUID) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[id]
	if !ok {
		return nil, shared.NewDomainError(ErrCodeSessionNotFound, "session not found")
	}
	live.lastActivityAt = time.Now()
	return live, nil
}

// LoadDemand replaces the session's demand set from free-text input,
// allocating every line greedily and restarting the undo history.
func (s *SessionService) LoadDemand(id uuid.UUID, text string) (*SessionSnapshot, error) {
	live, err := s.get(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()

	lines, skipped := allocation.ParseDemand(text)
	live.core.LoadDemand(lines, skipped)

	s.logger.Info("demand loaded",
		zap.String("session_id", id.String()),
		zap.Int("lines", len(lines)),
		zap.Int("skipped", skipped),
	)
	return s.snapshotLocked(id, live), nil
}

// SetAllocation applies an interactive allocation change
func (s *SessionService) SetAllocation(id uuid.UUID, orderID int, key allocation.UnitKey, qty decimal.Decimal) (*SessionSnapshot, error) {
	live, err := s.get(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()

	if err := live.core.SetAllocation(orderID, key, qty); err != nil {
		return nil, err
	}
	return s.snapshotLocked(id, live), nil
}

// FillAll allocates as much of a unit as the order still has room for
func (s *SessionService) FillAll(id uuid.UUID, orderID int, key allocation.UnitKey) (*SessionSnapshot, error) {
	live, err := s.get(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()

	taken, err := live.core.FillAll(orderID, key)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fill all",
		zap.String("session_id", id.String()),
		zap.Int("order_id", orderID),
		zap.String("location", key.Location),
		zap.String("taken", taken.String()),
	)
	return s.snapshotLocked(id, live), nil
}

// ResetOrder releases all of an order's allocations
func (s *SessionService) ResetOrder(id uuid.UUID, orderID int) (*SessionSnapshot, error) {
	live, err := s.get(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()

	if err := live.core.ResetOrder(orderID); err != nil {
		return nil, err
	}
	return s.snapshotLocked(id, live), nil
}

// Undo reverts the most recent accepted mutation
func (s *SessionService) Undo(id uuid.UUID) (*SessionSnapshot, error) {
	live, err := s.get(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()

	if err := live.core.Undo(); err != nil {
		return nil, err
	}
	return s.snapshotLocked(id, live), nil
}

// Redo reapplies the most recently undone mutation
func (s *SessionService) Redo(id uuid.UUID) (*SessionSnapshot, error) {
	live, err := s.get(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()

	if err := live.core.Redo(); err != nil {
		return nil, err
	}
	return s.snapshotLocked(id, live), nil
}

// Report computes the conflict report for the session's current state
func (s *SessionService) Report(id uuid.UUID) (*allocation.ConflictReport, error) {
	live, err := s.get(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()

	report := live.core.Report()
	return &report, nil
}

// Snapshot returns the session's full current state
func (s *SessionService) Snapshot(id uuid.UUID) (*SessionSnapshot, error) {
	live, err := s.get(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	return s.snapshotLocked(id, live), nil
}

// snapshotLocked builds the API view; the caller holds the session lock
func (s *SessionService) snapshotLocked(id uuid.UUID, live *liveSession) *SessionSnapshot {
	core := live.core
	demands := core.Demands()
	out := &SessionSnapshot{
		Session: SessionResponse{
			ID:             id,
			SourceFilename: live.sourceFilename,
			CreatedAt:      live.createdAt,
			LastActivityAt: live.lastActivityAt,
			UnitCount:      len(core.Index().Units()),
			DemandCount:    len(demands),
		},
		Demands:            make([]DemandLineResponse, 0, len(demands)),
		SkippedDemandLines: core.SkippedDemandLines(),
		Report:             core.Report(),
	}

	for i := range demands {
		d := &demands[i]
		allocs := core.OrderAllocations(d.OrderID)
		line := DemandLineResponse{
			OrderID:           d.OrderID,
			ProductCode:       d.ProductCode,
			RequestedQuantity: d.RequestedQuantity,
			AllocatedQuantity: core.AllocatedQuantity(d.OrderID),
			MinExpiry:         d.MinExpiry,
			Allocations:       make([]AllocationResponse, 0, len(allocs)),
		}
		for _, a := range allocs {
			line.Allocations = append(line.Allocations, AllocationResponse{
				Warehouse: a.UnitKey.Warehouse,
				Location:  a.UnitKey.Location,
				Lot:       a.UnitKey.Lot,
				Expiry:    a.UnitKey.Expiry,
				Quantity:  a.Quantity,
			})
		}
		out.Demands = append(out.Demands, line)
	}
	return out
}

// Commit persists the session's current allocations as a batch
func (s *SessionService) Commit(ctx context.Context, id uuid.UUID, note string) (*CommitResult, error) {
	live, err := s.get(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()

	core := live.core
	demands := core.Demands()
	if len(demands) == 0 {
		return nil, shared.NewDomainError(ErrCodeNoDemandLoaded, "load demand lines before committing")
	}

	batch := &models.AllocationBatchModel{
		SourceFilename: live.sourceFilename,
		Note:           note,
		OrderCount:     len(demands),
		TotalRequested: decimal.Zero,
		TotalAllocated: decimal.Zero,
	}
	for i := range demands {
		d := &demands[i]
		batch.TotalRequested = batch.TotalRequested.Add(d.RequestedQuantity)
		for _, a := range core.OrderAllocations(d.OrderID) {
			batch.TotalAllocated = batch.TotalAllocated.Add(a.Quantity)
			batch.Lines = append(batch.Lines, models.AllocationLineModel{
				OrderID:           a.OrderID,
				ProductCode:       a.UnitKey.ProductCode,
				Warehouse:         a.UnitKey.Warehouse,
				Location:          a.UnitKey.Location,
				Lot:               a.UnitKey.Lot,
				ExpiryDate:        a.UnitKey.Expiry,
				Quantity:          a.Quantity,
				RequestedQuantity: d.RequestedQuantity,
			})
		}
	}

	if err := s.batchRepo.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to persist allocation batch: %w", err)
	}

	s.logger.Info("allocation batch committed",
		zap.String("session_id", id.String()),
		zap.String("batch_id", batch.ID.String()),
		zap.Int("orders", batch.OrderCount),
		zap.Int("lines", len(batch.Lines)),
	)

	return &CommitResult{
		BatchID:        batch.ID,
		OrderCount:     batch.OrderCount,
		LineCount:      len(batch.Lines),
		TotalAllocated: batch.TotalAllocated,
	}, nil
}

// GetBatch loads a previously committed batch
func (s *SessionService) GetBatch(ctx context.Context, id uuid.UUID) (*BatchResponse, error) {
	batch, err := s.batchRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &BatchResponse{
		ID:             batch.ID,
		SourceFilename: batch.SourceFilename,
		Note:           batch.Note,
		OrderCount:     batch.OrderCount,
		TotalRequested: batch.TotalRequested,
		TotalAllocated: batch.TotalAllocated,
		CreatedAt:      batch.CreatedAt,
		Lines:          make([]BatchLineResponse, 0, len(batch.Lines)),
	}
	for _, line := range batch.Lines {
		out.Lines = append(out.Lines, BatchLineResponse{
			OrderID:           line.OrderID,
			ProductCode:       line.ProductCode,
			Warehouse:         line.Warehouse,
			Location:          line.Location,
			Lot:               line.Lot,
			ExpiryDate:        line.ExpiryDate,
			Quantity:          line.Quantity,
			RequestedQuantity: line.RequestedQuantity,
		})
	}
	return out, nil
}

// ListBatches returns committed batch headers newest first
func (s *SessionService) ListBatches(ctx context.Context, page, pageSize int) (*BatchListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	batches, total, err := s.batchRepo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	out := &BatchListResult{
		Batches:  make([]BatchSummary, 0, len(batches)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for i := range batches {
		b := &batches[i]
		out.Batches = append(out.Batches, BatchSummary{
			ID:             b.ID,
			SourceFilename: b.SourceFilename,
			Note:           b.Note,
			OrderCount:     b.OrderCount,
			TotalRequested: b.TotalRequested,
			TotalAllocated: b.TotalAllocated,
			CreatedAt:      b.CreatedAt,
		})
	}
	return out, nil
}

// DeleteBatch removes a committed batch and its lines
func (s *SessionService) DeleteBatch(ctx context.Context, id uuid.UUID) error {
	if err := s.batchRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("allocation batch deleted", zap.String("batch_id", id.String()))
	return nil
}

// Sweep discards sessions idle longer than the configured TTL and
// returns how many were removed.
func (s *SessionService) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, live := range s.sessions {
		if now.Sub(live.lastActivityAt) > s.cfg.IdleTTL {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("swept idle sessions", zap.Int("removed", removed))
	}
	return removed
}

// StartSweeper runs Sweep on the configured interval until ctx is done
func (s *SessionService) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.Sweep(now)
			}
		}
	}()
}

// SessionCount returns the number of live sessions
func (s *SessionService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
