package allocation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms/backend/internal/domain/allocation"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/infrastructure/config"
	"github.com/wms/backend/internal/infrastructure/csvimport"
	"github.com/wms/backend/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
)

const inventoryCSV = "product_code,warehouse,location,lot,expiry_date,quantity\n" +
	"A1,W1,X1,L1,2025-01-01,100\n" +
	"A1,W1,X2,L2,2025-06-01,50\n" +
	"B2,W1,Y1,,,30\n"

type fakeBatchRepo struct {
	batches map[uuid.UUID]*models.AllocationBatchModel
	err     error
}

func newFakeBatchRepo() *fakeBatchRepo {
	return &fakeBatchRepo{batches: make(map[uuid.UUID]*models.AllocationBatchModel)}
}

func (f *fakeBatchRepo) Create(_ context.Context, batch *models.AllocationBatchModel) error {
	if f.err != nil {
		return f.err
	}
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	f.batches[batch.ID] = batch
	return nil
}

func (f *fakeBatchRepo) FindByID(_ context.Context, id uuid.UUID) (*models.AllocationBatchModel, error) {
	batch, ok := f.batches[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return batch, nil
}

func (f *fakeBatchRepo) List(_ context.Context, limit, _ int) ([]models.AllocationBatchModel, int64, error) {
	out := make([]models.AllocationBatchModel, 0, len(f.batches))
	for _, b := range f.batches {
		if len(out) >= limit {
			break
		}
		out = append(out, *b)
	}
	return out, int64(len(f.batches)), nil
}

func (f *fakeBatchRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.batches[id]; !ok {
		return shared.ErrNotFound
	}
	delete(f.batches, id)
	return nil
}

func newTestService(t *testing.T) (*SessionService, *fakeBatchRepo) {
	t.Helper()
	repo := newFakeBatchRepo()
	svc := NewSessionService(
		config.SessionConfig{IdleTTL: time.Hour, SweepInterval: time.Minute, MaxSessions: 3},
		config.ImportConfig{MaxRowErrors: 100, DefaultEncoding: "utf-8"},
		repo,
		zap.NewNop(),
	)
	return svc, repo
}

func createSession(t *testing.T, svc *SessionService) uuid.UUID {
	t.Helper()
	result, err := svc.CreateSession(strings.NewReader(inventoryCSV), "stock.csv", csvimport.EncodingUTF8)
	require.NoError(t, err)
	return result.Session.ID
}

func TestCreateSession(t *testing.T) {
	t.Run("builds an index from the upload", func(t *testing.T) {
		svc, _ := newTestService(t)
		result, err := svc.CreateSession(strings.NewReader(inventoryCSV), "stock.csv", csvimport.EncodingUTF8)
		require.NoError(t, err)

		assert.Equal(t, 3, result.Import.RowsImported)
		assert.Equal(t, 0, result.Import.MergedDuplicates)
		assert.Equal(t, "stock.csv", result.Session.SourceFilename)
		assert.Equal(t, 1, svc.SessionCount())
	})

	t.Run("structural upload failures do not register a session", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.CreateSession(strings.NewReader("warehouse,quantity\nW1,10\n"), "bad.csv", csvimport.EncodingUTF8)
		require.Error(t, err)
		assert.Equal(t, 0, svc.SessionCount())
	})

	t.Run("enforces the session limit", func(t *testing.T) {
		svc, _ := newTestService(t)
		for range 3 {
			createSession(t, svc)
		}
		_, err := svc.CreateSession(strings.NewReader(inventoryCSV), "stock.csv", csvimport.EncodingUTF8)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, ErrCodeTooManySessions, domainErr.Code)
	})

	t.Run("unknown encoding falls back to the configured default", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.CreateSession(strings.NewReader(inventoryCSV), "stock.csv", csvimport.Encoding("ebcdic"))
		require.NoError(t, err)
	})
}

func TestSessionLifecycle(t *testing.T) {
	t.Run("load demand allocates greedily", func(t *testing.T) {
		svc, _ := newTestService(t)
		id := createSession(t, svc)

		snap, err := svc.LoadDemand(id, "A1 120\nB2 10\nGHOST 5")
		require.NoError(t, err)
		require.Len(t, snap.Demands, 3)

		a1 := snap.Demands[0]
		assert.True(t, a1.AllocatedQuantity.Equal(decimal.NewFromInt(120)))
		require.Len(t, a1.Allocations, 2)
		assert.Equal(t, "X1", a1.Allocations[0].Location)
		assert.Equal(t, "X2", a1.Allocations[1].Location)

		require.Len(t, snap.Report.NoInventory, 1)
		assert.Equal(t, "GHOST", snap.Report.NoInventory[0].ProductCode)
	})

	t.Run("interactive flow with undo and redo", func(t *testing.T) {
		svc, _ := newTestService(t)
		id := createSession(t, svc)
		_, err := svc.LoadDemand(id, "B2 10")
		require.NoError(t, err)

		key := allocation.UnitKey{ProductCode: "B2", Warehouse: "W1", Location: "Y1"}
		snap, err := svc.SetAllocation(id, 1, key, decimal.NewFromInt(5))
		require.NoError(t, err)
		assert.True(t, snap.Demands[0].AllocatedQuantity.Equal(decimal.NewFromInt(5)))

		snap, err = svc.Undo(id)
		require.NoError(t, err)
		assert.True(t, snap.Demands[0].AllocatedQuantity.Equal(decimal.NewFromInt(10)), "back to the greedy state")

		snap, err = svc.Redo(id)
		require.NoError(t, err)
		assert.True(t, snap.Demands[0].AllocatedQuantity.Equal(decimal.NewFromInt(5)))
	})

	t.Run("core rejections pass through unchanged", func(t *testing.T) {
		svc, _ := newTestService(t)
		id := createSession(t, svc)
		_, err := svc.LoadDemand(id, "B2 10")
		require.NoError(t, err)

		key := allocation.UnitKey{ProductCode: "B2", Warehouse: "W1", Location: "Y1"}
		_, err = svc.SetAllocation(id, 1, key, decimal.NewFromInt(-1))
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, allocation.ErrCodeNegativeQuantity, domainErr.Code)
	})

	t.Run("operations on unknown sessions fail", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Snapshot(uuid.New())
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, ErrCodeSessionNotFound, domainErr.Code)
	})

	t.Run("delete discards the session", func(t *testing.T) {
		svc, _ := newTestService(t)
		id := createSession(t, svc)
		require.NoError(t, svc.DeleteSession(id))
		assert.Equal(t, 0, svc.SessionCount())
		assert.Error(t, svc.DeleteSession(id))
	})
}

func TestCommit(t *testing.T) {
	t.Run("persists lines with requested totals", func(t *testing.T) {
		svc, repo := newTestService(t)
		id := createSession(t, svc)
		_, err := svc.LoadDemand(id, "A1 120")
		require.NoError(t, err)

		result, err := svc.Commit(context.Background(), id, "weekly run")
		require.NoError(t, err)
		assert.Equal(t, 1, result.OrderCount)
		assert.Equal(t, 2, result.LineCount)
		assert.True(t, result.TotalAllocated.Equal(decimal.NewFromInt(120)))

		stored := repo.batches[result.BatchID]
		require.NotNil(t, stored)
		assert.Equal(t, "stock.csv", stored.SourceFilename)
		assert.Equal(t, "weekly run", stored.Note)
		require.Len(t, stored.Lines, 2)
		assert.True(t, stored.Lines[0].RequestedQuantity.Equal(decimal.NewFromInt(120)))
	})

	t.Run("commit without demand is rejected", func(t *testing.T) {
		svc, _ := newTestService(t)
		id := createSession(t, svc)
		_, err := svc.Commit(context.Background(), id, "")
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, ErrCodeNoDemandLoaded, domainErr.Code)
	})

	t.Run("get batch round-trips", func(t *testing.T) {
		svc, _ := newTestService(t)
		id := createSession(t, svc)
		_, err := svc.LoadDemand(id, "A1 120")
		require.NoError(t, err)
		committed, err := svc.Commit(context.Background(), id, "")
		require.NoError(t, err)

		batch, err := svc.GetBatch(context.Background(), committed.BatchID)
		require.NoError(t, err)
		assert.Equal(t, committed.BatchID, batch.ID)
		assert.Len(t, batch.Lines, 2)
	})
}

func TestSweep(t *testing.T) {
	svc, _ := newTestService(t)
	id := createSession(t, svc)

	assert.Equal(t, 0, svc.Sweep(time.Now()))
	assert.Equal(t, 1, svc.Sweep(time.Now().Add(2*time.Hour)))
	assert.Equal(t, 0, svc.SessionCount())

	_, err := svc.Snapshot(id)
	assert.Error(t, err)
}
