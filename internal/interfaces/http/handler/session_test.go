package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appallocation "github.com/wms/backend/internal/application/allocation"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/infrastructure/config"
	"github.com/wms/backend/internal/infrastructure/persistence/models"
	"github.com/wms/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const handlerInventoryCSV = "product_code,warehouse,location,lot,expiry_date,quantity\n" +
	"A1,W1,X1,L1,2025-01-01,100\n" +
	"A1,W1,X2,L2,2025-06-01,50\n"

type memoryBatchRepo struct {
	batches map[uuid.UUID]*models.AllocationBatchModel
}

func (m *memoryBatchRepo) Create(_ context.Context, batch *models.AllocationBatchModel) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	m.batches[batch.ID] = batch
	return nil
}

func (m *memoryBatchRepo) FindByID(_ context.Context, id uuid.UUID) (*models.AllocationBatchModel, error) {
	batch, ok := m.batches[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return batch, nil
}

func (m *memoryBatchRepo) List(_ context.Context, limit, _ int) ([]models.AllocationBatchModel, int64, error) {
	out := make([]models.AllocationBatchModel, 0, len(m.batches))
	for _, b := range m.batches {
		if len(out) >= limit {
			break
		}
		out = append(out, *b)
	}
	return out, int64(len(m.batches)), nil
}

func (m *memoryBatchRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.batches[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.batches, id)
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	service := appallocation.NewSessionService(
		config.SessionConfig{IdleTTL: time.Hour, SweepInterval: time.Minute, MaxSessions: 10},
		config.ImportConfig{MaxRowErrors: 100, DefaultEncoding: "utf-8"},
		&memoryBatchRepo{batches: make(map[uuid.UUID]*models.AllocationBatchModel)},
		zap.NewNop(),
	)

	engine := gin.New()
	router.NewRouter(engine).
		Register(NewSessionHandler(service)).
		Register(NewBatchHandler(service)).
		Setup()
	return engine
}

func uploadCSV(t *testing.T, engine *gin.Engine, content string) (uuid.UUID, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "stock.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode(t, w)
	var result appallocation.CreateSessionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	return result.Session.ID, env
}

func doJSON(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestCreateSessionEndpoint(t *testing.T) {
	t.Run("upload opens a session", func(t *testing.T) {
		engine := newTestEngine(t)
		id, env := uploadCSV(t, engine, handlerInventoryCSV)
		assert.True(t, env.Success)
		assert.NotEqual(t, uuid.Nil, id)
	})

	t.Run("missing file is a bad request", func(t *testing.T) {
		engine := newTestEngine(t)
		w := doJSON(engine, http.MethodPost, "/api/v1/sessions", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing required column is a bad request", func(t *testing.T) {
		engine := newTestEngine(t)
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "stock.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte("warehouse,quantity\nW1,10\n"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		assert.Equal(t, "ERR_IMPORT_MISSING_COLUMN", env.Error.Code)
	})
}

func TestSessionEndpoints(t *testing.T) {
	t.Run("demand then interactive edit", func(t *testing.T) {
		engine := newTestEngine(t)
		id, _ := uploadCSV(t, engine, handlerInventoryCSV)

		w := doJSON(engine, http.MethodPost, "/api/v1/sessions/"+id.String()+"/demand", `{"text":"A1 120"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		env := decode(t, w)
		var snap appallocation.SessionSnapshot
		require.NoError(t, json.Unmarshal(env.Data, &snap))
		require.Len(t, snap.Demands, 1)
		assert.Equal(t, "120", snap.Demands[0].AllocatedQuantity.String())

		body := `{"product_code":"A1","warehouse":"W1","location":"X1","lot":"L1","expiry":"2025-01-01","quantity":80}`
		w = doJSON(engine, http.MethodPut, "/api/v1/sessions/"+id.String()+"/orders/1/allocations", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("over-allocation is unprocessable", func(t *testing.T) {
		engine := newTestEngine(t)
		id, _ := uploadCSV(t, engine, handlerInventoryCSV)
		doJSON(engine, http.MethodPost, "/api/v1/sessions/"+id.String()+"/demand", `{"text":"A1 120"}`)

		body := `{"product_code":"A1","warehouse":"W1","location":"X2","lot":"L2","expiry":"2025-06-01","quantity":50}`
		w := doJSON(engine, http.MethodPut, "/api/v1/sessions/"+id.String()+"/orders/1/allocations", body)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env := decode(t, w)
		assert.Equal(t, "EXCEEDS_REQUESTED", env.Error.Code)
	})

	t.Run("undo at the baseline conflicts", func(t *testing.T) {
		engine := newTestEngine(t)
		id, _ := uploadCSV(t, engine, handlerInventoryCSV)
		doJSON(engine, http.MethodPost, "/api/v1/sessions/"+id.String()+"/demand", `{"text":"A1 10"}`)

		w := doJSON(engine, http.MethodPost, "/api/v1/sessions/"+id.String()+"/undo", "")
		assert.Equal(t, http.StatusConflict, w.Code)
		env := decode(t, w)
		assert.Equal(t, "NOTHING_TO_UNDO", env.Error.Code)
	})

	t.Run("unknown session is not found", func(t *testing.T) {
		engine := newTestEngine(t)
		w := doJSON(engine, http.MethodGet, "/api/v1/sessions/"+uuid.NewString(), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed ids are bad requests", func(t *testing.T) {
		engine := newTestEngine(t)
		w := doJSON(engine, http.MethodGet, "/api/v1/sessions/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		id, _ := uploadCSV(t, engine, handlerInventoryCSV)
		w = doJSON(engine, http.MethodDelete, "/api/v1/sessions/"+id.String()+"/orders/zero/allocations", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("report is served standalone", func(t *testing.T) {
		engine := newTestEngine(t)
		id, _ := uploadCSV(t, engine, handlerInventoryCSV)
		doJSON(engine, http.MethodPost, "/api/v1/sessions/"+id.String()+"/demand", `{"text":"A1 10\nGHOST 5"}`)

		w := doJSON(engine, http.MethodGet, "/api/v1/sessions/"+id.String()+"/report", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "GHOST")
	})

	t.Run("delete then access", func(t *testing.T) {
		engine := newTestEngine(t)
		id, _ := uploadCSV(t, engine, handlerInventoryCSV)

		w := doJSON(engine, http.MethodDelete, "/api/v1/sessions/"+id.String(), "")
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doJSON(engine, http.MethodGet, "/api/v1/sessions/"+id.String(), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCommitAndBatchEndpoints(t *testing.T) {
	t.Run("commit then fetch the batch", func(t *testing.T) {
		engine := newTestEngine(t)
		id, _ := uploadCSV(t, engine, handlerInventoryCSV)
		doJSON(engine, http.MethodPost, "/api/v1/sessions/"+id.String()+"/demand", `{"text":"A1 120"}`)

		w := doJSON(engine, http.MethodPost, "/api/v1/sessions/"+id.String()+"/commit", `{"note":"weekly run"}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		env := decode(t, w)
		var result appallocation.CommitResult
		require.NoError(t, json.Unmarshal(env.Data, &result))
		assert.Equal(t, 2, result.LineCount)

		w = doJSON(engine, http.MethodGet, fmt.Sprintf("/api/v1/batches/%s", result.BatchID), "")
		require.Equal(t, http.StatusOK, w.Code)
		var batch appallocation.BatchResponse
		env = decode(t, w)
		require.NoError(t, json.Unmarshal(env.Data, &batch))
		assert.Equal(t, "weekly run", batch.Note)
		assert.Len(t, batch.Lines, 2)
	})

	t.Run("commit without demand is unprocessable", func(t *testing.T) {
		engine := newTestEngine(t)
		id, _ := uploadCSV(t, engine, handlerInventoryCSV)

		w := doJSON(engine, http.MethodPost, "/api/v1/sessions/"+id.String()+"/commit", "")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("unknown batch is not found", func(t *testing.T) {
		engine := newTestEngine(t)
		w := doJSON(engine, http.MethodGet, "/api/v1/batches/"+uuid.NewString(), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list and delete batches", func(t *testing.T) {
		engine := newTestEngine(t)
		id, _ := uploadCSV(t, engine, handlerInventoryCSV)
		doJSON(engine, http.MethodPost, "/api/v1/sessions/"+id.String()+"/demand", `{"text":"A1 120"}`)
		w := doJSON(engine, http.MethodPost, "/api/v1/sessions/"+id.String()+"/commit", "")
		require.Equal(t, http.StatusCreated, w.Code)
		env := decode(t, w)
		var committed appallocation.CommitResult
		require.NoError(t, json.Unmarshal(env.Data, &committed))

		w = doJSON(engine, http.MethodGet, "/api/v1/batches", "")
		require.Equal(t, http.StatusOK, w.Code)
		var list appallocation.BatchListResult
		env = decode(t, w)
		require.NoError(t, json.Unmarshal(env.Data, &list))
		assert.Equal(t, int64(1), list.Total)

		w = doJSON(engine, http.MethodDelete, "/api/v1/batches/"+committed.BatchID.String(), "")
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doJSON(engine, http.MethodGet, "/api/v1/batches/"+committed.BatchID.String(), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
