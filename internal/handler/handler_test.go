package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvsf-admin/internal/config"
	"pvsf-admin/internal/docstore"
	"pvsf-admin/internal/handler"
	"pvsf-admin/internal/middleware"
	"pvsf-admin/internal/model"
	"pvsf-admin/internal/repository"
	"pvsf-admin/internal/router"
	"pvsf-admin/internal/service"
)

const testSecret = "test-secret"

type testServer struct {
	handler http.Handler
	store   docstore.Store
	oplog   *service.OplogService
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWith(t, docstore.NewMemoryStore(2), nil)
}

func newTestServerWith(t *testing.T, store docstore.Store, health func(context.Context) error) *testServer {
	t.Helper()

	cfg := &config.Config{
		RequestTimeout:  5 * time.Second,
		JWTSecret:       testSecret,
		CORSOrigins:     []string{"*"},
		RateLimitRPM:    10000,
		RetentionWindow: 720 * time.Hour,
	}

	oplogRepo := repository.NewMemoryOplogRepository()

	oplogSvc := service.NewOplogService(oplogRepo, cfg.RetentionWindow, 0, nil)
	lifecycleSvc := service.NewLifecycleService(store, oplogSvc, cfg.RetentionWindow, nil)
	restoreSvc := service.NewRestoreService(store, oplogSvc, nil)
	cleanupSvc := service.NewCleanupService(store, oplogSvc, 0, nil)

	h := router.New(
		cfg,
		health,
		middleware.NewAuthMiddleware(cfg.JWTSecret),
		handler.NewOplogHandler(oplogSvc, restoreSvc),
		handler.NewLifecycleHandler(lifecycleSvc),
		handler.NewCleanupHandler(cleanupSvc),
	)

	return &testServer{handler: h, store: store, oplog: oplogSvc}
}

func mintToken(t *testing.T, actor string, privileged bool, secret string) string {
	t.Helper()

	claims := middleware.CapabilityClaims{
		Actor:      actor,
		Privileged: privileged,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

func (ts *testServer) do(t *testing.T, method, target, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestAuthGating(t *testing.T) {
	ts := newTestServer(t)

	t.Run("no token", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodGet, "/api/v1/admin/logs", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	})

	t.Run("token signed with the wrong secret", func(t *testing.T) {
		token := mintToken(t, "admin_1", true, "other-secret")
		rec, _ := ts.do(t, http.MethodGet, "/api/v1/admin/logs", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid but unprivileged token", func(t *testing.T) {
		token := mintToken(t, "viewer_1", false, testSecret)
		rec, env := ts.do(t, http.MethodGet, "/api/v1/admin/logs", token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "FORBIDDEN", env.Error.Code)
	})

	t.Run("privileged token without an actor", func(t *testing.T) {
		token := mintToken(t, "", true, testSecret)
		rec, _ := ts.do(t, http.MethodGet, "/api/v1/admin/logs", token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("health needs no token", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy database", func(t *testing.T) {
		ts := newTestServerWith(t, docstore.NewMemoryStore(2), func(context.Context) error { return nil })
		rec, _ := ts.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("unreachable database", func(t *testing.T) {
		ts := newTestServerWith(t, docstore.NewMemoryStore(2), func(context.Context) error {
			return fmt.Errorf("connection refused")
		})
		rec, env := ts.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "STORE_UNAVAILABLE", env.Error.Code)
	})
}

// unavailableStore fails every read the way a dropped database connection
// does, while inheriting the rest of the memory store.
type unavailableStore struct {
	*docstore.MemoryStore
}

func (s *unavailableStore) Get(context.Context, string, string) (model.Document, error) {
	return nil, fmt.Errorf("get document: %w: connection refused", model.ErrStoreUnavailable)
}

func TestStoreUnavailableMapping(t *testing.T) {
	ts := newTestServerWith(t, &unavailableStore{docstore.NewMemoryStore(2)}, nil)
	token := mintToken(t, "admin_1", true, testSecret)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/admin/soft-delete", token,
		model.SoftDeleteRequest{Collection: "videos", ID: "v1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "STORE_UNAVAILABLE", env.Error.Code)
}

func TestSoftDeleteEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := mintToken(t, "admin_1", true, testSecret)
	ctx := context.Background()

	require.NoError(t, ts.store.Set(ctx, "videos", "v1", model.Document{"title": "intro"}))

	t.Run("soft delete stamps the actor from the token", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodPost, "/api/v1/admin/soft-delete", token,
			model.SoftDeleteRequest{Collection: "videos", ID: "v1"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)

		doc, err := ts.store.Get(ctx, "videos", "v1")
		require.NoError(t, err)
		assert.True(t, doc.IsDeleted())
		assert.Equal(t, "admin_1", doc.DeletedBy())
	})

	t.Run("second soft delete conflicts", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodPost, "/api/v1/admin/soft-delete", token,
			model.SoftDeleteRequest{Collection: "videos", ID: "v1"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "CONFLICT", env.Error.Code)
	})

	t.Run("missing document maps to 404", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodPost, "/api/v1/admin/soft-delete", token,
			model.SoftDeleteRequest{Collection: "videos", ID: "nope"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "NOT_FOUND", env.Error.Code)
	})

	t.Run("blank body fields fail before the store", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodPost, "/api/v1/admin/soft-delete", token,
			model.SoftDeleteRequest{Collection: "", ID: ""})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("deleted listing shows the document", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodGet, "/api/v1/admin/deleted?collection=videos", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var data model.DeletedListData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		require.Len(t, data.Items, 1)
		assert.Equal(t, "v1", data.Items[0].ID)
		assert.Equal(t, "admin_1", data.Items[0].DeletedBy)
		require.NotNil(t, env.Meta)
		assert.Equal(t, 1, env.Meta.Count)
	})

	t.Run("restore brings it back", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodPost, "/api/v1/admin/deleted/restore", token,
			model.RestoreDeletedRequest{Collection: "videos", ID: "v1"})
		require.Equal(t, http.StatusOK, rec.Code)

		doc, err := ts.store.Get(ctx, "videos", "v1")
		require.NoError(t, err)
		assert.False(t, doc.IsDeleted())
	})
}

func TestPermanentDeleteEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := mintToken(t, "admin_1", true, testSecret)
	ctx := context.Background()

	require.NoError(t, ts.store.Set(ctx, "videos", "v1", model.Document{
		"title":              "old",
		model.FieldIsDeleted: true,
		model.FieldDeletedAt: model.FormatTimestamp(time.Now().Add(-5 * 24 * time.Hour)),
	}))

	t.Run("retention gate maps to 409 with details", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodPost, "/api/v1/admin/permanent-delete", token,
			model.PermanentDeleteRequest{Collection: "videos", ID: "v1"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "RETENTION_WINDOW", env.Error.Code)
		assert.Contains(t, env.Error.Details, "days_since_deleted=5")
		assert.Contains(t, env.Error.Details, "required_days=30")
	})

	t.Run("force succeeds", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodPost, "/api/v1/admin/permanent-delete", token,
			model.PermanentDeleteRequest{Collection: "videos", ID: "v1", Force: true})
		require.Equal(t, http.StatusOK, rec.Code)

		_, err := ts.store.Get(ctx, "videos", "v1")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestLogEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := mintToken(t, "admin_1", true, testSecret)
	ctx := context.Background()

	require.NoError(t, ts.store.Set(ctx, "videos", "v1", model.Document{"title": "intro"}))
	rec, _ := ts.do(t, http.MethodPost, "/api/v1/admin/soft-delete", token,
		model.SoftDeleteRequest{Collection: "videos", ID: "v1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var entryID string

	t.Run("listing returns the soft delete entry", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodGet, "/api/v1/admin/logs?collection=videos", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var data model.LogListData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		require.Len(t, data.Items, 1)
		assert.Equal(t, "v1", data.Items[0].TargetDocID)
		assert.Equal(t, model.OperationUpdate, data.Items[0].OperationType)
		entryID = data.Items[0].ID
	})

	t.Run("unknown operation_type filter is rejected", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodGet, "/api/v1/admin/logs?operation_type=merge", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("restore from log overwrites the document", func(t *testing.T) {
		require.NotEmpty(t, entryID)

		rec, env := ts.do(t, http.MethodPost, "/api/v1/admin/logs/restore", token,
			model.RestoreFromLogRequest{LogEntryID: entryID})
		require.Equal(t, http.StatusOK, rec.Code)

		var data model.RestoreFromLogResponse
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "v1", data.RestoredDocID)

		doc, err := ts.store.Get(ctx, "videos", "v1")
		require.NoError(t, err)
		assert.False(t, doc.IsDeleted())
	})

	t.Run("unknown log entry maps to 404", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodPost, "/api/v1/admin/logs/restore", token,
			model.RestoreFromLogRequest{LogEntryID: "no-such-entry"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("purge reports zero when nothing expired", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodPost, "/api/v1/admin/logs/purge", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var data model.PurgeResponse
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, int64(0), data.DeletedCount)
	})
}

func TestCleanupEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := mintToken(t, "admin_1", true, testSecret)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("v%d", i)
		require.NoError(t, ts.store.Set(ctx, "videos", id, model.Document{
			"title": id,
			"date":  fmt.Sprintf("2025-0%d-01T00:00:00Z", i+1),
		}))
	}

	t.Run("candidates before a cutoff", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodGet,
			"/api/v1/admin/cleanup/candidates?collection=videos&before=2025-03-01T00:00:00Z", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var data model.CleanupCandidatesData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		require.Len(t, data.Items, 2)
		assert.Equal(t, "v1", data.Items[0].DocID)
	})

	t.Run("missing before param", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodGet, "/api/v1/admin/cleanup/candidates?collection=videos", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("partial batch failure carries the stamped count", func(t *testing.T) {
		// Store max batch is 2: the first sub-batch lands, the second fails.
		rec, env := ts.do(t, http.MethodPost, "/api/v1/admin/cleanup/soft-delete", token,
			model.BatchSoftDeleteRequest{Collection: "videos", IDs: []string{"v0", "v1", "v2", "missing"}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "NOT_FOUND", env.Error.Code)

		var data model.BatchSoftDeleteResponse
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, 2, data.Count)
	})

	t.Run("resuming past the stamped prefix conflicts benignly", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodPost, "/api/v1/admin/cleanup/soft-delete", token,
			model.BatchSoftDeleteRequest{Collection: "videos", IDs: []string{"v0"}})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("empty ids", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodPost, "/api/v1/admin/cleanup/soft-delete", token,
			model.BatchSoftDeleteRequest{Collection: "videos", IDs: nil})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "EMPTY_INPUT", env.Error.Code)
	})
}
