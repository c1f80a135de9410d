package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SergeiKhy/url-service/internal/handler"
	"github.com/SergeiKhy/url-service/internal/locator"
	"github.com/SergeiKhy/url-service/internal/middleware"
	"github.com/SergeiKhy/url-service/internal/models"
	"github.com/SergeiKhy/url-service/internal/service"
	"github.com/SergeiKhy/url-service/internal/service/mocks"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type shortURLResponse struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Locator struct {
		ID      string          `json:"id"`
		Version string          `json:"version"`
		State   json.RawMessage `json:"state"`
	} `json:"locator"`
	AccessCount int64     `json:"accessCount"`
	AccessDate  time.Time `json:"accessDate"`
	CreateDate  time.Time `json:"createDate"`
}

type testEnv struct {
	router  *gin.Engine
	repo    *mocks.MockShortURLRepository
	tracker service.AccessTracker
}

func setupTestEnv(t *testing.T, apiKeys map[string]string) *testEnv {
	t.Helper()

	registry, err := locator.NewDefaultRegistry()
	require.NoError(t, err)

	repo := mocks.NewMockShortURLRepository()
	tracker := service.NewAccessTracker(repo, service.AccessTrackerConfig{Workers: 1, BufferSize: 10}, nil)
	tracker.Start()
	t.Cleanup(tracker.Stop)

	client := service.NewShortURLClient(registry, repo, tracker, service.ShortURLClientConfig{Version: "8.15.0"}, nil)

	var apiKeyMiddleware gin.HandlerFunc
	if len(apiKeys) > 0 {
		apiKeyMiddleware = middleware.RequireAPIKey(apiKeys)
	}

	router := handler.NewRouter(client, tracker, registry, nil, apiKeyMiddleware, handler.RouterConfig{
		BaseURL: "https://kibana.example.com",
		Version: "8.15.0",
	}, nil)

	return &testEnv{router: router, repo: repo, tracker: tracker}
}

func (env *testEnv) do(method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)
	return w
}

func (env *testEnv) create(t *testing.T, body any) shortURLResponse {
	t.Helper()

	w := env.do(http.MethodPost, "/api/short_url", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp shortURLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()

	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestShortURLHandler_Create(t *testing.T) {
	env := setupTestEnv(t, nil)

	resp := env.create(t, gin.H{
		"locatorId": locator.LegacyShortURLLocatorID,
		"params":    gin.H{"url": "/app/test#foo/bar/baz"},
	})

	assert.NotEmpty(t, resp.ID)
	assert.NotEmpty(t, resp.Slug)
	assert.Equal(t, locator.LegacyShortURLLocatorID, resp.Locator.ID)
	assert.Equal(t, "8.15.0", resp.Locator.Version)
	assert.JSONEq(t, `{"url":"/app/test#foo/bar/baz"}`, string(resp.Locator.State))
	assert.Equal(t, int64(0), resp.AccessCount)
	assert.WithinDuration(t, time.Now(), resp.CreateDate, time.Second)
}

func TestShortURLHandler_Create_Errors(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.create(t, gin.H{
		"locatorId": locator.LegacyShortURLLocatorID,
		"params":    gin.H{"url": "/app/test#foo"},
		"slug":      "lala",
	})

	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedCode   string
		expectedMsg    string
	}{
		{
			name: "slug taken",
			body: gin.H{
				"locatorId": locator.LegacyShortURLLocatorID,
				"params":    gin.H{"url": "/app/test#bar"},
				"slug":      "lala",
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "SLUG_EXISTS",
			expectedMsg:    `Slug "lala" already exists.`,
		},
		{
			name:           "unknown locator",
			body:           gin.H{"locatorId": "NOPE", "params": gin.H{}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "LOCATOR_NOT_FOUND",
			expectedMsg:    `Locator "NOPE" not found.`,
		},
		{
			name:           "missing params",
			body:           gin.H{"locatorId": locator.LegacyShortURLLocatorID},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID",
		},
		{
			name: "params of the wrong shape",
			body: gin.H{
				"locatorId": locator.DashboardLocatorID,
				"params":    gin.H{"dashboardId": 42},
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID",
		},
		{
			name: "invalid slug",
			body: gin.H{
				"locatorId": locator.LegacyShortURLLocatorID,
				"params":    gin.H{"url": "/app/test#bar"},
				"slug":      "no spaces",
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/short_url", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)

			errResp := decodeError(t, w)
			assert.Equal(t, tt.expectedCode, string(errResp.Code))
			if tt.expectedMsg != "" {
				assert.Equal(t, tt.expectedMsg, errResp.Message)
			}
		})
	}
}

func TestShortURLHandler_GetAndResolve(t *testing.T) {
	env := setupTestEnv(t, nil)
	created := env.create(t, gin.H{
		"locatorId": locator.DashboardLocatorID,
		"params":    gin.H{"dashboardId": "123", "indexPatternId": "456", "query": "status:500"},
		"slug":      "dash",
	})

	w := env.do(http.MethodGet, "/api/short_url/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got shortURLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "dash", got.Slug)
	assert.JSONEq(t, `{"dashboardId":"123","indexPatternId":"456","query":"status:500"}`, string(got.Locator.State))

	w = env.do(http.MethodGet, "/api/short_url/_slug/dash", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resolved shortURLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolved))
	assert.Equal(t, created.ID, resolved.ID)

	assert.Eventually(t, func() bool {
		record, err := env.repo.Store.GetByID(context.Background(), created.ID)
		return err == nil && record.AccessCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	w = env.do(http.MethodGet, "/api/short_url/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	errResp := decodeError(t, w)
	assert.Equal(t, "NOT_FOUND", string(errResp.Code))
	assert.Equal(t, `No short url with id "missing"`, errResp.Message)

	w = env.do(http.MethodGet, "/api/short_url/_slug/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShortURLHandler_Get_MissingReferenceIsEmptyString(t *testing.T) {
	env := setupTestEnv(t, nil)
	created := env.create(t, gin.H{
		"locatorId": locator.DashboardLocatorID,
		"params":    gin.H{"query": "status:500"},
	})

	w := env.do(http.MethodGet, "/api/short_url/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got shortURLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.JSONEq(t, `{"dashboardId":"","indexPatternId":"","query":"status:500"}`, string(got.Locator.State))
}

func TestShortURLHandler_Update(t *testing.T) {
	env := setupTestEnv(t, nil)
	created := env.create(t, gin.H{
		"locatorId": locator.DashboardLocatorID,
		"params":    gin.H{"dashboardId": "123", "query": "a"},
	})

	w := env.do(http.MethodPut, "/api/short_url/"+created.ID, gin.H{
		"params": gin.H{"query": "b", "indexPatternId": "456"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated shortURLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, created.Slug, updated.Slug)
	assert.JSONEq(t, `{"dashboardId":"123","indexPatternId":"456","query":"b"}`, string(updated.Locator.State))

	w = env.do(http.MethodPut, "/api/short_url/missing", gin.H{"params": gin.H{"query": "b"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPut, "/api/short_url/"+created.ID, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShortURLHandler_Delete(t *testing.T) {
	env := setupTestEnv(t, nil)
	created := env.create(t, gin.H{
		"locatorId": locator.LegacyShortURLLocatorID,
		"params":    gin.H{"url": "/app/test#foo"},
		"slug":      "bye",
	})

	w := env.do(http.MethodDelete, "/api/short_url/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, "/api/short_url/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/r/s/bye", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShortURLHandler_Redirect(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.create(t, gin.H{
		"locatorId": locator.LegacyShortURLLocatorID,
		"params":    gin.H{"url": "/app/test#foo/bar/baz"},
		"slug":      "legacy",
	})
	env.create(t, gin.H{
		"locatorId": locator.DashboardLocatorID,
		"params":    gin.H{"dashboardId": "abc"},
		"slug":      "dash",
	})
	env.create(t, gin.H{
		"locatorId": locator.LegacyShortURLLocatorID,
		"params":    gin.H{"url": "https://evil.example.com/app/x#y"},
		"slug":      "evil",
	})

	w := env.do(http.MethodGet, "/r/s/legacy", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "https://kibana.example.com/app/test#foo/bar/baz", w.Header().Get("Location"))

	w = env.do(http.MethodGet, "/r/s/dash", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "https://kibana.example.com/app/dashboards#/view/abc", w.Header().Get("Location"))

	w = env.do(http.MethodGet, "/r/s/evil", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShortURLHandler_HidesInternalErrors(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.repo.GetByIDFunc = func(context.Context, string) (*models.ShortURLRecord, error) {
		return nil, errors.New("dial tcp 10.0.0.1:5432: connection refused")
	}

	w := env.do(http.MethodGet, "/api/short_url/any", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	errResp := decodeError(t, w)
	assert.Equal(t, "INTERNAL", string(errResp.Code))
	assert.Equal(t, "Internal server error", errResp.Message)
}

func TestRouter_HealthCheck(t *testing.T) {
	env := setupTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status        string             `json:"status"`
		Service       string             `json:"service"`
		Version       string             `json:"version"`
		AccessTracker models.AccessStats `json:"access_tracker"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "url-service", resp.Service)
	assert.Equal(t, "8.15.0", resp.Version)
	assert.Equal(t, 10, resp.AccessTracker.BufferSize)
	assert.Equal(t, 1, resp.AccessTracker.WorkerCount)
}

func TestRouter_APIKey(t *testing.T) {
	env := setupTestEnv(t, map[string]string{"secret": "tests"})
	body := gin.H{
		"locatorId": locator.LegacyShortURLLocatorID,
		"params":    gin.H{"url": "/app/test#foo"},
		"slug":      "keyed",
	}
	w := env.do(http.MethodPost, "/api/short_url", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, "/api/short_url", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "secret")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	// Health and redirects stay public.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/health", nil).Code)
	assert.Equal(t, http.StatusTemporaryRedirect, env.do(http.MethodGet, "/r/s/keyed", nil).Code)
}
