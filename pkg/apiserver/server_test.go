package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codehaven/codehaven/pkg/auth"
	"github.com/codehaven/codehaven/pkg/catalog"
	"github.com/codehaven/codehaven/pkg/config"
	"github.com/codehaven/codehaven/pkg/model"
)

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret: "test-secret",
			TokenTTL:  time.Hour,
		},
	}
}

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]model.ResourceTier{
			{ID: "starter", Name: "Starter", CPUCores: 2, MemoryGB: 4, StorageGB: 20, IsDefault: true, SortOrder: 1},
		},
		[]model.Addon{
			{ID: "code-server", Name: "Code Server", Category: model.AddonInterface},
		},
	)
}

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(nil, nil, testCatalog(), testConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()

	server.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}

	var response healthResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "ok" {
		t.Fatalf("expected status ok, got %q", response.Status)
	}
}

func TestAPIAuthRequired(t *testing.T) {
	server := NewServer(nil, nil, testCatalog(), testConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sandboxes", nil)
	recorder := httptest.NewRecorder()

	server.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, recorder.Code)
	}

	var response errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Error != "missing authorization" {
		t.Fatalf("expected missing authorization error, got %q", response.Error)
	}
}

func TestAuthenticatedCatalogListing(t *testing.T) {
	cfg := testConfig()
	server := NewServer(nil, nil, testCatalog(), cfg, zap.NewNop())

	tokens := auth.NewSessionTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	token, err := tokens.Generate(uuid.New())
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tiers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()

	server.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, recorder.Code, recorder.Body.String())
	}

	var response struct {
		Tiers []struct {
			ID string `json:"id"`
		} `json:"tiers"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Tiers) != 1 || response.Tiers[0].ID != "starter" {
		t.Fatalf("unexpected tiers payload: %+v", response.Tiers)
	}
}

func TestRejectsGarbageToken(t *testing.T) {
	server := NewServer(nil, nil, testCatalog(), testConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tiers", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	recorder := httptest.NewRecorder()

	server.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, recorder.Code)
	}
}
