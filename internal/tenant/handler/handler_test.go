package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"obligo/internal/platform/middleware"
	"obligo/internal/tenant/service"
	entityStore "obligo/internal/tenant/store/entity"
	roleStore "obligo/internal/tenant/store/role"
	tenantStore "obligo/internal/tenant/store/tenant"
)

const signingKey = "test-signing-key"

func mintToken(t *testing.T, admin bool) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": uuid.New().String(),
		"admin":   admin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newAdminRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(tenantStore.NewMemory(), entityStore.NewMemory(), roleStore.NewMemory())
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(svc, logger)
	r := chi.NewRouter()
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAuth(middleware.NewHS256Validator(signingKey), logger))
		r.Use(middleware.RequireAdmin(logger))
		h.Register(r)
	})
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAdminAuthRequired(t *testing.T) {
	router := newAdminRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/admin/tenants", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/admin/tenants", mintToken(t, false), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without the admin claim, got %d", rec.Code)
	}
}

func TestTenantLifecycleViaHandlers(t *testing.T) {
	router := newAdminRouter(t)
	token := mintToken(t, true)

	rec := doJSON(t, router, http.MethodPost, "/admin/tenants", token, map[string]string{"name": "Acme"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating tenant, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID     uuid.UUID `json:"id"`
		Secret string    `json:"secret"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == uuid.Nil || created.Secret == "" {
		t.Fatalf("expected tenant id and one-time secret in response")
	}

	rec = doJSON(t, router, http.MethodGet, "/admin/tenants/"+created.ID.String(), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching tenant, got %d", rec.Code)
	}
	var fetched struct {
		Status string `json:"status"`
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode fetch response: %v", err)
	}
	if fetched.Status != "active" {
		t.Fatalf("expected active tenant, got %q", fetched.Status)
	}
	if fetched.Secret != "" {
		t.Fatalf("secret must only appear in the creation response")
	}

	rec = doJSON(t, router, http.MethodPost, "/admin/tenants/"+created.ID.String()+"/deactivate", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 deactivating tenant, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/admin/tenants/"+created.ID.String()+"/deactivate", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 deactivating twice, got %d", rec.Code)
	}
}

func TestDuplicateTenantNameConflicts(t *testing.T) {
	router := newAdminRouter(t)
	token := mintToken(t, true)

	rec := doJSON(t, router, http.MethodPost, "/admin/tenants", token, map[string]string{"name": "Acme"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/admin/tenants", token, map[string]string{"name": "acme"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d", rec.Code)
	}
}

func TestEntityAndRoleAdministration(t *testing.T) {
	router := newAdminRouter(t)
	token := mintToken(t, true)

	rec := doJSON(t, router, http.MethodPost, "/admin/tenants", token, map[string]string{"name": "Acme"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating tenant, got %d", rec.Code)
	}
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	base := "/admin/tenants/" + created.ID.String()

	rec = doJSON(t, router, http.MethodPost, base+"/entities", token, map[string]string{"name": "Acme GmbH"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating entity, got %d: %s", rec.Code, rec.Body.String())
	}
	var entity struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&entity); err != nil {
		t.Fatalf("decode entity response: %v", err)
	}

	rec = doJSON(t, router, http.MethodGet, base+"/entities", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing entities, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/admin/entities/"+entity.ID.String()+"/deactivate", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 deactivating entity, got %d", rec.Code)
	}

	userID := uuid.New().String()
	rec = doJSON(t, router, http.MethodPut, base+"/roles", token, map[string]string{
		"role_code": "preparer",
		"user_id":   userID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 assigning role, got %d: %s", rec.Code, rec.Body.String())
	}
	var assignment struct {
		RoleCode string    `json:"role_code"`
		UserID   uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&assignment); err != nil {
		t.Fatalf("decode role response: %v", err)
	}
	if assignment.RoleCode != "preparer" || assignment.UserID.String() != userID {
		t.Fatalf("unexpected role assignment: %+v", assignment)
	}

	rec = doJSON(t, router, http.MethodDelete, base+"/roles/preparer", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 unassigning role, got %d", rec.Code)
	}
}

func TestSecretRotationViaHandler(t *testing.T) {
	router := newAdminRouter(t)
	token := mintToken(t, true)

	rec := doJSON(t, router, http.MethodPost, "/admin/tenants", token, map[string]string{"name": "Acme"})
	var created struct {
		ID     uuid.UUID `json:"id"`
		Secret string    `json:"secret"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, "/admin/tenants/"+created.ID.String()+"/secret/rotate", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 rotating secret, got %d", rec.Code)
	}
	var rotated struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&rotated); err != nil {
		t.Fatalf("decode rotate response: %v", err)
	}
	if rotated.Secret == "" || rotated.Secret == created.Secret {
		t.Fatalf("expected a fresh secret")
	}
}

func TestInvalidTenantIDIsBadRequest(t *testing.T) {
	router := newAdminRouter(t)
	token := mintToken(t, true)

	rec := doJSON(t, router, http.MethodGet, "/admin/tenants/not-a-uuid", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}
