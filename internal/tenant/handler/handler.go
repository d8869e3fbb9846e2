// Package handler exposes tenant administration over HTTP. Handlers stay
// thin; all rules live in the tenant service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"obligo/internal/tenant/models"
	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/platform/httputil"
	"obligo/pkg/requestcontext"
)

// Service defines the tenant operations the handler needs.
type Service interface {
	CreateTenant(ctx context.Context, name string) (*models.Tenant, string, error)
	GetTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	ListTenants(ctx context.Context) ([]*models.Tenant, error)
	DeactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	ReactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	RotateSecret(ctx context.Context, tenantID id.TenantID) (string, error)
	DeleteTenantData(ctx context.Context, tenantID id.TenantID) (int, error)
	CreateEntity(ctx context.Context, tenantID id.TenantID, name string) (*models.Entity, error)
	ListEntities(ctx context.Context, tenantID id.TenantID) ([]*models.Entity, error)
	DeactivateEntity(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
	ReactivateEntity(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
	AssignRole(ctx context.Context, tenantID id.TenantID, roleCode string, userID id.UserID) (*models.RoleAssignment, error)
	UnassignRole(ctx context.Context, tenantID id.TenantID, roleCode string) error
	ListRoles(ctx context.Context, tenantID id.TenantID) ([]*models.RoleAssignment, error)
}

// Handler wires tenant administration endpoints to the tenant service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a tenant handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts tenant administration endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/tenants", func(r chi.Router) {
		r.Post("/", h.HandleCreateTenant)
		r.Get("/", h.HandleListTenants)
		r.Route("/{tenantID}", func(r chi.Router) {
			r.Get("/", h.HandleGetTenant)
			r.Post("/deactivate", h.HandleDeactivateTenant)
			r.Post("/reactivate", h.HandleReactivateTenant)
			r.Post("/secret/rotate", h.HandleRotateSecret)
			r.Delete("/data", h.HandleDeleteTenantData)
			r.Post("/entities", h.HandleCreateEntity)
			r.Get("/entities", h.HandleListEntities)
			r.Put("/roles", h.HandleAssignRole)
			r.Get("/roles", h.HandleListRoles)
			r.Delete("/roles/{roleCode}", h.HandleUnassignRole)
		})
	})
	r.Route("/entities/{entityID}", func(r chi.Router) {
		r.Post("/deactivate", h.HandleDeactivateEntity)
		r.Post("/reactivate", h.HandleReactivateEntity)
	})
}

// HandleCreateTenant handles POST /admin/tenants.
func (h *Handler) HandleCreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateTenantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tenant, secret, err := h.service.CreateTenant(ctx, req.Name)
	if err != nil {
		h.logger.ErrorContext(ctx, "tenant creation failed",
			"request_id", requestID,
			"name", req.Name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "tenant created",
		"request_id", requestID,
		"tenant_id", tenant.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromTenantWithSecret(tenant, secret))
}

// HandleListTenants handles GET /admin/tenants.
func (h *Handler) HandleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.service.ListTenants(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTenants(tenants))
}

// HandleGetTenant handles GET /admin/tenants/{tenantID}.
func (h *Handler) HandleGetTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}
	tenant, err := h.service.GetTenant(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTenant(tenant))
}

// HandleDeactivateTenant handles POST /admin/tenants/{tenantID}/deactivate.
func (h *Handler) HandleDeactivateTenant(w http.ResponseWriter, r *http.Request) {
	h.tenantTransition(w, r, h.service.DeactivateTenant)
}

// HandleReactivateTenant handles POST /admin/tenants/{tenantID}/reactivate.
func (h *Handler) HandleReactivateTenant(w http.ResponseWriter, r *http.Request) {
	h.tenantTransition(w, r, h.service.ReactivateTenant)
}

func (h *Handler) tenantTransition(w http.ResponseWriter, r *http.Request, op func(context.Context, id.TenantID) (*models.Tenant, error)) {
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}
	tenant, err := op(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTenant(tenant))
}

// HandleRotateSecret handles POST /admin/tenants/{tenantID}/secret/rotate.
// The fresh secret is returned exactly once.
func (h *Handler) HandleRotateSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}
	secret, err := h.service.RotateSecret(ctx, tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "tenant secret rotated",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
	)
	httputil.WriteJSON(w, http.StatusOK, SecretResponse{Secret: secret})
}

// HandleDeleteTenantData handles DELETE /admin/tenants/{tenantID}/data.
func (h *Handler) HandleDeleteTenantData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}
	removed, err := h.service.DeleteTenantData(ctx, tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "tenant data purged",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
		"removed", removed,
	)
	httputil.WriteJSON(w, http.StatusOK, PurgeResponse{Removed: removed})
}

// HandleCreateEntity handles POST /admin/tenants/{tenantID}/entities.
func (h *Handler) HandleCreateEntity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateEntityRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	entity, err := h.service.CreateEntity(ctx, tenantID, req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromEntity(entity))
}

// HandleListEntities handles GET /admin/tenants/{tenantID}/entities.
func (h *Handler) HandleListEntities(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}
	entities, err := h.service.ListEntities(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEntities(entities))
}

// HandleDeactivateEntity handles POST /admin/entities/{entityID}/deactivate.
func (h *Handler) HandleDeactivateEntity(w http.ResponseWriter, r *http.Request) {
	h.entityTransition(w, r, h.service.DeactivateEntity)
}

// HandleReactivateEntity handles POST /admin/entities/{entityID}/reactivate.
func (h *Handler) HandleReactivateEntity(w http.ResponseWriter, r *http.Request) {
	h.entityTransition(w, r, h.service.ReactivateEntity)
}

func (h *Handler) entityTransition(w http.ResponseWriter, r *http.Request, op func(context.Context, id.EntityID) (*models.Entity, error)) {
	entityID, err := id.ParseEntityID(chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid entity id"))
		return
	}
	entity, err := op(r.Context(), entityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEntity(entity))
}

// HandleAssignRole handles PUT /admin/tenants/{tenantID}/roles.
func (h *Handler) HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AssignRoleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	assignment, err := h.service.AssignRole(ctx, tenantID, req.RoleCode, req.ParsedUserID())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRoleAssignment(assignment))
}

// HandleListRoles handles GET /admin/tenants/{tenantID}/roles.
func (h *Handler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}
	assignments, err := h.service.ListRoles(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRoleAssignments(assignments))
}

// HandleUnassignRole handles DELETE /admin/tenants/{tenantID}/roles/{roleCode}.
func (h *Handler) HandleUnassignRole(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.UnassignRole(r.Context(), tenantID, chi.URLParam(r, "roleCode")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func tenantIDParam(w http.ResponseWriter, r *http.Request) (id.TenantID, bool) {
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return id.TenantID{}, false
	}
	return tenantID, true
}
