// Package handler exposes the compliance surface over HTTP: master template
// administration and the manual workflow on instances. Handlers stay thin;
// graph validation and tenant scoping live in the services.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"obligo/internal/compliance/catalog"
	"obligo/internal/compliance/models"
	"obligo/internal/platform/middleware"
	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/platform/httputil"
	"obligo/pkg/requestcontext"
)

// CatalogService defines the master template operations the handler needs.
type CatalogService interface {
	CreateMaster(ctx context.Context, p catalog.CreateMasterParams) (*models.Master, error)
	GetMaster(ctx context.Context, masterID id.MasterID) (*models.Master, error)
	ListMasters(ctx context.Context, tenantID id.TenantID) ([]*models.Master, error)
	DeactivateMaster(ctx context.Context, masterID id.MasterID) (*models.Master, error)
	ReactivateMaster(ctx context.Context, masterID id.MasterID) (*models.Master, error)
}

// WorkflowService defines the instance operations the handler needs.
type WorkflowService interface {
	Get(ctx context.Context, instanceID id.InstanceID) (*models.Instance, error)
	List(ctx context.Context) ([]*models.Instance, error)
	Transition(ctx context.Context, instanceID id.InstanceID, to models.Status) (*models.Instance, error)
	Release(ctx context.Context, instanceID id.InstanceID) (*models.Instance, error)
	ListTasks(ctx context.Context, instanceID id.InstanceID) ([]*models.WorkflowTask, error)
	CompleteTask(ctx context.Context, instanceID id.InstanceID, taskID id.TaskID, status models.TaskStatus) error
}

// Handler wires compliance endpoints to the catalog and workflow services.
type Handler struct {
	catalog  CatalogService
	workflow WorkflowService
	logger   *slog.Logger
}

// New constructs a compliance handler.
func New(catalogSvc CatalogService, workflowSvc WorkflowService, logger *slog.Logger) *Handler {
	return &Handler{catalog: catalogSvc, workflow: workflowSvc, logger: logger}
}

// Register mounts compliance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/masters", func(r chi.Router) {
		r.Post("/", h.HandleCreateMaster)
		r.Get("/", h.HandleListMasters)
		r.Route("/{masterID}", func(r chi.Router) {
			r.Get("/", h.HandleGetMaster)
			r.Post("/deactivate", h.HandleDeactivateMaster)
			r.Post("/reactivate", h.HandleReactivateMaster)
		})
	})
	r.Route("/instances", func(r chi.Router) {
		r.Get("/", h.HandleListInstances)
		r.Route("/{instanceID}", func(r chi.Router) {
			r.Get("/", h.HandleGetInstance)
			r.Post("/transition", h.HandleTransition)
			r.Post("/release", h.HandleRelease)
			r.Get("/tasks", h.HandleListTasks)
			r.Post("/tasks/{taskID}/complete", h.HandleCompleteTask)
		})
	})
}

// HandleCreateMaster handles POST /masters. Global templates require the
// admin claim; everyone else creates within their own tenant.
func (h *Handler) HandleCreateMaster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateMasterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var tenantID *id.TenantID
	if req.Global {
		if !middleware.IsAdmin(ctx) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "global masters require the admin claim"))
			return
		}
	} else {
		scope := requestcontext.TenantID(ctx)
		if scope.IsNil() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "tenant scope required"))
			return
		}
		tenantID = &scope
	}

	m, err := h.catalog.CreateMaster(ctx, catalog.CreateMasterParams{
		TenantID:        tenantID,
		Code:            req.Code,
		Category:        req.Category,
		Frequency:       req.ParsedFrequency(),
		Rule:            req.ParsedRule(),
		DependencyCodes: req.DependencyCodes,
		WorkflowSteps:   req.WorkflowSteps,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "master creation failed",
			"request_id", requestID,
			"code", req.Code,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromMaster(m))
}

// HandleListMasters handles GET /masters.
func (h *Handler) HandleListMasters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "tenant scope required"))
		return
	}
	masters, err := h.catalog.ListMasters(ctx, tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromMasters(masters))
}

// HandleGetMaster handles GET /masters/{masterID}.
func (h *Handler) HandleGetMaster(w http.ResponseWriter, r *http.Request) {
	masterID, ok := masterIDParam(w, r)
	if !ok {
		return
	}
	m, err := h.catalog.GetMaster(r.Context(), masterID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromMaster(m))
}

// HandleDeactivateMaster handles POST /masters/{masterID}/deactivate.
func (h *Handler) HandleDeactivateMaster(w http.ResponseWriter, r *http.Request) {
	h.masterTransition(w, r, h.catalog.DeactivateMaster)
}

// HandleReactivateMaster handles POST /masters/{masterID}/reactivate.
func (h *Handler) HandleReactivateMaster(w http.ResponseWriter, r *http.Request) {
	h.masterTransition(w, r, h.catalog.ReactivateMaster)
}

func (h *Handler) masterTransition(w http.ResponseWriter, r *http.Request, op func(context.Context, id.MasterID) (*models.Master, error)) {
	masterID, ok := masterIDParam(w, r)
	if !ok {
		return
	}
	m, err := op(r.Context(), masterID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromMaster(m))
}

// HandleListInstances handles GET /instances.
func (h *Handler) HandleListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := h.workflow.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromInstances(instances))
}

// HandleGetInstance handles GET /instances/{instanceID}.
func (h *Handler) HandleGetInstance(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := instanceIDParam(w, r)
	if !ok {
		return
	}
	inst, err := h.workflow.Get(r.Context(), instanceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromInstance(inst))
}

// HandleTransition handles POST /instances/{instanceID}/transition.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	instanceID, ok := instanceIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	inst, err := h.workflow.Transition(ctx, instanceID, req.ParsedStatus())
	if err != nil {
		h.logger.WarnContext(ctx, "manual transition rejected",
			"request_id", requestID,
			"instance_id", instanceID,
			"to", req.To,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "instance transitioned",
		"request_id", requestID,
		"instance_id", instanceID,
		"to", inst.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromInstance(inst))
}

// HandleRelease handles POST /instances/{instanceID}/release.
func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := instanceIDParam(w, r)
	if !ok {
		return
	}
	inst, err := h.workflow.Release(r.Context(), instanceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromInstance(inst))
}

// HandleListTasks handles GET /instances/{instanceID}/tasks.
func (h *Handler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := instanceIDParam(w, r)
	if !ok {
		return
	}
	tasks, err := h.workflow.ListTasks(r.Context(), instanceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTasks(tasks))
}

// HandleCompleteTask handles POST /instances/{instanceID}/tasks/{taskID}/complete.
func (h *Handler) HandleCompleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	instanceID, ok := instanceIDParam(w, r)
	if !ok {
		return
	}
	taskID, err := id.ParseTaskID(chi.URLParam(r, "taskID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid task id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[CompleteTaskRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.workflow.CompleteTask(ctx, instanceID, taskID, req.ParsedStatus()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func masterIDParam(w http.ResponseWriter, r *http.Request) (id.MasterID, bool) {
	masterID, err := id.ParseMasterID(chi.URLParam(r, "masterID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid master id"))
		return id.MasterID{}, false
	}
	return masterID, true
}

func instanceIDParam(w http.ResponseWriter, r *http.Request) (id.InstanceID, bool) {
	instanceID, err := id.ParseInstanceID(chi.URLParam(r, "instanceID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid instance id"))
		return id.InstanceID{}, false
	}
	return instanceID, true
}
