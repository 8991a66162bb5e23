package handler

import (
	"net/http"

	"servizephyr/internal/auth"
	"servizephyr/internal/model"
	"servizephyr/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// TabHandler handles dine-in tab and table requests.
type TabHandler struct {
	service service.TabService
	logger  zerolog.Logger
}

// NewTabHandler creates a new tab handler.
func NewTabHandler(service service.TabService, logger zerolog.Logger) *TabHandler {
	return &TabHandler{
		service: service,
		logger:  logger.With().Str("handler", "tab").Logger(),
	}
}

// Create handles POST /api/tabs requests.
func (h *TabHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := requireRole(r, model.RoleCustomer, model.RoleOwner, model.RoleOperator, model.RoleAdmin)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	var req model.CreateTabRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	// staff may only seat guests at their own restaurant
	if id.Role != model.RoleCustomer && !id.CanManageTenant(req.TenantID) {
		writeDomainError(w, model.ErrForbidden, h.logger)
		return
	}
	if req.ActorName == "" {
		req.ActorName = id.ActorName()
	}

	result, err := h.service.CreateOrJoinTab(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	status := http.StatusCreated
	if result.Existed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// Status handles GET /api/tabs/{tabId}?tenantId= requests.
func (h *TabHandler) Status(w http.ResponseWriter, r *http.Request) {
	tabID := chi.URLParam(r, "tabId")
	tenantID := r.URL.Query().Get("tenantId")
	if tabID == "" || tenantID == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "tabId and tenantId are required", h.logger)
		return
	}

	status, err := h.service.GetTabStatus(r.Context(), tenantID, tabID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Pay handles POST /api/tabs/{tabId}/pay requests.
func (h *TabHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := requireRole(r, model.RoleOwner, model.RoleOperator, model.RoleAdmin)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	var req model.MarkTabPaidRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	req.TabID = chi.URLParam(r, "tabId")
	req.Actor = id

	result, err := h.service.MarkTabPaid(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Cleanup handles POST /api/tabs/cleanup requests. Without an explicit
// dryRun=false the sweep only reports.
func (h *TabHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	id, err := requireRole(r, model.RoleOwner, model.RoleAdmin)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	var req model.CleanupRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if !id.CanManageTenant(req.TenantID) {
		writeDomainError(w, model.ErrForbidden, h.logger)
		return
	}

	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	report, err := h.service.CleanupStaleTabs(r.Context(), req.TenantID, dryRun)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ListTables handles GET /api/tables?tenantId= requests.
func (h *TabHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "tenantId is required", h.logger)
		return
	}

	tables, err := h.service.ListTables(r.Context(), tenantID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, tables)
}

// requireRole returns the verified caller when it holds one of roles.
func requireRole(r *http.Request, roles ...model.Role) (model.Identity, error) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return model.Identity{}, model.ErrUnauthorised
	}
	for _, role := range roles {
		if id.Role == role {
			return id, nil
		}
	}
	return model.Identity{}, model.ErrForbidden
}
