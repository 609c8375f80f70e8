package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadrouter_backend/internal/routing/service"
	"leadrouter_backend/internal/routing/transport"
	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid lead ID"
)

// Handler handles HTTP requests for the routing surface.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new routing handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts ingestion routes (service-to-service) and lead
// routes on the protected group; RegisterAdminRoutes covers the operator
// surface.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/assignments", h.Assign)
	g.POST("/assignments/batch", h.AssignBatch)
	g.GET("/leads/:id", h.GetLead)
	g.GET("/leads/:id/decisions", h.ListDecisions)
	g.PATCH("/leads/:id/status", h.UpdateStatus)
}

// RegisterAdminRoutes mounts operator-only routes.
func (h *Handler) RegisterAdminRoutes(g *gin.RouterGroup) {
	g.POST("/leads/:id/reassign", h.Reassign)
}

// Assign routes a single lead.
// POST /api/v1/routing/assignments
func (h *Handler) Assign(c *gin.Context) {
	var req transport.AssignLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.AssignLead(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// AssignBatch routes up to 500 leads in one call.
// POST /api/v1/routing/assignments/batch
func (h *Handler) AssignBatch(c *gin.Context) {
	var req transport.BatchAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.AssignBatch(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetLead retrieves a lead.
// GET /api/v1/routing/leads/:id
func (h *Handler) GetLead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.GetLead(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListDecisions returns a lead's routing audit trail.
// GET /api/v1/routing/leads/:id/decisions
func (h *Handler) ListDecisions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.ListDecisions(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpdateStatus advances a lead's lifecycle status.
// PATCH /api/v1/routing/leads/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.AdvanceStatus(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Reassign moves a lead to a specific location.
// POST /api/v1/admin/routing/leads/:id/reassign
func (h *Handler) Reassign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Reassign(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
