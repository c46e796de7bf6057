package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/escolahub/comms-api/internal/service"
	"github.com/escolahub/comms-api/pkg/response"
)

// CommunicationHandler exposes broadcast endpoints.
type CommunicationHandler struct {
	communications *service.CommunicationService
}

// NewCommunicationHandler constructs CommunicationHandler.
func NewCommunicationHandler(communications *service.CommunicationService) *CommunicationHandler {
	return &CommunicationHandler{communications: communications}
}

// List godoc
// @Summary List communications
// @Tags Communications
// @Produce json
// @Param channel query string false "Filter by channel"
// @Param priority query string false "Filter by priority"
// @Param search query string false "Search title and body"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /communications [get]
func (h *CommunicationHandler) List(c *gin.Context) {
	var req service.CommunicationListRequest
	req.Channel = c.Query("channel")
	req.Priority = c.Query("priority")
	req.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		req.PageSize = size
	}

	communications, pagination, err := h.communications.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, communications, pagination)
}

// Get godoc
// @Summary Get communication detail
// @Tags Communications
// @Produce json
// @Param id path string true "Communication ID"
// @Success 200 {object} response.Envelope
// @Router /communications/{id} [get]
func (h *CommunicationHandler) Get(c *gin.Context) {
	communication, err := h.communications.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, communication, nil)
}

// Create godoc
// @Summary Create and distribute a communication
// @Tags Communications
// @Accept json
// @Produce json
// @Param payload body service.CreateCommunicationRequest true "Communication payload"
// @Success 201 {object} response.Envelope
// @Router /communications [post]
func (h *CommunicationHandler) Create(c *gin.Context) {
	var req service.CreateCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = actorFromContext(c)
	}

	communication, result, err := h.communications.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, communication, nil, map[string]interface{}{"distribution": result})
}

// Dashboard godoc
// @Summary Paginated per-communication dashboard metrics
// @Tags Communications
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /dashboard/communications [get]
func (h *CommunicationHandler) Dashboard(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	metrics, err := h.communications.DashboardMetrics(c.Request.Context(), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, metrics, nil)
}
