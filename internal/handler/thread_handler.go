package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/escolahub/comms-api/internal/service"
	appErrors "github.com/escolahub/comms-api/pkg/errors"
	"github.com/escolahub/comms-api/pkg/response"
)

// ThreadHandler exposes reply thread and read-state endpoints.
type ThreadHandler struct {
	threads        *service.ThreadService
	tracker        *service.TrackerService
	communications *service.CommunicationService
}

// NewThreadHandler constructs ThreadHandler.
func NewThreadHandler(threads *service.ThreadService, tracker *service.TrackerService, communications *service.CommunicationService) *ThreadHandler {
	return &ThreadHandler{threads: threads, tracker: tracker, communications: communications}
}

// ListConversations godoc
// @Summary List the reply threads of a communication
// @Tags Threads
// @Produce json
// @Param id path string true "Communication ID"
// @Success 200 {object} response.Envelope
// @Router /communications/{id}/threads [get]
func (h *ThreadHandler) ListConversations(c *gin.Context) {
	conversations, err := h.threads.ListConversations(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"pending_threads": h.tracker.PendingCount(conversations)}
	response.JSON(c, http.StatusOK, conversations, nil, meta)
}

// PendingThreads godoc
// @Summary Count threads awaiting a staff reply
// @Tags Threads
// @Produce json
// @Param id path string true "Communication ID"
// @Success 200 {object} response.Envelope
// @Router /communications/{id}/pending [get]
func (h *ThreadHandler) PendingThreads(c *gin.Context) {
	count, err := h.tracker.ThreadsNeedingReply(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"pending_threads": count}, nil)
}

type sendReplyPayload struct {
	Content        string  `json:"content"`
	IsAdminReply   bool    `json:"is_admin_reply"`
	AttachmentPath *string `json:"attachment_path"`
}

// SendReply godoc
// @Summary Post a reply into one guardian thread
// @Tags Threads
// @Accept json
// @Produce json
// @Param id path string true "Communication ID"
// @Param guardianId path string true "Guardian ID (thread key)"
// @Param payload body sendReplyPayload true "Reply payload"
// @Success 201 {object} response.Envelope
// @Router /communications/{id}/threads/{guardianId}/replies [post]
func (h *ThreadHandler) SendReply(c *gin.Context) {
	var payload sendReplyPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, err)
		return
	}
	actor := actorFromContext(c)
	if actor == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing actor id"))
		return
	}

	reply, err := h.communications.SendReply(c.Request.Context(), service.SendReplyRequest{
		CommunicationID: c.Param("id"),
		GuardianID:      c.Param("guardianId"),
		AuthorID:        actor,
		Content:         payload.Content,
		IsAdminReply:    payload.IsAdminReply,
		AttachmentPath:  payload.AttachmentPath,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reply)
}

// MarkRead godoc
// @Summary Mark a recipient's broadcast as read
// @Tags Recipients
// @Produce json
// @Param id path string true "Recipient ID"
// @Success 200 {object} response.Envelope
// @Router /recipients/{id}/read [post]
func (h *ThreadHandler) MarkRead(c *gin.Context) {
	result, err := h.tracker.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

type respondPayload struct {
	SelectedOption string `json:"selected_option"`
}

// Respond godoc
// @Summary Submit an interactive response for a recipient
// @Tags Recipients
// @Accept json
// @Produce json
// @Param id path string true "Recipient ID"
// @Param payload body respondPayload true "Response payload"
// @Success 200 {object} response.Envelope
// @Router /recipients/{id}/response [post]
func (h *ThreadHandler) Respond(c *gin.Context) {
	var payload respondPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, err)
		return
	}
	recipient, err := h.communications.Respond(c.Request.Context(), c.Param("id"), payload.SelectedOption)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recipient, nil)
}

type archivePayload struct {
	Archived bool `json:"archived"`
}

// Archive godoc
// @Summary Toggle a recipient's archive flag
// @Tags Recipients
// @Accept json
// @Produce json
// @Param id path string true "Recipient ID"
// @Param payload body archivePayload true "Archive payload"
// @Success 204
// @Router /recipients/{id}/archive [post]
func (h *ThreadHandler) Archive(c *gin.Context) {
	var payload archivePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.communications.Archive(c.Request.Context(), c.Param("id"), payload.Archived); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnreadCount godoc
// @Summary Count unread broadcasts for a guardian
// @Tags Recipients
// @Produce json
// @Param id path string true "Guardian ID"
// @Success 200 {object} response.Envelope
// @Router /guardians/{id}/unread [get]
func (h *ThreadHandler) UnreadCount(c *gin.Context) {
	count, err := h.tracker.UnreadBroadcasts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unread": count}, nil)
}
