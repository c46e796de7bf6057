package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/escolahub/comms-api/internal/service"
	"github.com/escolahub/comms-api/pkg/response"
)

// AttachmentHandler exposes signed-URL issuance for reply attachments.
type AttachmentHandler struct {
	attachments *service.AttachmentService
}

// NewAttachmentHandler constructs AttachmentHandler.
func NewAttachmentHandler(attachments *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments}
}

// SignedURL godoc
// @Summary Issue a short-lived download token for a reply attachment
// @Tags Attachments
// @Produce json
// @Param replyId path string true "Reply ID"
// @Success 200 {object} response.Envelope
// @Router /replies/{replyId}/attachment-url [get]
func (h *AttachmentHandler) SignedURL(c *gin.Context) {
	token, expiresAt, err := h.attachments.SignedURL(c.Request.Context(), c.Param("replyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	}, nil)
}

// Resolve godoc
// @Summary Validate an attachment token and return the object path
// @Tags Attachments
// @Produce json
// @Param token query string true "Signed attachment token"
// @Success 200 {object} response.Envelope
// @Router /attachments/resolve [get]
func (h *AttachmentHandler) Resolve(c *gin.Context) {
	path, err := h.attachments.Resolve(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"path": path}, nil)
}
