package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/escolahub/comms-api/internal/models"
	appErrors "github.com/escolahub/comms-api/pkg/errors"
	"github.com/escolahub/comms-api/pkg/storage"
)

type attachmentReplyFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Reply, error)
}

// AttachmentService issues short-lived signed tokens for reply attachments.
// The files themselves live in an external object store; the token only
// gates which path a client may fetch.
type AttachmentService struct {
	replies attachmentReplyFetcher
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
}

// NewAttachmentService constructs the service.
func NewAttachmentService(replies attachmentReplyFetcher, signer *storage.SignedURLSigner, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{replies: replies, signer: signer, logger: logger}
}

// SignedURL generates a download token for the attachment of a reply.
func (s *AttachmentService) SignedURL(ctx context.Context, replyID string) (string, time.Time, error) {
	reply, err := s.replies.GetByID(ctx, replyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "reply not found")
		}
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reply")
	}
	if reply.AttachmentPath == nil || *reply.AttachmentPath == "" {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "reply has no attachment")
	}

	token, expiresAt, err := s.signer.Generate(reply.ID, *reply.AttachmentPath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign attachment url")
	}
	return token, expiresAt, nil
}

// Resolve validates a download token and returns the object path it grants.
func (s *AttachmentService) Resolve(token string) (string, error) {
	_, path, _, err := s.signer.Parse(token, false)
	if err != nil {
		s.logger.Debug("attachment token rejected", zap.Error(err))
		return "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired attachment token")
	}
	return path, nil
}
