package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/escolahub/comms-api/internal/models"
	appErrors "github.com/escolahub/comms-api/pkg/errors"
	"github.com/escolahub/comms-api/pkg/storage"
)

func TestAttachmentServiceSignedURLRoundTrip(t *testing.T) {
	path := "attachments/comm-1/bilhete.pdf"
	withAttachment := reply("r1", "g1", "Segue em anexo", false, time.Now().UTC())
	withAttachment.AttachmentPath = &path

	fetcher := &mockReplyFetcher{replies: map[string]*models.Reply{"r1": &withAttachment}}
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewAttachmentService(fetcher, signer, zap.NewNop())

	token, expiresAt, err := svc.SignedURL(context.Background(), "r1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	resolved, err := svc.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
}

func TestAttachmentServiceSignedURLWithoutAttachment(t *testing.T) {
	bare := reply("r1", "g1", "Sem anexo", false, time.Now().UTC())
	fetcher := &mockReplyFetcher{replies: map[string]*models.Reply{"r1": &bare}}
	svc := NewAttachmentService(fetcher, storage.NewSignedURLSigner("secret", time.Hour), zap.NewNop())

	_, _, err := svc.SignedURL(context.Background(), "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttachmentServiceResolveRejectsForgedToken(t *testing.T) {
	svc := NewAttachmentService(&mockReplyFetcher{}, storage.NewSignedURLSigner("secret", time.Hour), zap.NewNop())

	_, err := svc.Resolve("r1.123.cGF0aA.deadbeef")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
