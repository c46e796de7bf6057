package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/escolahub/comms-api/internal/models"
	"github.com/escolahub/comms-api/internal/service"
	"github.com/escolahub/comms-api/pkg/response"
)

type stubReplyReader struct {
	replies []models.Reply
}

func (s *stubReplyReader) ListByCommunication(ctx context.Context, communicationID string) ([]models.Reply, error) {
	return s.replies, nil
}

type stubRecipientStore struct {
	markResult *models.MarkReadResult
	markErr    error
	unread     int
}

func (s *stubRecipientStore) MarkRead(ctx context.Context, id string) (*models.MarkReadResult, error) {
	if s.markErr != nil {
		return nil, s.markErr
	}
	return s.markResult, nil
}

func (s *stubRecipientStore) UnreadCountForGuardian(ctx context.Context, guardianID string) (int, error) {
	return s.unread, nil
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newThreadTestRouter(reader *stubReplyReader, store *stubRecipientStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	threads := service.NewThreadService(reader, nil, zap.NewNop())
	tracker := service.NewTrackerService(store, threads, zap.NewNop())
	h := NewThreadHandler(threads, tracker, nil)

	router := gin.New()
	router.GET("/communications/:id/threads", h.ListConversations)
	router.GET("/communications/:id/pending", h.PendingThreads)
	router.POST("/recipients/:id/read", h.MarkRead)
	router.GET("/guardians/:id/unread", h.UnreadCount)
	return router
}

func TestThreadHandlerListConversations(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	reader := &stubReplyReader{replies: []models.Reply{
		{ID: "r1", CommunicationID: "comm-1", GuardianID: "g1", Content: "Bom dia", AuthorName: "Ana", CreatedAt: base},
		{ID: "r2", CommunicationID: "comm-1", GuardianID: "g2", Content: "Dúvida", AuthorName: "Carla", CreatedAt: base.Add(time.Minute)},
	}}
	router := newThreadTestRouter(reader, &stubRecipientStore{})

	resp := performRequest(router, httptest.NewRequest(http.MethodGet, "/communications/comm-1/threads", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data []models.Conversation  `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, "g2", envelope.Data[0].GuardianID)
	assert.Equal(t, float64(2), envelope.Meta["pending_threads"])
}

func TestThreadHandlerPendingThreads(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	reader := &stubReplyReader{replies: []models.Reply{
		{ID: "r1", CommunicationID: "comm-1", GuardianID: "g1", Content: "Dúvida", CreatedAt: base},
		{ID: "r2", CommunicationID: "comm-1", GuardianID: "g1", Content: "Respondido", IsAdminReply: true, CreatedAt: base.Add(time.Minute)},
	}}
	router := newThreadTestRouter(reader, &stubRecipientStore{})

	resp := performRequest(router, httptest.NewRequest(http.MethodGet, "/communications/comm-1/pending", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, 0, envelope.Data["pending_threads"])
}

func TestThreadHandlerMarkRead(t *testing.T) {
	readAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := &stubRecipientStore{markResult: &models.MarkReadResult{ReadAt: readAt, WasAlreadyRead: true}}
	router := newThreadTestRouter(&stubReplyReader{}, store)

	resp := performRequest(router, httptest.NewRequest(http.MethodPost, "/recipients/rec-1/read", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data models.MarkReadResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.WasAlreadyRead)
}

func TestThreadHandlerMarkReadNotFound(t *testing.T) {
	store := &stubRecipientStore{markErr: sql.ErrNoRows}
	router := newThreadTestRouter(&stubReplyReader{}, store)

	resp := performRequest(router, httptest.NewRequest(http.MethodPost, "/recipients/missing/read", nil))
	require.Equal(t, http.StatusNotFound, resp.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
}

func TestThreadHandlerUnreadCount(t *testing.T) {
	router := newThreadTestRouter(&stubReplyReader{}, &stubRecipientStore{unread: 7})

	resp := performRequest(router, httptest.NewRequest(http.MethodGet, "/guardians/g1/unread", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, 7, envelope.Data["unread"])
}

func TestThreadHandlerSendReplyRequiresActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	threads := service.NewThreadService(&stubReplyReader{}, nil, zap.NewNop())
	tracker := service.NewTrackerService(&stubRecipientStore{}, threads, zap.NewNop())
	h := NewThreadHandler(threads, tracker, nil)

	router := gin.New()
	router.POST("/communications/:id/threads/:guardianId/replies", h.SendReply)

	body, _ := json.Marshal(map[string]interface{}{"content": "Olá"})
	req := httptest.NewRequest(http.MethodPost, "/communications/comm-1/threads/g1/replies", bytes.NewReader(body))
	resp := performRequest(router, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
