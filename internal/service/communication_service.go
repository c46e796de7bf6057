package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/escolahub/comms-api/internal/models"
	appErrors "github.com/escolahub/comms-api/pkg/errors"
)

type communicationRepository interface {
	List(ctx context.Context, filter models.CommunicationFilter) ([]models.Communication, int, error)
	GetByID(ctx context.Context, id string) (*models.Communication, error)
	Create(ctx context.Context, communication *models.Communication) error
	DashboardMetrics(ctx context.Context, page, pageSize int) ([]models.CommunicationMetrics, error)
}

type communicationRecipientStore interface {
	GetByID(ctx context.Context, id string) (*models.Recipient, error)
	RecordResponse(ctx context.Context, id string, response models.RecipientResponse) error
	SetArchived(ctx context.Context, id string, archived bool) error
}

type communicationReplyWriter interface {
	Create(ctx context.Context, reply *models.Reply, authorID string) error
}

type distributor interface {
	Distribute(ctx context.Context, communication *models.Communication) (*DistributionResult, error)
}

type feedEmitter interface {
	Publish(ctx context.Context, event models.FeedEvent) error
}

// CommunicationService handles broadcast workflows: authoring, distribution,
// replies, interactive responses and dashboard aggregation.
type CommunicationService struct {
	repo        communicationRepository
	recipients  communicationRecipientStore
	replies     communicationReplyWriter
	distributor distributor
	feed        feedEmitter
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger

	dashboardTTL time.Duration
}

// NewCommunicationService constructs the service.
func NewCommunicationService(repo communicationRepository, recipients communicationRecipientStore, replies communicationReplyWriter, dist distributor, feed feedEmitter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CommunicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CommunicationService{
		repo:         repo,
		recipients:   recipients,
		replies:      replies,
		distributor:  dist,
		feed:         feed,
		cache:        cache,
		validator:    validate,
		logger:       logger,
		dashboardTTL: 5 * time.Minute,
	}
	svc.validator.RegisterValidation("channel", func(fl validator.FieldLevel) bool {
		return models.ChannelCategory(strings.ToUpper(fl.Field().String())).Valid()
	})
	svc.validator.RegisterValidation("commpriority", func(fl validator.FieldLevel) bool {
		switch models.CommunicationPriority(strings.ToUpper(fl.Field().String())) {
		case models.CommunicationPriorityNormal, models.CommunicationPriorityHigh:
			return true
		default:
			return false
		}
	})
	svc.validator.RegisterValidation("targetscope", func(fl validator.FieldLevel) bool {
		switch models.TargetScope(strings.ToUpper(fl.Field().String())) {
		case models.TargetScopeSchool, models.TargetScopeClass, models.TargetScopeStudent:
			return true
		default:
			return false
		}
	})
	return svc
}

// SetDashboardTTL overrides the cache TTL applied to dashboard aggregates.
func (s *CommunicationService) SetDashboardTTL(ttl time.Duration) {
	if ttl > 0 {
		s.dashboardTTL = ttl
	}
}

// CreateCommunicationRequest describes the authoring payload.
type CreateCommunicationRequest struct {
	Channel     string              `json:"channel" validate:"required,channel"`
	Title       string              `json:"title" validate:"required"`
	Body        string              `json:"body" validate:"required"`
	Priority    string              `json:"priority" validate:"required,commpriority"`
	Interactive *models.Interactive `json:"interactive"`
	TargetScope string              `json:"target_scope" validate:"required,targetscope"`
	TargetIDs   []string            `json:"target_ids"`
	CreatedBy   string              `json:"created_by" validate:"required"`
}

// CommunicationListRequest describes inbox filters.
type CommunicationListRequest struct {
	Channel  string `json:"channel"`
	Priority string `json:"priority"`
	Search   string `json:"search"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// SendReplyRequest describes one outgoing thread message.
type SendReplyRequest struct {
	CommunicationID string  `json:"communication_id" validate:"required"`
	GuardianID      string  `json:"guardian_id" validate:"required"`
	AuthorID        string  `json:"author_id" validate:"required"`
	Content         string  `json:"content" validate:"required"`
	IsAdminReply    bool    `json:"is_admin_reply"`
	AttachmentPath  *string `json:"attachment_path"`
}

// Create registers a broadcast and distributes it to the expanded audience.
func (s *CommunicationService) Create(ctx context.Context, req CreateCommunicationRequest) (*models.Communication, *DistributionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	scope := models.TargetScope(strings.ToUpper(req.TargetScope))
	if scope != models.TargetScopeSchool && len(req.TargetIDs) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "target_ids required for class and student scopes")
	}
	var interactive models.Interactive
	if req.Interactive != nil {
		switch req.Interactive.Kind {
		case models.InteractiveRSVP, models.InteractivePoll:
			if len(req.Interactive.Options) == 0 {
				return nil, nil, appErrors.Clone(appErrors.ErrValidation, "interactive payload requires options")
			}
			interactive = *req.Interactive
		default:
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "interactive kind must be rsvp or poll")
		}
	}

	communication := &models.Communication{
		Channel:     models.ChannelCategory(strings.ToUpper(req.Channel)),
		Title:       req.Title,
		Body:        req.Body,
		Priority:    models.CommunicationPriority(strings.ToUpper(req.Priority)),
		Interactive: interactive,
		TargetScope: scope,
		TargetIDs:   pq.StringArray(req.TargetIDs),
		CreatedBy:   req.CreatedBy,
	}
	communication.ChannelStyle = communication.Channel.Style()
	if err := s.repo.Create(ctx, communication); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create communication")
	}

	result, err := s.distributor.Distribute(ctx, communication)
	if err != nil {
		// The broadcast row exists; distribution can be retried by support.
		s.logger.Error("distribution failed",
			zap.String("communication_id", communication.ID), zap.Error(err))
		return communication, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to distribute communication")
	}

	s.invalidateCaches(ctx)
	s.publishFeed(ctx, models.FeedEvent{
		Table:     models.FeedTableCommunications,
		Operation: models.FeedOpInsert,
		Row:       models.FeedRow{ID: communication.ID, CommunicationID: communication.ID},
	})
	return communication, result, nil
}

// List returns the broadcast inbox with pagination, cache-aside.
func (s *CommunicationService) List(ctx context.Context, req CommunicationListRequest) ([]models.Communication, *models.Pagination, error) {
	filter := models.CommunicationFilter{
		Channel:  models.ChannelCategory(strings.ToUpper(req.Channel)),
		Priority: models.CommunicationPriority(strings.ToUpper(req.Priority)),
		Search:   strings.TrimSpace(req.Search),
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.Channel == "" {
		filter.Channel = ""
	}
	if req.Priority == "" {
		filter.Priority = ""
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	type cached struct {
		Items      []models.Communication `json:"items"`
		Pagination models.Pagination      `json:"pagination"`
	}
	key := fmt.Sprintf("comms:inbox:%s:%s:%s:%d:%d", filter.Channel, filter.Priority, filter.Search, filter.Page, filter.PageSize)
	if s.cache.Enabled() {
		var hit cached
		if ok, _ := s.cache.Get(ctx, key, &hit); ok {
			pagination := hit.Pagination
			return hit.Items, &pagination, nil
		}
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list communications")
	}
	for i := range rows {
		rows[i].ChannelStyle = rows[i].Channel.Style()
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, key, cached{Items: rows, Pagination: *pagination}, 0)
	}
	return rows, pagination, nil
}

// Get returns one broadcast.
func (s *CommunicationService) Get(ctx context.Context, id string) (*models.Communication, error) {
	communication, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "communication not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get communication")
	}
	communication.ChannelStyle = communication.Channel.Style()
	return communication, nil
}

// SendReply persists one thread message and publishes its change event so
// viewers receive the realtime echo. Insert failure is surfaced: the author
// believes the content was sent.
func (s *CommunicationService) SendReply(ctx context.Context, req SendReplyRequest) (*models.Reply, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := s.Get(ctx, req.CommunicationID); err != nil {
		return nil, err
	}
	reply := &models.Reply{
		CommunicationID: req.CommunicationID,
		GuardianID:      req.GuardianID,
		Content:         req.Content,
		IsAdminReply:    req.IsAdminReply,
		AttachmentPath:  req.AttachmentPath,
	}
	if err := s.replies.Create(ctx, reply, req.AuthorID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send reply")
	}

	s.invalidateDashboard(ctx)
	s.publishFeed(ctx, models.FeedEvent{
		Table:     models.FeedTableReplies,
		Operation: models.FeedOpInsert,
		Row: models.FeedRow{
			ID:              reply.ID,
			CommunicationID: reply.CommunicationID,
			GuardianID:      reply.GuardianID,
		},
	})
	return reply, nil
}

// Respond records a guardian's answer to an interactive broadcast, once.
func (s *CommunicationService) Respond(ctx context.Context, recipientID, selectedOption string) (*models.Recipient, error) {
	recipient, err := s.recipients.GetByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}
	communication, err := s.Get(ctx, recipient.CommunicationID)
	if err != nil {
		return nil, err
	}
	if communication.Interactive.Kind == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "communication is not interactive")
	}
	if !communication.Interactive.HasOption(selectedOption) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "selected option is not part of the communication")
	}

	response := models.RecipientResponse{SelectedOption: selectedOption, AnsweredAt: time.Now().UTC()}
	if err := s.recipients.RecordResponse(ctx, recipientID, response); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "response already recorded")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record response")
	}
	recipient.Response = response

	s.invalidateDashboard(ctx)
	s.publishFeed(ctx, models.FeedEvent{
		Table:     models.FeedTableRecipients,
		Operation: models.FeedOpUpdate,
		Row: models.FeedRow{
			ID:              recipient.ID,
			CommunicationID: recipient.CommunicationID,
			GuardianID:      recipient.GuardianID,
		},
	})
	return recipient, nil
}

// Archive toggles the recipient's archive flag.
func (s *CommunicationService) Archive(ctx context.Context, recipientID string, archived bool) error {
	recipient, err := s.recipients.GetByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}
	if err := s.recipients.SetArchived(ctx, recipientID, archived); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update archive flag")
	}
	s.publishFeed(ctx, models.FeedEvent{
		Table:     models.FeedTableRecipients,
		Operation: models.FeedOpUpdate,
		Row: models.FeedRow{
			ID:              recipient.ID,
			CommunicationID: recipient.CommunicationID,
			GuardianID:      recipient.GuardianID,
		},
	})
	return nil
}

// DashboardMetrics returns the paginated per-communication aggregates,
// cache-aside with event-based invalidation.
func (s *CommunicationService) DashboardMetrics(ctx context.Context, page, pageSize int) ([]models.CommunicationMetrics, error) {
	key := fmt.Sprintf("comms:dashboard:%d:%d", page, pageSize)
	if s.cache.Enabled() {
		var hit []models.CommunicationMetrics
		if ok, _ := s.cache.Get(ctx, key, &hit); ok {
			return hit, nil
		}
	}
	metrics, err := s.repo.DashboardMetrics(ctx, page, pageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate dashboard metrics")
	}
	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, key, metrics, s.dashboardTTL)
	}
	return metrics, nil
}

func (s *CommunicationService) invalidateCaches(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "comms:inbox:*"); err != nil {
		s.logger.Warn("inbox cache invalidation failed", zap.Error(err))
	}
	s.invalidateDashboard(ctx)
}

func (s *CommunicationService) invalidateDashboard(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "comms:dashboard:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *CommunicationService) publishFeed(ctx context.Context, event models.FeedEvent) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, event); err != nil {
		s.logger.Debug("feed publish skipped", zap.Error(err))
	}
}
