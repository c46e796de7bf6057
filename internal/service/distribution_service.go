package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escolahub/comms-api/internal/models"
	appErrors "github.com/escolahub/comms-api/pkg/errors"
	"github.com/escolahub/comms-api/pkg/jobs"
	"github.com/escolahub/comms-api/pkg/push"
)

type distributionRoster interface {
	ActiveStudentIDs(ctx context.Context) ([]string, error)
	StudentIDsByClasses(ctx context.Context, classIDs []string) ([]string, error)
	GuardianLinksForStudents(ctx context.Context, studentIDs []string) ([]models.GuardianLink, error)
}

type distributionRecipientWriter interface {
	InsertBatch(ctx context.Context, communicationID string, pairs []models.RecipientPair) (int, error)
}

type distributionBackfiller interface {
	BackfillTargetMeta(ctx context.Context, id string, recipientCount int) error
}

type pushInvoker interface {
	Invoke(ctx context.Context, notification push.Notification) error
	Enabled() bool
}

// DistributionResult summarises one broadcast fan-out.
type DistributionResult struct {
	Pairs         int `json:"pairs"`
	Inserted      int `json:"inserted"`
	Batches       int `json:"batches"`
	FailedBatches int `json:"failed_batches"`
}

// DistributionService expands a broadcast target into concrete
// (student, guardian) recipient pairs and writes them in bounded batches.
// Delivery is best-effort per recipient: a failed batch is logged and the
// remaining batches proceed.
type DistributionService struct {
	roster     distributionRoster
	recipients distributionRecipientWriter
	comms      distributionBackfiller
	dispatcher pushInvoker
	pushQueue  *jobs.Queue
	metrics    *MetricsService
	batchSize  int
	logger     *zap.Logger
}

// NewDistributionService constructs the service. The push queue is started by
// the caller; a nil queue dispatches synchronously.
func NewDistributionService(roster distributionRoster, recipients distributionRecipientWriter, comms distributionBackfiller, dispatcher pushInvoker, metrics *MetricsService, batchSize int, logger *zap.Logger) *DistributionService {
	if batchSize <= 0 {
		batchSize = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DistributionService{
		roster:     roster,
		recipients: recipients,
		comms:      comms,
		dispatcher: dispatcher,
		metrics:    metrics,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// AttachPushQueue wires the asynchronous push dispatch queue.
func (s *DistributionService) AttachPushQueue(queue *jobs.Queue) {
	s.pushQueue = queue
}

// ExpandTargets resolves a target descriptor into deduplicated
// (student, guardian) pairs. Every resolved student fans out to all linked
// guardians; a pair reached through two expansion paths appears once.
func (s *DistributionService) ExpandTargets(ctx context.Context, scope models.TargetScope, ids []string) ([]models.RecipientPair, error) {
	var (
		studentIDs []string
		err        error
	)
	switch scope {
	case models.TargetScopeSchool:
		studentIDs, err = s.roster.ActiveStudentIDs(ctx)
	case models.TargetScopeClass:
		if len(ids) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class target requires class ids")
		}
		studentIDs, err = s.roster.StudentIDsByClasses(ctx, ids)
	case models.TargetScopeStudent:
		if len(ids) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student target requires student ids")
		}
		studentIDs = dedupeStrings(ids)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown target scope")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve target students")
	}
	studentIDs = dedupeStrings(studentIDs)

	links, err := s.roster.GuardianLinksForStudents(ctx, studentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve guardians")
	}

	seen := make(map[string]struct{}, len(links))
	pairs := make([]models.RecipientPair, 0, len(links))
	for _, link := range links {
		key := link.StudentID + "|" + link.GuardianID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		pairs = append(pairs, models.RecipientPair{StudentID: link.StudentID, GuardianID: link.GuardianID})
	}
	return pairs, nil
}

// Distribute expands the broadcast target, writes recipients in fixed-size
// batches and requests a push dispatch. Push failure never rolls back the
// committed distribution.
func (s *DistributionService) Distribute(ctx context.Context, communication *models.Communication) (*DistributionResult, error) {
	pairs, err := s.ExpandTargets(ctx, communication.TargetScope, communication.TargetIDs)
	if err != nil {
		return nil, err
	}

	result := &DistributionResult{Pairs: len(pairs)}
	for start := 0; start < len(pairs); start += s.batchSize {
		end := start + s.batchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		result.Batches++
		inserted, err := s.recipients.InsertBatch(ctx, communication.ID, pairs[start:end])
		if err != nil {
			result.FailedBatches++
			s.logger.Error("recipient batch failed",
				zap.String("communication_id", communication.ID),
				zap.Int("batch", result.Batches),
				zap.Int("batch_size", end-start),
				zap.Error(err))
			s.recordBatch("failed")
			continue
		}
		result.Inserted += inserted
		s.recordBatch("ok")
	}

	if err := s.comms.BackfillTargetMeta(ctx, communication.ID, result.Inserted); err != nil {
		// Metadata only; the delivery records are already committed.
		s.logger.Warn("target metadata backfill failed",
			zap.String("communication_id", communication.ID), zap.Error(err))
	}
	communication.RecipientCount = result.Inserted

	s.requestPush(ctx, communication)
	return result, nil
}

// requestPush asks the external dispatcher to notify recipients. Queued when
// a queue is attached, otherwise invoked inline; either way best-effort.
func (s *DistributionService) requestPush(ctx context.Context, communication *models.Communication) {
	if s.dispatcher == nil || !s.dispatcher.Enabled() {
		return
	}
	notification := push.Notification{
		CommunicationID: communication.ID,
		Title:           communication.Title,
		Body:            communication.Body,
		Tag:             string(communication.Channel),
	}
	if s.pushQueue != nil {
		err := s.pushQueue.Enqueue(jobs.Job{
			ID:      uuid.NewString(),
			Type:    jobs.TypePushDispatch,
			Payload: notification,
		})
		if err != nil {
			s.logger.Warn("push enqueue failed",
				zap.String("communication_id", communication.ID), zap.Error(err))
			s.recordPush("enqueue_failed")
		}
		return
	}
	if err := s.dispatcher.Invoke(ctx, notification); err != nil {
		s.logger.Warn("push dispatch failed",
			zap.String("communication_id", communication.ID), zap.Error(err))
		s.recordPush("failed")
		return
	}
	s.recordPush("ok")
}

// HandlePushJob is the jobs queue handler for queued dispatches. Returning an
// error lets the queue retry within its bounded policy.
func (s *DistributionService) HandlePushJob(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(push.Notification)
	if !ok {
		s.logger.Error("push job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.dispatcher.Invoke(ctx, notification); err != nil {
		s.recordPush("failed")
		return err
	}
	s.recordPush("ok")
	return nil
}

func (s *DistributionService) recordBatch(status string) {
	if s.metrics != nil {
		s.metrics.RecordDistributionBatch(status)
	}
}

func (s *DistributionService) recordPush(status string) {
	if s.metrics != nil {
		s.metrics.RecordPushDispatch(status)
	}
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
