package cases

import (
	"context"
	"time"

	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/internal/repository"
	"github.com/jwalitptl/lab-cases/internal/service/bundle"
	"github.com/jwalitptl/lab-cases/internal/service/notification"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
	"github.com/jwalitptl/lab-cases/pkg/logger"
	"github.com/jwalitptl/lab-cases/pkg/messaging"
	"github.com/jwalitptl/lab-cases/pkg/metrics"
)

// Bundler zips a case's attachments.
type Bundler interface {
	Build(ctx context.Context, c *model.Case, attachments []*model.Attachment) (*bundle.Bundle, error)
}

// Service is the case lifecycle engine. Every operation authorizes the
// principal before touching the repository.
type Service struct {
	repo      repository.CaseRepository
	notifier  notification.Notifier
	publisher messaging.Publisher
	bundler   Bundler
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(
	repo repository.CaseRepository,
	notifier notification.Notifier,
	publisher messaging.Publisher,
	bundler Bundler,
	l *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if notifier == nil {
		notifier = notification.Nop()
	}
	if l == nil {
		l = logger.Nop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{
		repo:      repo,
		notifier:  notifier,
		publisher: publisher,
		bundler:   bundler,
		logger:    l,
		metrics:   m,
		now:       time.Now,
	}
}

// CreateCase stores a new case owned by p, then uploads files in order. When
// an upload fails the created case is returned together with the error.
func (s *Service) CreateCase(ctx context.Context, p *model.Principal, fields model.CaseFields, status model.CaseStatus, uploads []model.Upload) (*model.Case, error) {
	if err := authorize(p, actionCreate, nil); err != nil {
		return nil, err
	}
	if status == "" {
		status = model.CaseStatusDraft
	}
	if err := checkInitialStatus(status); err != nil {
		return nil, err
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	c, err := s.repo.CreateCase(ctx, fields, p.ID, status)
	if err != nil {
		return nil, err
	}
	s.metrics.CasesCreated.WithLabelValues(string(status)).Inc()
	s.logger.Info("case created", "case_id", c.ID, "status", c.Status, "owner", p.ID)
	s.publish(ctx, model.CaseEventCreated, c.ID)

	_, uploadErr := s.uploadAll(ctx, c.ID, uploads)
	if len(uploads) > 0 {
		s.publish(ctx, model.CaseEventAttachmentsChanged, c.ID)
	}
	if status == model.CaseStatusSent {
		s.notifySent(ctx, c)
	}
	return c, uploadErr
}

// ListCases returns the principal's visible cases, newest first, narrowed by
// filter.
func (s *Service) ListCases(ctx context.Context, p *model.Principal, filter model.CaseFilter) ([]*model.Case, error) {
	if err := authorize(p, actionList, nil); err != nil {
		return nil, err
	}

	var (
		all []*model.Case
		err error
	)
	if p.IsAdmin() {
		all, err = s.repo.ListCasesForOwner(ctx, p.ID)
	} else {
		all, err = s.repo.ListCasesByStatus(ctx, model.LabQueueStatuses...)
	}
	if err != nil {
		return nil, err
	}

	out := make([]*model.Case, 0, len(all))
	for _, c := range all {
		if filter.Match(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) GetCase(ctx context.Context, p *model.Principal, id string) (*model.Case, error) {
	return s.load(ctx, p, actionView, id)
}

// UpdateCase applies a partial edit. A status different from the current one
// is a transition and is validated as such; moving to finished first removes
// every attachment.
func (s *Service) UpdateCase(ctx context.Context, p *model.Principal, id string, patch model.CasePatch) (*model.Case, error) {
	if p.IsLab() && patch.OnlyStatus() && *patch.Status == model.CaseStatusDone {
		return s.MarkDone(ctx, p, id)
	}

	c, err := s.load(ctx, p, actionEdit, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Status != nil && *patch.Status == c.Status {
		patch.Status = nil
	}
	if patch.IsEmpty() {
		return c, nil
	}

	from := c.Status
	if patch.Status != nil {
		if err := checkTransition(p, from, *patch.Status); err != nil {
			return nil, err
		}
		if *patch.Status == model.CaseStatusFinished {
			s.clearAttachments(ctx, c)
		}
	}

	updated, err := s.repo.UpdateCase(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, model.CaseEventUpdated, id)

	if patch.Status != nil {
		s.recordTransition(id, from, updated.Status)
		if updated.Status == model.CaseStatusSent {
			s.notifySent(ctx, updated)
		}
	}
	return updated, nil
}

// SendCase moves a draft to sent and notifies the lab.
func (s *Service) SendCase(ctx context.Context, p *model.Principal, id string) (*model.Case, error) {
	c, err := s.load(ctx, p, actionTransition, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.transition(ctx, p, c, model.CaseStatusSent)
	if err != nil {
		return nil, err
	}
	s.notifySent(ctx, updated)
	return updated, nil
}

// MarkDone is the lab's only mutation: sent to done.
func (s *Service) MarkDone(ctx context.Context, p *model.Principal, id string) (*model.Case, error) {
	c, err := s.load(ctx, p, actionTransition, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, p, c, model.CaseStatusDone)
}

// FinishCase moves a case to finished, removing its attachments.
func (s *Service) FinishCase(ctx context.Context, p *model.Principal, id string) (*model.Case, error) {
	c, err := s.load(ctx, p, actionTransition, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(p, c.Status, model.CaseStatusFinished); err != nil {
		return nil, err
	}
	s.clearAttachments(ctx, c)
	return s.transition(ctx, p, c, model.CaseStatusFinished)
}

func (s *Service) transition(ctx context.Context, p *model.Principal, c *model.Case, to model.CaseStatus) (*model.Case, error) {
	if err := checkTransition(p, c.Status, to); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateCase(ctx, c.ID, model.CasePatch{Status: &to})
	if err != nil {
		return nil, err
	}
	s.recordTransition(c.ID, c.Status, to)
	s.publish(ctx, model.CaseEventUpdated, c.ID)
	return updated, nil
}

// DeleteCase removes the case and its attachments. Deleting a case that is
// already gone succeeds.
func (s *Service) DeleteCase(ctx context.Context, p *model.Principal, id string) error {
	if err := authorize(p, actionDelete, nil); err != nil {
		return err
	}
	c, err := s.repo.GetCase(ctx, id)
	if apperrors.HasCode(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := authorize(p, actionDelete, c); err != nil {
		return err
	}
	if err := s.repo.DeleteCase(ctx, id); err != nil {
		return err
	}
	s.logger.Info("case deleted", "case_id", id)
	s.publish(ctx, model.CaseEventDeleted, id)
	return nil
}

func (s *Service) ListLabs(ctx context.Context, p *model.Principal) ([]*model.Lab, error) {
	if err := authorize(p, actionListLabs, nil); err != nil {
		return nil, err
	}
	return s.repo.ListLabs(ctx)
}

// load fetches a case and authorizes act on it.
func (s *Service) load(ctx context.Context, p *model.Principal, act action, id string) (*model.Case, error) {
	if err := authorize(p, act, nil); err != nil {
		return nil, err
	}
	c, err := s.repo.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(p, act, c); err != nil {
		return nil, err
	}
	return c, nil
}

// clearAttachments deletes every attachment of c. Failures are logged and do
// not stop the caller.
func (s *Service) clearAttachments(ctx context.Context, c *model.Case) {
	attachments, err := s.repo.ListAttachments(ctx, c.ID)
	if err != nil {
		s.logger.Warn(err, "failed to list attachments for cleanup", "case_id", c.ID)
		return
	}
	for _, a := range attachments {
		if err := s.repo.DeleteAttachment(ctx, a.ID); err != nil {
			s.metrics.AttachmentOps.WithLabelValues("delete", "failed").Inc()
			s.logger.Warn(err, "failed to delete attachment", "case_id", c.ID, "attachment_id", a.ID)
			continue
		}
		s.metrics.AttachmentOps.WithLabelValues("delete", "ok").Inc()
	}
	if len(attachments) > 0 {
		s.publish(ctx, model.CaseEventAttachmentsChanged, c.ID)
	}
}

// notifySent tells the case's lab about it. Cases without a lab are skipped
// and failures are only logged.
func (s *Service) notifySent(ctx context.Context, c *model.Case) {
	if c.LabID == nil {
		return
	}
	lab, err := s.repo.GetLab(ctx, *c.LabID)
	if err != nil {
		if !apperrors.HasCode(err, apperrors.ErrNotFound) {
			s.logger.Warn(err, "failed to load lab for notification", "case_id", c.ID, "lab_id", *c.LabID)
		}
		lab = nil
	}
	if err := s.notifier.CaseSent(ctx, c, lab); err != nil {
		s.logger.Warn(err, "failed to notify lab", "case_id", c.ID, "lab_id", *c.LabID)
	}
}

func (s *Service) publish(ctx context.Context, typ model.CaseEventType, caseID string) {
	if s.publisher == nil {
		return
	}
	ev := model.CaseEvent{Type: typ, CaseID: caseID, At: s.now().UTC()}
	if err := s.publisher.Publish(ctx, model.CasesUpdatedChannel, ev); err != nil {
		s.metrics.BroadcastsFailed.Inc()
		s.logger.Warn(err, "failed to publish case event", "case_id", caseID, "type", typ)
	}
}

func (s *Service) recordTransition(id string, from, to model.CaseStatus) {
	s.metrics.CaseTransitions.WithLabelValues(string(from), string(to)).Inc()
	s.logger.Info("case status changed", "case_id", id, "from", from, "to", to)
}
