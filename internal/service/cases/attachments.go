package cases

import (
	"context"
	"fmt"

	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/internal/service/bundle"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
)

// UploadError names the file that stopped a bulk upload. Files before Index
// were stored; files after it were not attempted.
type UploadError struct {
	FileName string
	Index    int
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s failed: %v", e.FileName, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func (s *Service) ListAttachments(ctx context.Context, p *model.Principal, caseID string) ([]*model.Attachment, error) {
	if _, err := s.load(ctx, p, actionView, caseID); err != nil {
		return nil, err
	}
	return s.repo.ListAttachments(ctx, caseID)
}

// UploadAttachments stores uploads one after another and stops at the first
// failure, returning the attachments stored so far.
func (s *Service) UploadAttachments(ctx context.Context, p *model.Principal, caseID string, uploads []model.Upload) ([]*model.Attachment, error) {
	if _, err := s.load(ctx, p, actionManageAttachments, caseID); err != nil {
		return nil, err
	}
	stored, err := s.uploadAll(ctx, caseID, uploads)
	if len(stored) > 0 {
		s.publish(ctx, model.CaseEventAttachmentsChanged, caseID)
	}
	return stored, err
}

func (s *Service) uploadAll(ctx context.Context, caseID string, uploads []model.Upload) ([]*model.Attachment, error) {
	stored := make([]*model.Attachment, 0, len(uploads))
	for i, u := range uploads {
		a, err := s.uploadOne(ctx, caseID, u)
		if err != nil {
			s.metrics.AttachmentOps.WithLabelValues("upload", "failed").Inc()
			s.logger.Warn(err, "upload aborted", "case_id", caseID, "file_name", u.FileName,
				"index", i, "remaining", len(uploads)-i-1)

			uerr := &UploadError{FileName: u.FileName, Index: i, Err: err}
			if apperrors.CodeOf(err) == apperrors.ErrNotFound {
				return stored, apperrors.NotFound("case", uerr)
			}
			return stored, apperrors.Storage(fmt.Sprintf("failed to upload %s", u.FileName), uerr)
		}
		s.metrics.AttachmentOps.WithLabelValues("upload", "ok").Inc()
		stored = append(stored, a)
	}
	return stored, nil
}

func (s *Service) uploadOne(ctx context.Context, caseID string, u model.Upload) (*model.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := u.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", u.FileName, err)
	}
	defer rc.Close()
	return s.repo.AddAttachment(ctx, caseID, u.FileName, rc, u.Size)
}

// DeleteAttachment removes one attachment of the case. An attachment that
// belongs to another case is reported as not found.
func (s *Service) DeleteAttachment(ctx context.Context, p *model.Principal, caseID, attachmentID string) error {
	if _, err := s.load(ctx, p, actionManageAttachments, caseID); err != nil {
		return err
	}
	a, err := s.repo.GetAttachment(ctx, attachmentID)
	if err != nil {
		return err
	}
	if a.CaseID != caseID {
		return apperrors.NotFound("attachment", nil)
	}
	if err := s.repo.DeleteAttachment(ctx, attachmentID); err != nil {
		return err
	}
	s.metrics.AttachmentOps.WithLabelValues("delete", "ok").Inc()
	s.publish(ctx, model.CaseEventAttachmentsChanged, caseID)
	return nil
}

// BuildBundle zips the case's attachments for download.
func (s *Service) BuildBundle(ctx context.Context, p *model.Principal, caseID string) (*bundle.Bundle, error) {
	c, err := s.load(ctx, p, actionView, caseID)
	if err != nil {
		return nil, err
	}
	attachments, err := s.repo.ListAttachments(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return s.bundler.Build(ctx, c, attachments)
}
