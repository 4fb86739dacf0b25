package repository

import (
	"context"
	"io"

	"github.com/jwalitptl/lab-cases/internal/model"
)

// CaseRepository is the persistence provider for cases, their attachments and
// the lab reference list. The memory and postgres variants must return the
// same shapes in the same order for every call.
type CaseRepository interface {
	// ListCasesForOwner returns every case created by ownerID, newest first.
	ListCasesForOwner(ctx context.Context, ownerID string) ([]*model.Case, error)
	// ListCasesByStatus returns every case whose status is in statuses, newest first.
	ListCasesByStatus(ctx context.Context, statuses ...model.CaseStatus) ([]*model.Case, error)
	GetCase(ctx context.Context, id string) (*model.Case, error)
	CreateCase(ctx context.Context, fields model.CaseFields, ownerID string, status model.CaseStatus) (*model.Case, error)
	UpdateCase(ctx context.Context, id string, patch model.CasePatch) (*model.Case, error)
	// DeleteCase removes the case and all of its attachments. Deleting an
	// absent case is not an error.
	DeleteCase(ctx context.Context, id string) error

	// ListAttachments returns the case's attachments, newest first.
	ListAttachments(ctx context.Context, caseID string) ([]*model.Attachment, error)
	GetAttachment(ctx context.Context, id string) (*model.Attachment, error)
	// AddAttachment stores the binary first and records metadata only after
	// the store succeeded.
	AddAttachment(ctx context.Context, caseID, fileName string, content io.Reader, size int64) (*model.Attachment, error)
	// DeleteAttachment always removes the metadata; binary removal is
	// best-effort and only logged.
	DeleteAttachment(ctx context.Context, id string) error

	ListLabs(ctx context.Context) ([]*model.Lab, error)
	GetLab(ctx context.Context, id string) (*model.Lab, error)
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}
