package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/internal/repository"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
	"github.com/jwalitptl/lab-cases/pkg/logger"
	"github.com/jwalitptl/lab-cases/pkg/storage"
)

const (
	caseColumns       = `id, name, service, shade, notes, delivery_date, lab_id, status, created_by, created_at`
	attachmentColumns = `id, patient_id, file_url, file_name, uploaded_at`
	labColumns        = `id, name, email, phone`
)

// CaseRepository stores cases in lab_patients, attachment metadata in
// lab_files and binaries in the object store.
type CaseRepository struct {
	BaseRepository
	objects storage.ObjectStore
	logger  *logger.Logger
	now     func() time.Time
}

type Option func(*CaseRepository)

func WithClock(now func() time.Time) Option {
	return func(r *CaseRepository) { r.now = now }
}

func WithLogger(l *logger.Logger) Option {
	return func(r *CaseRepository) { r.logger = l }
}

func NewCaseRepository(db *sqlx.DB, objects storage.ObjectStore, opts ...Option) *CaseRepository {
	r := &CaseRepository{
		BaseRepository: NewBaseRepository(db),
		objects:        objects,
		logger:         logger.Nop(),
		now:            model.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ repository.CaseRepository = (*CaseRepository)(nil)

func (r *CaseRepository) ListCasesForOwner(ctx context.Context, ownerID string) ([]*model.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM lab_patients
		WHERE created_by = $1
		ORDER BY created_at DESC, id DESC`
	return r.selectCases(ctx, query, ownerID)
}

func (r *CaseRepository) ListCasesByStatus(ctx context.Context, statuses ...model.CaseStatus) ([]*model.Case, error) {
	if len(statuses) == 0 {
		return []*model.Case{}, nil
	}
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	query := `SELECT ` + caseColumns + ` FROM lab_patients
		WHERE status = ANY($1)
		ORDER BY created_at DESC, id DESC`
	return r.selectCases(ctx, query, pq.Array(values))
}

func (r *CaseRepository) selectCases(ctx context.Context, query string, args ...interface{}) ([]*model.Case, error) {
	cases := make([]*model.Case, 0)
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	for _, c := range cases {
		normalizeCase(c)
	}
	return cases, nil
}

func (r *CaseRepository) GetCase(ctx context.Context, id string) (*model.Case, error) {
	var c model.Case
	query := `SELECT ` + caseColumns + ` FROM lab_patients WHERE id = $1`
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("case", nil)
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	normalizeCase(&c)
	return &c, nil
}

func (r *CaseRepository) CreateCase(ctx context.Context, fields model.CaseFields, ownerID string, status model.CaseStatus) (*model.Case, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	c := model.NewCase(uuid.NewString(), fields, ownerID, status, r.now())

	query := `
		INSERT INTO lab_patients (` + caseColumns + `)
		VALUES (:id, :name, :service, :shade, :notes, :delivery_date, :lab_id, :status, :created_by, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}
	return c, nil
}

func (r *CaseRepository) UpdateCase(ctx context.Context, id string, patch model.CasePatch) (*model.Case, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return r.GetCase(ctx, id)
	}

	// Apply the patch to a scratch case so clearing rules live in one place.
	var scratch model.Case
	patch.Apply(&scratch)

	var (
		sets []string
		args []interface{}
	)
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		set("name", scratch.Name)
	}
	if patch.Service != nil {
		set("service", scratch.Service)
	}
	if patch.Shade != nil {
		set("shade", scratch.Shade)
	}
	if patch.Notes != nil {
		set("notes", scratch.Notes)
	}
	if patch.DeliveryDate != nil {
		set("delivery_date", scratch.DeliveryDate)
	}
	if patch.LabID != nil {
		set("lab_id", scratch.LabID)
	}
	if patch.Status != nil {
		set("status", scratch.Status)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE lab_patients SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), caseColumns)

	var c model.Case
	if err := r.db.GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("case", nil)
		}
		return nil, fmt.Errorf("failed to update case: %w", err)
	}
	normalizeCase(&c)
	return &c, nil
}

func (r *CaseRepository) DeleteCase(ctx context.Context, id string) error {
	attachments, err := r.ListAttachments(ctx, id)
	if err != nil {
		return err
	}
	for _, a := range attachments {
		r.removeBinary(ctx, a)
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM lab_files WHERE patient_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete case files: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM lab_patients WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete case: %w", err)
		}
		return nil
	})
}

func (r *CaseRepository) ListAttachments(ctx context.Context, caseID string) ([]*model.Attachment, error) {
	attachments := make([]*model.Attachment, 0)
	query := `SELECT ` + attachmentColumns + ` FROM lab_files
		WHERE patient_id = $1
		ORDER BY uploaded_at DESC, id DESC`
	if err := r.db.SelectContext(ctx, &attachments, query, caseID); err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	for _, a := range attachments {
		a.UploadedAt = a.UploadedAt.UTC()
	}
	return attachments, nil
}

func (r *CaseRepository) GetAttachment(ctx context.Context, id string) (*model.Attachment, error) {
	var a model.Attachment
	query := `SELECT ` + attachmentColumns + ` FROM lab_files WHERE id = $1`
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("attachment", nil)
		}
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	a.UploadedAt = a.UploadedAt.UTC()
	return &a, nil
}

func (r *CaseRepository) AddAttachment(ctx context.Context, caseID, fileName string, content io.Reader, size int64) (*model.Attachment, error) {
	if _, err := r.GetCase(ctx, caseID); err != nil {
		return nil, err
	}

	now := r.now()
	key := storage.ObjectKey(caseID, now, fileName)
	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if err := r.objects.Put(ctx, key, content, size, contentType); err != nil {
		return nil, apperrors.Storage(fmt.Sprintf("failed to upload %s", fileName), err)
	}

	a := &model.Attachment{
		ID:         uuid.NewString(),
		CaseID:     caseID,
		FileURL:    r.objects.PublicURL(key),
		FileName:   fileName,
		UploadedAt: now,
	}
	query := `
		INSERT INTO lab_files (` + attachmentColumns + `)
		VALUES (:id, :patient_id, :file_url, :file_name, :uploaded_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		r.removeBinary(ctx, a)
		return nil, fmt.Errorf("failed to record attachment: %w", err)
	}
	return a, nil
}

func (r *CaseRepository) DeleteAttachment(ctx context.Context, id string) error {
	a, err := r.GetAttachment(ctx, id)
	if err != nil {
		return err
	}
	r.removeBinary(ctx, a)

	if _, err := r.db.ExecContext(ctx, `DELETE FROM lab_files WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

func (r *CaseRepository) ListLabs(ctx context.Context) ([]*model.Lab, error) {
	labs := make([]*model.Lab, 0)
	query := `SELECT ` + labColumns + ` FROM lab_labs ORDER BY name, id`
	if err := r.db.SelectContext(ctx, &labs, query); err != nil {
		return nil, fmt.Errorf("failed to list labs: %w", err)
	}
	return labs, nil
}

func (r *CaseRepository) GetLab(ctx context.Context, id string) (*model.Lab, error) {
	var l model.Lab
	query := `SELECT ` + labColumns + ` FROM lab_labs WHERE id = $1`
	if err := r.db.GetContext(ctx, &l, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("lab", nil)
		}
		return nil, fmt.Errorf("failed to get lab: %w", err)
	}
	return &l, nil
}

// UpsertLab writes reference data; used for provisioning and tests.
func (r *CaseRepository) UpsertLab(ctx context.Context, l *model.Lab) error {
	query := `
		INSERT INTO lab_labs (` + labColumns + `)
		VALUES (:id, :name, :email, :phone)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone
	`
	if _, err := r.db.NamedExecContext(ctx, query, l); err != nil {
		return fmt.Errorf("failed to upsert lab: %w", err)
	}
	return nil
}

func (r *CaseRepository) removeBinary(ctx context.Context, a *model.Attachment) {
	key, ok := r.objects.KeyFromURL(a.FileURL)
	if !ok {
		r.logger.Debug("attachment url not owned by object store", "attachment_id", a.ID)
		return
	}
	if err := r.objects.Delete(ctx, key); err != nil {
		r.logger.Warn(err, "failed to delete attachment binary",
			"attachment_id", a.ID, "file_name", a.FileName)
	}
}

// lib/pq returns timestamptz values in a fixed zone; compare in UTC.
func normalizeCase(c *model.Case) {
	c.CreatedAt = c.CreatedAt.UTC()
}
