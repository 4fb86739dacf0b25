// Package memory is the in-process persistence provider used for local and
// demo runs. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/internal/repository"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
	"github.com/jwalitptl/lab-cases/pkg/logger"
	"github.com/jwalitptl/lab-cases/pkg/storage"
)

// Store keeps cases and attachments in two collections ordered newest first.
type Store struct {
	mu          sync.RWMutex
	cases       []*model.Case
	attachments []*model.Attachment
	labs        []*model.Lab

	objects storage.ObjectStore
	logger  *logger.Logger
	now     func() time.Time
	newID   func() string
}

type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithLabs sets the lab reference list.
func WithLabs(labs ...*model.Lab) Option {
	return func(s *Store) {
		for _, l := range labs {
			s.labs = append(s.labs, l.Clone())
		}
	}
}

// WithSeed loads the demo cases, files and labs.
func WithSeed() Option {
	return func(s *Store) {
		seed := demoData()
		s.cases = append(s.cases, seed.cases...)
		s.attachments = append(s.attachments, seed.attachments...)
		s.labs = append(s.labs, seed.labs...)
	}
}

// NewStore builds an empty store whose binaries live in objects.
func NewStore(objects storage.ObjectStore, opts ...Option) *Store {
	s := &Store{
		objects: objects,
		logger:  logger.Nop(),
		now:     model.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repository.CaseRepository = (*Store)(nil)

func (s *Store) ListCasesForOwner(ctx context.Context, ownerID string) ([]*model.Case, error) {
	return s.listCases(func(c *model.Case) bool { return c.CreatedBy == ownerID }), nil
}

func (s *Store) ListCasesByStatus(ctx context.Context, statuses ...model.CaseStatus) ([]*model.Case, error) {
	return s.listCases(func(c *model.Case) bool {
		for _, st := range statuses {
			if c.Status == st {
				return true
			}
		}
		return false
	}), nil
}

func (s *Store) listCases(keep func(*model.Case) bool) []*model.Case {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*model.Case, 0, len(s.cases))
	for _, c := range s.cases {
		if keep(c) {
			res = append(res, c.Clone())
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res
}

func (s *Store) GetCase(ctx context.Context, id string) (*model.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, c := s.findCase(id)
	if c == nil {
		return nil, apperrors.NotFound("case", nil)
	}
	return c.Clone(), nil
}

func (s *Store) CreateCase(ctx context.Context, fields model.CaseFields, ownerID string, status model.CaseStatus) (*model.Case, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	c := model.NewCase(s.newID(), fields, ownerID, status, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases = append([]*model.Case{c}, s.cases...)
	return c.Clone(), nil
}

func (s *Store) UpdateCase(ctx context.Context, id string, patch model.CasePatch) (*model.Case, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, c := s.findCase(id)
	if c == nil {
		return nil, apperrors.NotFound("case", nil)
	}
	updated := c.Clone()
	patch.Apply(updated)
	s.cases[i] = updated
	return updated.Clone(), nil
}

func (s *Store) DeleteCase(ctx context.Context, id string) error {
	s.mu.Lock()
	var removed []*model.Attachment
	kept := s.attachments[:0]
	for _, a := range s.attachments {
		if a.CaseID == id {
			removed = append(removed, a)
			continue
		}
		kept = append(kept, a)
	}
	s.attachments = kept
	if i, c := s.findCase(id); c != nil {
		s.cases = append(s.cases[:i], s.cases[i+1:]...)
	}
	s.mu.Unlock()

	for _, a := range removed {
		s.removeBinary(ctx, a)
	}
	return nil
}

func (s *Store) ListAttachments(ctx context.Context, caseID string) ([]*model.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*model.Attachment, 0)
	for _, a := range s.attachments {
		if a.CaseID == caseID {
			res = append(res, a.Clone())
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].UploadedAt.After(res[j].UploadedAt) })
	return res, nil
}

func (s *Store) GetAttachment(ctx context.Context, id string) (*model.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, a := s.findAttachment(id)
	if a == nil {
		return nil, apperrors.NotFound("attachment", nil)
	}
	return a.Clone(), nil
}

func (s *Store) AddAttachment(ctx context.Context, caseID, fileName string, content io.Reader, size int64) (*model.Attachment, error) {
	if _, err := s.GetCase(ctx, caseID); err != nil {
		return nil, err
	}

	now := s.now()
	key := storage.ObjectKey(caseID, now, fileName)
	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if err := s.objects.Put(ctx, key, content, size, contentType); err != nil {
		return nil, apperrors.Storage(fmt.Sprintf("failed to upload %s", fileName), err)
	}

	a := &model.Attachment{
		ID:         s.newID(),
		CaseID:     caseID,
		FileURL:    s.objects.PublicURL(key),
		FileName:   fileName,
		UploadedAt: now,
	}

	s.mu.Lock()
	if _, c := s.findCase(caseID); c == nil {
		s.mu.Unlock()
		// The case went away while the binary was uploading.
		s.removeBinary(ctx, a)
		return nil, apperrors.NotFound("case", nil)
	}
	s.attachments = append([]*model.Attachment{a}, s.attachments...)
	s.mu.Unlock()
	return a.Clone(), nil
}

func (s *Store) DeleteAttachment(ctx context.Context, id string) error {
	s.mu.Lock()
	i, a := s.findAttachment(id)
	if a == nil {
		s.mu.Unlock()
		return apperrors.NotFound("attachment", nil)
	}
	s.attachments = append(s.attachments[:i], s.attachments[i+1:]...)
	s.mu.Unlock()

	s.removeBinary(ctx, a)
	return nil
}

func (s *Store) ListLabs(ctx context.Context) ([]*model.Lab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*model.Lab, 0, len(s.labs))
	for _, l := range s.labs {
		res = append(res, l.Clone())
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Name != res[j].Name {
			return res[i].Name < res[j].Name
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (s *Store) GetLab(ctx context.Context, id string) (*model.Lab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.labs {
		if l.ID == id {
			return l.Clone(), nil
		}
	}
	return nil, apperrors.NotFound("lab", nil)
}

// Ping always succeeds; the store has no external dependency.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// removeBinary deletes the stored object behind a, logging failures.
func (s *Store) removeBinary(ctx context.Context, a *model.Attachment) {
	key, ok := s.objects.KeyFromURL(a.FileURL)
	if !ok {
		// Seeded placeholder URLs are not ours to delete.
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		s.logger.Warn(err, "failed to delete attachment binary",
			"attachment_id", a.ID, "file_name", a.FileName)
	}
}

func (s *Store) findCase(id string) (int, *model.Case) {
	for i, c := range s.cases {
		if c.ID == id {
			return i, c
		}
	}
	return -1, nil
}

func (s *Store) findAttachment(id string) (int, *model.Attachment) {
	for i, a := range s.attachments {
		if a.ID == id {
			return i, a
		}
	}
	return -1, nil
}
