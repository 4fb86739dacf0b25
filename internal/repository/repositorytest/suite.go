// Package repositorytest holds the behavioural suite every CaseRepository
// implementation must pass.
package repositorytest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/internal/repository"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
	"github.com/jwalitptl/lab-cases/pkg/storage"
)

// Fixture is what a provider factory receives for one subtest.
type Fixture struct {
	// Clock must be used for created_at/uploaded_at so ordering is deterministic.
	Clock   func() time.Time
	Objects *storage.MemoryStore
	Labs    []*model.Lab
}

// Factory builds a fresh, empty provider for each subtest.
type Factory func(t *testing.T, fx Fixture) repository.CaseRepository

// TickingClock returns a clock that advances one second per call.
func TickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start.UTC()
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func strPtr(s string) *string { return &s }

func fixtureLabs() []*model.Lab {
	return []*model.Lab{
		{ID: "lab-b", Name: "Northside Ceramics"},
		{ID: "lab-a", Name: "Aurora Dental Lab", Email: strPtr("orders@aurora.example.com")},
	}
}

func newFixture() Fixture {
	return Fixture{
		Clock:   TickingClock(time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)),
		Objects: storage.NewMemoryStore("lab_files"),
		Labs:    fixtureLabs(),
	}
}

// RunProviderSuite runs the shared behavioural checks against newRepo.
func RunProviderSuite(t *testing.T, newRepo Factory) {
	ctx := context.Background()

	setup := func(t *testing.T) (repository.CaseRepository, Fixture) {
		fx := newFixture()
		return newRepo(t, fx), fx
	}

	t.Run("create and get", func(t *testing.T) {
		repo, _ := setup(t)
		d := model.NewDate(2024, time.November, 15)
		created, err := repo.CreateCase(ctx, model.CaseFields{
			Name:         "  Jane Smith ",
			Service:      "Zirconia Crown",
			Shade:        "A2",
			Notes:        strPtr(""),
			DeliveryDate: &d,
			LabID:        strPtr("lab-a"),
		}, "owner-1", model.CaseStatusDraft)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "Jane Smith", created.Name)
		assert.Nil(t, created.Notes)
		assert.Equal(t, model.CaseStatusDraft, created.Status)
		assert.Equal(t, "owner-1", created.CreatedBy)

		got, err := repo.GetCase(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)
		require.NotNil(t, got.DeliveryDate)
		assert.Equal(t, "2024-11-15", got.DeliveryDate.String())
	})

	t.Run("create requires name and service", func(t *testing.T) {
		repo, _ := setup(t)
		_, err := repo.CreateCase(ctx, model.CaseFields{Name: " ", Service: "Crown"}, "owner-1", model.CaseStatusDraft)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
	})

	t.Run("unknown case is not found", func(t *testing.T) {
		repo, _ := setup(t)
		_, err := repo.GetCase(ctx, "00000000-0000-0000-0000-000000000000")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

		_, err = repo.UpdateCase(ctx, "00000000-0000-0000-0000-000000000000", model.CasePatch{Name: strPtr("x")})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	})

	t.Run("lists are newest first and scoped", func(t *testing.T) {
		repo, _ := setup(t)
		a := mustCreate(t, repo, "A", "owner-1", model.CaseStatusDraft)
		b := mustCreate(t, repo, "B", "owner-2", model.CaseStatusSent)
		c := mustCreate(t, repo, "C", "owner-1", model.CaseStatusSent)

		mine, err := repo.ListCasesForOwner(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, []string{c.ID, a.ID}, ids(mine))

		queue, err := repo.ListCasesByStatus(ctx, model.LabQueueStatuses...)
		require.NoError(t, err)
		assert.Equal(t, []string{c.ID, b.ID}, ids(queue))

		none, err := repo.ListCasesForOwner(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("update applies partial patch", func(t *testing.T) {
		repo, _ := setup(t)
		c := mustCreate(t, repo, "Miguel", "owner-1", model.CaseStatusDraft)

		updated, err := repo.UpdateCase(ctx, c.ID, model.CasePatch{
			Shade: strPtr("BL3"),
			Notes: strPtr("8 veneers"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Miguel", updated.Name)
		assert.Equal(t, "BL3", updated.Shade)
		require.NotNil(t, updated.Notes)
		assert.Equal(t, "8 veneers", *updated.Notes)
		assert.Equal(t, c.CreatedAt, updated.CreatedAt)

		sent := model.CaseStatusSent
		updated, err = repo.UpdateCase(ctx, c.ID, model.CasePatch{Status: &sent, Notes: strPtr("")})
		require.NoError(t, err)
		assert.Equal(t, model.CaseStatusSent, updated.Status)
		assert.Nil(t, updated.Notes)

		got, err := repo.GetCase(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
	})

	t.Run("update rejects blank required field", func(t *testing.T) {
		repo, _ := setup(t)
		c := mustCreate(t, repo, "Sara", "owner-1", model.CaseStatusDraft)
		_, err := repo.UpdateCase(ctx, c.ID, model.CasePatch{Service: strPtr("  ")})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
	})

	t.Run("attachments round trip", func(t *testing.T) {
		repo, fx := setup(t)
		c := mustCreate(t, repo, "Jane", "owner-1", model.CaseStatusDraft)

		first, err := repo.AddAttachment(ctx, c.ID, "xray.png", strings.NewReader("png-bytes"), 9)
		require.NoError(t, err)
		second, err := repo.AddAttachment(ctx, c.ID, "scan.stl", strings.NewReader("stl"), 3)
		require.NoError(t, err)
		assert.Equal(t, c.ID, first.CaseID)
		assert.Equal(t, "xray.png", first.FileName)

		list, err := repo.ListAttachments(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{second.ID, first.ID}, attachmentIDs(list))

		key, ok := fx.Objects.KeyFromURL(first.FileURL)
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(key, c.ID+"/"))
		assert.True(t, strings.HasSuffix(key, "-xray.png"))
		assertObject(t, fx.Objects, key, "png-bytes")

		got, err := repo.GetAttachment(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	})

	t.Run("attachment on unknown case", func(t *testing.T) {
		repo, fx := setup(t)
		_, err := repo.AddAttachment(ctx, "00000000-0000-0000-0000-000000000000", "a.png", strings.NewReader("x"), 1)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
		assert.Equal(t, 0, fx.Objects.Len())
	})

	t.Run("failed upload records nothing", func(t *testing.T) {
		repo, fx := setup(t)
		c := mustCreate(t, repo, "Jane", "owner-1", model.CaseStatusDraft)
		fx.Objects.FailPut = func(string) error { return errors.New("bucket unavailable") }

		_, err := repo.AddAttachment(ctx, c.ID, "a.png", strings.NewReader("x"), 1)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrStorage))

		list, err := repo.ListAttachments(ctx, c.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("delete attachment is best effort on binaries", func(t *testing.T) {
		repo, fx := setup(t)
		c := mustCreate(t, repo, "Jane", "owner-1", model.CaseStatusDraft)
		a, err := repo.AddAttachment(ctx, c.ID, "a.png", strings.NewReader("x"), 1)
		require.NoError(t, err)

		fx.Objects.FailDelete = func(string) error { return errors.New("denied") }
		require.NoError(t, repo.DeleteAttachment(ctx, a.ID))

		list, err := repo.ListAttachments(ctx, c.ID)
		require.NoError(t, err)
		assert.Empty(t, list)

		err = repo.DeleteAttachment(ctx, a.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	})

	t.Run("delete case cascades and is idempotent", func(t *testing.T) {
		repo, fx := setup(t)
		c := mustCreate(t, repo, "Jane", "owner-1", model.CaseStatusDraft)
		other := mustCreate(t, repo, "Other", "owner-1", model.CaseStatusDraft)
		for _, name := range []string{"a.png", "b.stl"} {
			_, err := repo.AddAttachment(ctx, c.ID, name, strings.NewReader("x"), 1)
			require.NoError(t, err)
		}
		_, err := repo.AddAttachment(ctx, other.ID, "keep.png", strings.NewReader("x"), 1)
		require.NoError(t, err)

		require.NoError(t, repo.DeleteCase(ctx, c.ID))
		_, err = repo.GetCase(ctx, c.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

		list, err := repo.ListAttachments(ctx, c.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
		assert.Equal(t, 1, fx.Objects.Len())

		require.NoError(t, repo.DeleteCase(ctx, c.ID))
	})

	t.Run("labs are ordered by name", func(t *testing.T) {
		repo, _ := setup(t)
		labs, err := repo.ListLabs(ctx)
		require.NoError(t, err)
		require.Len(t, labs, 2)
		assert.Equal(t, "lab-a", labs[0].ID)
		assert.Equal(t, "orders@aurora.example.com", labs[0].EmailOrEmpty())
		assert.Equal(t, "lab-b", labs[1].ID)
		assert.Nil(t, labs[1].Email)

		lab, err := repo.GetLab(ctx, "lab-b")
		require.NoError(t, err)
		assert.Equal(t, "Northside Ceramics", lab.Name)

		_, err = repo.GetLab(ctx, "lab-z")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	})
}

func mustCreate(t *testing.T, repo repository.CaseRepository, name, owner string, status model.CaseStatus) *model.Case {
	t.Helper()
	c, err := repo.CreateCase(context.Background(), model.CaseFields{Name: name, Service: "Crown"}, owner, status)
	require.NoError(t, err)
	return c
}

func assertObject(t *testing.T, s storage.ObjectStore, key, want string) {
	t.Helper()
	rc, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	var buf bytes.Buffer
	_, err = io.Copy(&buf, rc)
	require.NoError(t, err)
	assert.Equal(t, want, buf.String())
}

func ids(cases []*model.Case) []string {
	out := make([]string, 0, len(cases))
	for _, c := range cases {
		out = append(out, c.ID)
	}
	return out
}

func attachmentIDs(list []*model.Attachment) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}
