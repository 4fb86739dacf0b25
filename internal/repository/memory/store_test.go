package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/internal/repository"
	"github.com/jwalitptl/lab-cases/internal/repository/repositorytest"
	"github.com/jwalitptl/lab-cases/pkg/storage"
)

func TestStoreContract(t *testing.T) {
	repositorytest.RunProviderSuite(t, func(t *testing.T, fx repositorytest.Fixture) repository.CaseRepository {
		return NewStore(fx.Objects, WithClock(fx.Clock), WithLabs(fx.Labs...))
	})
}

func TestSeededStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemoryStore("lab_files"), WithSeed())

	mine, err := s.ListCasesForOwner(ctx, DemoAdminID)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, "pat-003", mine[0].ID)
	assert.Equal(t, "pat-001", mine[2].ID)

	queue, err := s.ListCasesByStatus(ctx, model.LabQueueStatuses...)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "pat-003", queue[0].ID)
	assert.Equal(t, "pat-001", queue[1].ID)

	files, err := s.ListAttachments(ctx, "pat-002")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "miguel-scan.stl", files[0].FileName)
}

func TestNewCasesPrecedeSeed(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemoryStore("lab_files"), WithSeed())

	c, err := s.CreateCase(ctx, model.CaseFields{Name: "New", Service: "Bridge"}, DemoAdminID, model.CaseStatusDraft)
	require.NoError(t, err)

	mine, err := s.ListCasesForOwner(ctx, DemoAdminID)
	require.NoError(t, err)
	require.Len(t, mine, 4)
	assert.Equal(t, c.ID, mine[0].ID)
}

func TestDeleteSeededAttachmentKeepsForeignURL(t *testing.T) {
	ctx := context.Background()
	objects := storage.NewMemoryStore("lab_files")
	s := NewStore(objects, WithSeed())

	require.NoError(t, s.DeleteAttachment(ctx, "file-001"))
	files, err := s.ListAttachments(ctx, "pat-001")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemoryStore("lab_files"), WithSeed())

	c, err := s.GetCase(ctx, "pat-001")
	require.NoError(t, err)
	c.Name = "changed"
	*c.Notes = "changed"

	again, err := s.GetCase(ctx, "pat-001")
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", again.Name)
	assert.NotEqual(t, "changed", *again.Notes)
}
