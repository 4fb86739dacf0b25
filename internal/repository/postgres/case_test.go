package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-cases/internal/repository"
	"github.com/jwalitptl/lab-cases/internal/repository/repositorytest"
)

// The remote provider runs the shared suite only against a disposable
// database named by LABCASES_TEST_DATABASE_DSN; its lab tables are truncated.
func TestCaseRepositoryContract(t *testing.T) {
	dsn := os.Getenv("LABCASES_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("LABCASES_TEST_DATABASE_DSN not set")
	}

	db, err := Connect(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db))

	repositorytest.RunProviderSuite(t, func(t *testing.T, fx repositorytest.Fixture) repository.CaseRepository {
		_, err := db.ExecContext(ctx, `TRUNCATE lab_files, lab_patients, lab_labs`)
		require.NoError(t, err)

		repo := NewCaseRepository(db, fx.Objects, WithClock(fx.Clock))
		for _, l := range fx.Labs {
			require.NoError(t, repo.UpsertLab(ctx, l))
		}
		return repo
	})
}
