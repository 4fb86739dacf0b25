package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-cases/internal/model"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
	"github.com/jwalitptl/lab-cases/pkg/metrics"
)

type mapFetcher map[string]string

func (m mapFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	body, ok := m[url]
	if !ok {
		return nil, errors.New("fetch " + url + ": unexpected status 404")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func attachment(id, url, name string) *model.Attachment {
	return &model.Attachment{ID: id, CaseID: "c1", FileURL: url, FileName: name, UploadedAt: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)}
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(body)
	}
	return out
}

func TestFolderName(t *testing.T) {
	assert.Equal(t, "Jane_Smith_files", FolderName("Jane Smith"))
	assert.Equal(t, "Jos__P_rez_files", FolderName("José Pérez"))
	assert.Equal(t, "_files", FolderName(""))
}

func TestBuildSkipsUnreachableFiles(t *testing.T) {
	m := metrics.NewNop()
	b := NewBuilder(mapFetcher{
		"u1": "xray",
		"u3": "scan",
	}, nil, m)
	c := &model.Case{ID: "c1", Name: "Jane Smith"}

	out, err := b.Build(context.Background(), c, []*model.Attachment{
		attachment("a1", "u1", "xray.png"),
		attachment("a2", "u2", "missing.png"),
		attachment("a3", "u3", "scan.stl"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Jane_Smith_files.zip", out.FileName)
	assert.Equal(t, []string{"Jane_Smith_files/xray.png", "Jane_Smith_files/scan.stl"}, out.Entries)
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, map[string]string{
		"Jane_Smith_files/xray.png": "xray",
		"Jane_Smith_files/scan.stl": "scan",
	}, readZip(t, out.Data))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BundleFiles.WithLabelValues("fetched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BundleFiles.WithLabelValues("skipped")))
}

func TestBuildKeepsDuplicateNames(t *testing.T) {
	b := NewBuilder(mapFetcher{"u1": "one", "u2": "two"}, nil, nil)
	out, err := b.Build(context.Background(), &model.Case{Name: "A"}, []*model.Attachment{
		attachment("a1", "u1", "scan.stl"),
		attachment("a2", "u2", "scan.stl"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A_files/scan.stl", "A_files/scan.stl"}, out.Entries)
}

func TestBuildEmpty(t *testing.T) {
	b := NewBuilder(mapFetcher{}, nil, nil)
	c := &model.Case{Name: "Jane"}

	_, err := b.Build(context.Background(), c, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrEmptyBundle))

	_, err = b.Build(context.Background(), c, []*model.Attachment{attachment("a1", "gone", "x.png")})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrEmptyBundle))
}

func TestEntryNameStaysInFolder(t *testing.T) {
	b := NewBuilder(mapFetcher{"u1": "x"}, nil, nil)
	out, err := b.Build(context.Background(), &model.Case{Name: "A"}, []*model.Attachment{
		attachment("a1", "u1", "../../etc/passwd"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A_files/.._.._etc_passwd"}, out.Entries)
}
