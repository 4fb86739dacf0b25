package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/jwalitptl/lab-cases/internal/model"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
	"github.com/jwalitptl/lab-cases/pkg/logger"
	"github.com/jwalitptl/lab-cases/pkg/metrics"
)

// Fetcher opens the content behind an attachment URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Bundle is a finished zip archive.
type Bundle struct {
	FileName string
	Data     []byte
	// Entries lists the archive paths in the order they were written.
	Entries []string
	// Skipped counts attachments that could not be fetched.
	Skipped int
}

type Builder struct {
	fetcher Fetcher
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewBuilder(fetcher Fetcher, l *logger.Logger, m *metrics.Metrics) *Builder {
	if l == nil {
		l = logger.Nop()
	}
	return &Builder{fetcher: fetcher, logger: l, metrics: m}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9]`)

// FolderName is the archive's top-level folder for a case.
func FolderName(caseName string) string {
	return unsafeChars.ReplaceAllString(caseName, "_") + "_files"
}

// Build fetches every attachment and zips the ones that could be read under
// FolderName(c.Name). Unreadable files are logged and skipped.
func (b *Builder) Build(ctx context.Context, c *model.Case, attachments []*model.Attachment) (*Bundle, error) {
	if len(attachments) == 0 {
		return nil, apperrors.EmptyBundle("case has no attachments")
	}
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.BundleDuration.Observe(time.Since(start).Seconds())
		}
	}()

	folder := FolderName(c.Name)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	out := &Bundle{FileName: folder + ".zip"}

	for _, a := range attachments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := b.fetch(ctx, a.FileURL)
		if err != nil {
			out.Skipped++
			b.count("skipped")
			b.logger.Warn(err, "skipping attachment in bundle",
				"case_id", c.ID, "attachment_id", a.ID, "file_name", a.FileName)
			continue
		}

		name := folder + "/" + entryName(a.FileName)
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: a.UploadedAt,
		})
		if err != nil {
			return nil, apperrors.Internal(fmt.Errorf("failed to add %s to bundle: %w", name, err))
		}
		if _, err := w.Write(data); err != nil {
			return nil, apperrors.Internal(fmt.Errorf("failed to write %s to bundle: %w", name, err))
		}
		out.Entries = append(out.Entries, name)
		b.count("fetched")
	}

	if len(out.Entries) == 0 {
		return nil, apperrors.EmptyBundle("no attachment could be fetched")
	}
	if err := zw.Close(); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to finish bundle: %w", err))
	}
	out.Data = buf.Bytes()
	return out, nil
}

// fetch reads the whole body so a failure never leaves a partial entry.
func (b *Builder) fetch(ctx context.Context, url string) ([]byte, error) {
	rc, err := b.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (b *Builder) count(result string) {
	if b.metrics != nil {
		b.metrics.BundleFiles.WithLabelValues(result).Inc()
	}
}

// entryName keeps a stored file name from escaping the case folder.
func entryName(fileName string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(fileName)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
