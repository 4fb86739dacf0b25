package model

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// AcceptedExtensions is the advisory upload filter shown by clients.
// The service does not enforce it.
var AcceptedExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".pdf",
	".dcm", ".stl", ".ply", ".obj", ".3mf", ".zip",
}

// IsAcceptedExtension reports whether name carries one of AcceptedExtensions.
func IsAcceptedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range AcceptedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Attachment is a file belonging to a case. It is stored in lab_files,
// where the owning case column is patient_id.
type Attachment struct {
	ID         string    `json:"id" db:"id"`
	CaseID     string    `json:"patient_id" db:"patient_id"`
	FileURL    string    `json:"file_url" db:"file_url"`
	FileName   string    `json:"file_name" db:"file_name"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}

func (a *Attachment) Clone() *Attachment {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// Upload is one file of a bulk upload. Open is called right before the file
// is stored so a batch never holds more than one body open.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// BytesUpload wraps an in-memory body.
func BytesUpload(fileName string, data []byte) Upload {
	return Upload{
		FileName: fileName,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
