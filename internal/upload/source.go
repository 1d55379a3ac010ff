package upload

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
)

// PDFContentType is the only declared type the flow accepts.
const PDFContentType = "application/pdf"

// SourceFile is a selected file: its name, declared MIME type, size, and a
// way to read it.
type SourceFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FromFileHeader wraps a multipart upload. The declared type is whatever
// the client sent in the part header.
func FromFileHeader(fh *multipart.FileHeader) *SourceFile {
	return &SourceFile{
		Name:        filepath.Base(fh.Filename),
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromPath wraps a file on disk. The declared type comes from the
// extension.
func FromPath(path string) (*SourceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}

	return &SourceFile{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// ObjectKey is the storage key for one upload.
func ObjectKey(uid, id, name string) string {
	return fmt.Sprintf("pdfs/%s/%s-%s", uid, id, name)
}
