// Package blob stores uploaded verification documents and resolves them for
// previews. The lifecycle only ever sees the returned FileDescriptor.
package blob

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2b"

	"docverify/internal/verification/models"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/sentinel"
)

// DefaultMaxBytes is the upload cap when none is configured.
const DefaultMaxBytes int64 = 10 << 20

// allowedTypes maps each accepted sniffed content type to the extension the
// stored object keeps.
var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

var keyPattern = regexp.MustCompile(`^[0-9a-f]{40}\.(jpg|png|pdf)$`)

// Backend persists raw objects under a key.
type Backend interface {
	Write(ctx context.Context, key, contentType string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// FileDescriptor is what the lifecycle records for a stored document.
type FileDescriptor struct {
	Name        string
	ContentType string
	StoragePath string
}

// Ref converts the descriptor to the request model's file reference.
func (d FileDescriptor) Ref() *models.FileRef {
	return &models.FileRef{Name: d.Name, ContentType: d.ContentType, StoragePath: d.StoragePath}
}

type Store struct {
	backend  Backend
	maxBytes int64
}

func New(backend Backend, maxBytes int64) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{backend: backend, maxBytes: maxBytes}
}

// MaxBytes is the largest accepted upload.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Put validates and stores one upload. The content type is sniffed from the
// bytes, not taken from the client. Objects are keyed by their blake2b digest
// so identical uploads share one object.
func (s *Store) Put(ctx context.Context, originalName string, r io.Reader) (FileDescriptor, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return FileDescriptor{}, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return FileDescriptor{}, dErrors.New(dErrors.CodePayloadTooBig, fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	if len(data) == 0 {
		return FileDescriptor{}, dErrors.New(dErrors.CodeValidation, "file is empty")
	}

	contentType := SniffContentType(data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return FileDescriptor{}, dErrors.New(dErrors.CodeUnsupportedMed, "only JPEG, PNG and PDF files are accepted")
	}

	sum := blake2b.Sum256(data)
	key := hex.EncodeToString(sum[:20]) + ext

	if err := s.backend.Write(ctx, key, contentType, data); err != nil {
		return FileDescriptor{}, fmt.Errorf("writing object %s: %w", key, err)
	}
	return FileDescriptor{
		Name:        cleanName(originalName, ext),
		ContentType: contentType,
		StoragePath: key,
	}, nil
}

// Open returns a stored object. Unknown or malformed keys yield sentinel.ErrNotFound.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if !ValidKey(key) {
		return nil, "", sentinel.ErrNotFound
	}
	rc, err := s.backend.Open(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return rc, contentTypeForKey(key), nil
}

// ValidKey reports whether key has the shape Put produces.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// SniffContentType classifies the leading bytes of a file.
func SniffContentType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	// DetectContentType only reports PDFs that start exactly with the magic.
	if ct == "application/octet-stream" && bytes.HasPrefix(bytes.TrimLeft(data, "\r\n\t "), []byte("%PDF-")) {
		return "application/pdf"
	}
	return ct
}

func contentTypeForKey(key string) string {
	ext := path.Ext(key)
	for ct, e := range allowedTypes {
		if e == ext {
			return ct
		}
	}
	return "application/octet-stream"
}

func cleanName(name, ext string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document" + ext
	}
	if len(name) > 255 {
		name = name[len(name)-255:]
	}
	return name
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
