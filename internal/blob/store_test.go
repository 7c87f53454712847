package blob

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "docverify/pkg/domain-errors"
)

var (
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegBody  = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	pdfBody   = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")
)

func newLocalStore(t *testing.T, maxBytes int64) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := NewLocal(dir)
	require.NoError(t, err)
	return New(backend, maxBytes), dir
}

func TestPutAcceptsAllowedTypes(t *testing.T) {
	store, dir := newLocalStore(t, 0)
	ctx := context.Background()

	cases := []struct {
		name, file, wantType, wantExt string
		data                          []byte
	}{
		{"png", "scan.png", "image/png", ".png", pngHeader},
		{"jpeg", "photo.jpeg", "image/jpeg", ".jpg", jpegBody},
		{"pdf", "passport.pdf", "application/pdf", ".pdf", pdfBody},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			desc, err := store.Put(ctx, tc.file, bytes.NewReader(tc.data))
			require.NoError(t, err)
			assert.Equal(t, tc.file, desc.Name)
			assert.Equal(t, tc.wantType, desc.ContentType)
			assert.True(t, strings.HasSuffix(desc.StoragePath, tc.wantExt))
			assert.True(t, ValidKey(desc.StoragePath))

			onDisk, err := os.ReadFile(filepath.Join(dir, desc.StoragePath))
			require.NoError(t, err)
			assert.Equal(t, tc.data, onDisk)
		})
	}
}

func TestPutRejectsUnsupportedAndOversized(t *testing.T) {
	store, _ := newLocalStore(t, 64)
	ctx := context.Background()

	_, err := store.Put(ctx, "notes.txt", strings.NewReader("just some text"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedMed))

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 100)...)
	_, err = store.Put(ctx, "big.png", bytes.NewReader(big))
	assert.True(t, dErrors.HasCode(err, dErrors.CodePayloadTooBig))

	_, err = store.Put(ctx, "empty.png", bytes.NewReader(nil))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestPutIsContentAddressed(t *testing.T) {
	store, _ := newLocalStore(t, 0)
	ctx := context.Background()

	a, err := store.Put(ctx, "a.pdf", bytes.NewReader(pdfBody))
	require.NoError(t, err)
	b, err := store.Put(ctx, "b.pdf", bytes.NewReader(pdfBody))
	require.NoError(t, err)
	assert.Equal(t, a.StoragePath, b.StoragePath)
	assert.Equal(t, "b.pdf", b.Name)

	other, err := store.Put(ctx, "c.pdf", bytes.NewReader(append(pdfBody, 'x')))
	require.NoError(t, err)
	assert.NotEqual(t, a.StoragePath, other.StoragePath)
}

func TestOpen(t *testing.T) {
	store, _ := newLocalStore(t, 0)
	ctx := context.Background()
	desc, err := store.Put(ctx, "scan.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	rc, ct, err := store.Open(ctx, desc.StoragePath)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, got)
	assert.Equal(t, "image/png", ct)

	_, _, err = store.Open(ctx, "../../etc/passwd")
	assert.True(t, IsNotFound(err))

	_, _, err = store.Open(ctx, strings.Repeat("a", 40)+".png")
	assert.True(t, IsNotFound(err))
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "passport.pdf", cleanName(`C:\Users\me\passport.pdf`, ".pdf"))
	assert.Equal(t, "id.png", cleanName("../../id.png", ".png"))
	assert.Equal(t, "document.jpg", cleanName("  ", ".jpg"))
}

func TestDescriptorRef(t *testing.T) {
	ref := FileDescriptor{Name: "a.pdf", ContentType: "application/pdf", StoragePath: "k.pdf"}.Ref()
	assert.Equal(t, "a.pdf", ref.Name)
	assert.Equal(t, "k.pdf", ref.StoragePath)
}
