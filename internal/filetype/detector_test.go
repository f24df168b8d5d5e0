package filetype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestDetectPDF(t *testing.T) {
	// Magic bytes decide, not the extension.
	p := writeFixture(t, "doc.bin", []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF"))

	d := New()
	info, err := d.Detect(p)
	require.NoError(t, err)
	assert.True(t, info.IsPDF)
	assert.True(t, info.Supported)
	assert.Equal(t, "application/pdf", info.MIMEType)

	assert.NoError(t, d.EnsurePDF(p))
}

func TestDetectRejectsNonPDF(t *testing.T) {
	png := writeFixture(t, "image.pdf", []byte("\x89PNG\r\n\x1a\n000000"))

	d := New()
	info, err := d.Detect(png)
	require.NoError(t, err)
	assert.False(t, info.IsPDF)
	assert.False(t, info.Supported)

	assert.Error(t, d.EnsurePDF(png))
}

func TestDetectRejectsPlainText(t *testing.T) {
	txt := writeFixture(t, "notes.pdf", []byte("just some text pretending to be a pdf"))

	d := New()
	require.Error(t, d.EnsurePDF(txt))
}
