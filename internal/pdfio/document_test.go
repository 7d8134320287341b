package pdfio

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/content"
	"pdf-translator/internal/coord"
	apperrors "pdf-translator/internal/types"
)

// writeMinimalPDF builds a one-page PDF with a single text content
// stream and a correct xref table.
func writeMinimalPDF(t *testing.T, path string) {
	t.Helper()

	var buf bytes.Buffer
	offsets := make([]int, 6)
	obj := func(n int, body string) {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
		"/Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>")
	stream := "BT /F1 24 Tf 72 720 Td (Hello World) Tj ET"
	offsets[4] = buf.Len()
	fmt.Fprintf(&buf, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream)
	obj(5, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	xref := buf.Len()
	buf.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestOpenAndPageGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pdf")
	writeMinimalPDF(t, path)

	doc, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.PageCount())

	w, h, err := doc.PageSize(1)
	require.NoError(t, err)
	assert.Equal(t, 612.0, w)
	assert.Equal(t, 792.0, h)

	_, _, err = doc.PageSize(9)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrContentStream))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrDocumentOpen))
}

func TestAppendContentStreamAndWrite(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.pdf")
	out := filepath.Join(dir, "out.pdf")
	writeMinimalPDF(t, in)

	doc, err := Open(in)
	require.NoError(t, err)

	body := content.Serialize([]content.Operation{
		content.Redaction{Box: coord.Box{X1: 72, Y1: 700, X2: 300, Y2: 740}, Fill: [3]float64{1, 1, 1}},
		content.TextShow{FontHandle: "F1", FontSize: 12, X: 72, Y: 720, Hex: "48656C6C6F"},
	})
	require.NoError(t, doc.AppendContentStream(1, body))
	require.NoError(t, doc.Write(out))

	// The result must reopen and survive a full validation pass
	require.NoError(t, api.ValidateFile(out, nil))

	reopened, err := Open(out)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.PageCount())
	w, h, err := reopened.PageSize(1)
	require.NoError(t, err)
	assert.Equal(t, 612.0, w)
	assert.Equal(t, 792.0, h)
}

func TestAppendTwiceGrowsContentsArray(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.pdf")
	out := filepath.Join(dir, "out.pdf")
	writeMinimalPDF(t, in)

	doc, err := Open(in)
	require.NoError(t, err)
	require.NoError(t, doc.AppendContentStream(1, []byte("q Q")))
	require.NoError(t, doc.AppendContentStream(1, []byte("q Q")))
	require.NoError(t, doc.Write(out))
	require.NoError(t, api.ValidateFile(out, nil))
}

func TestEnsureFontResourceIgnoresSourceFonts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pdf")
	writeMinimalPDF(t, path)

	doc, err := Open(path)
	require.NoError(t, err)
	// A handle the document never embedded refers to a source font and
	// needs no resource work.
	assert.NoError(t, doc.EnsureFontResource(1, "F1"))
}

// findSystemTTF returns a TrueType font from the host, skipping the
// test when none is installed.
func findSystemTTF(t *testing.T) string {
	t.Helper()
	patterns := []string{
		"/usr/share/fonts/**/*.ttf",
		"/usr/share/fonts/*/*.ttf",
		"/usr/share/fonts/*/*/*.ttf",
		"/System/Library/Fonts/*.ttf",
	}
	for _, p := range patterns {
		if matches, _ := filepath.Glob(p); len(matches) > 0 {
			return matches[0]
		}
	}
	t.Skip("no TrueType font installed")
	return ""
}

func TestEmbedTTFAndReference(t *testing.T) {
	ttf := findSystemTTF(t)
	data, err := os.ReadFile(ttf)
	require.NoError(t, err)

	dir := t.TempDir()
	in := filepath.Join(dir, "in.pdf")
	out := filepath.Join(dir, "out.pdf")
	writeMinimalPDF(t, in)

	doc, err := Open(in)
	require.NoError(t, err)

	handle, err := doc.EmbedTTF("TestFamily", data)
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	require.NoError(t, doc.EnsureFontResource(1, handle))
	require.NoError(t, doc.AppendContentStream(1, content.Serialize([]content.Operation{
		content.TextShow{FontHandle: handle, FontSize: 12, X: 72, Y: 700, Hex: "0041"},
	})))
	require.NoError(t, doc.Write(out))
	require.NoError(t, api.ValidateFile(out, nil))
}

func TestPDFBaseFontName(t *testing.T) {
	assert.Equal(t, "NotoSansJP", pdfBaseFontName("Noto Sans JP"))
	assert.Equal(t, "EmbeddedFont", pdfBaseFontName("   "))
}
