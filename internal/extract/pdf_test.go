package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/docindex/pkg/models"
)

// buildPDF lays out objects 1..n with a correct cross-reference table. Object 1
// must be the catalog; info names the document-info object, 0 for none.
func buildPDF(objects []string, info int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R", len(objects)+1)
	if info > 0 {
		fmt.Fprintf(&buf, " /Info %d 0 R", info)
	}
	fmt.Fprintf(&buf, " >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

func pdfStream(dict string, data []byte) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

func grayJPEG(t *testing.T, level uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	img.Set(0, 0, color.Gray{Y: 255 - level})

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func imageXObject(data []byte) string {
	return pdfStream("/Type /XObject /Subtype /Image /Width 8 /Height 8 /ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /DCTDecode", data)
}

func writePDF(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

const helvetica = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

func TestExtract_PDF(t *testing.T) {
	page1 := "BT /F1 24 Tf 100 700 Td (Hello World) Tj ET\n" +
		"BT /F1 12 Tf 100 650 Td <517561727465726C79> Tj ET\n" +
		"q 100 0 0 100 100 400 cm /Im1 Do Q\n"
	page2 := "BT /F1 12 Tf 72 720 Td [(Second)-300(page)] TJ ET\n" +
		"q 50 0 0 50 72 500 cm /Im2 Do Q\n"

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 5 0 R >> /XObject << /Im1 6 0 R >> >> /Contents 7 0 R >>",
		"<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 5 0 R >> /XObject << /Im2 8 0 R >> >> /Contents 9 0 R >>",
		helvetica,
		imageXObject(grayJPEG(t, 40)),
		pdfStream("", []byte(page1)),
		imageXObject(grayJPEG(t, 200)),
		pdfStream("", []byte(page2)),
		"<< /Author (Jane Doe) /CreationDate (D:20240102030405Z) >>",
	}
	path := writePDF(t, "report.pdf", buildPDF(objects, 10))

	result, err := New(Config{}).Extract(context.Background(), path, models.FileTypePDF)

	require.NoError(t, err)
	assert.Empty(t, result.Faults)
	assert.Equal(t, models.FileTypePDF, result.FileType)
	assert.Equal(t, "Hello World\nQuarterly\nSecond page", result.Text)

	assert.Equal(t, "Jane Doe", result.Metadata.Author)
	require.NotNil(t, result.Metadata.CreatedDate)
	assert.True(t, result.Metadata.CreatedDate.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	require.Len(t, result.Images, 2)
	for i, img := range result.Images {
		assert.Equal(t, i+1, img.Page)
		assert.Equal(t, i+1, img.Index)
		assert.NotEmpty(t, img.Ext)

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(img.Data))
		require.NoError(t, err, "image %d", img.Index)
		assert.Equal(t, 8, cfg.Width)
	}
	assert.NotEqual(t, result.Images[0].Data, result.Images[1].Data)
}

func TestExtract_PDFWithoutImages(t *testing.T) {
	content := "BT /F1 11 Tf 72 720 Td (Plain text only) Tj 0 -14 Td (second line) Tj ET\n"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		helvetica,
		pdfStream("", []byte(content)),
	}
	path := writePDF(t, "plain.pdf", buildPDF(objects, 0))

	result, err := New(Config{}).Extract(context.Background(), path, models.FileTypePDF)

	require.NoError(t, err)
	assert.Equal(t, "Plain text only\nsecond line", result.Text)
	assert.Empty(t, result.Images)
	assert.Empty(t, result.Metadata.Author)
	for _, f := range result.Faults {
		assert.Equal(t, FaultDate, f.Kind, "unexpected fault %v", f)
	}
}
