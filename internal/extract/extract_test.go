package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/docindex/pkg/models"
)

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name    string
		want    models.FileType
		wantErr bool
	}{
		{"report.pdf", models.FileTypePDF, false},
		{"REPORT.PDF", models.FileTypePDF, false},
		{"notes.docx", models.FileTypeDOCX, false},
		{"notes.doc", "", true},
		{"image.png", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFileType(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePDFDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"8 digits", "D:20230512", time.Date(2023, 5, 12, 0, 0, 0, 0, time.UTC)},
		{"12 digits", "D:202305121430", time.Date(2023, 5, 12, 14, 30, 0, 0, time.UTC)},
		{"14 digits", "D:20230512143059", time.Date(2023, 5, 12, 14, 30, 59, 0, time.UTC)},
		{"zulu", "D:20230512143059Z", time.Date(2023, 5, 12, 14, 30, 59, 0, time.UTC)},
		{"no prefix", "20230512", time.Date(2023, 5, 12, 0, 0, 0, 0, time.UTC)},
		{"positive offset", "D:20230512143059+03'00'", time.Date(2023, 5, 12, 11, 30, 59, 0, time.UTC)},
		{"negative offset", "D:20230512143059-05'30", time.Date(2023, 5, 12, 20, 0, 59, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePDFDate(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParsePDFDate_Invalid(t *testing.T) {
	for _, input := range []string{"", "D:", "yesterday", "D:2023", "D:20231345"} {
		_, err := ParsePDFDate(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestDocumentDate(t *testing.T) {
	t.Run("creation date wins", func(t *testing.T) {
		got, fault := documentDate("D:20230101", "D:20240101")
		require.Nil(t, fault)
		require.NotNil(t, got)
		assert.Equal(t, 2023, got.Year())
	})

	t.Run("falls back to modification date", func(t *testing.T) {
		got, fault := documentDate("garbage", "D:20240101")
		require.Nil(t, fault)
		require.NotNil(t, got)
		assert.Equal(t, 2024, got.Year())
	})

	t.Run("both unparsable", func(t *testing.T) {
		got, fault := documentDate("garbage", "more garbage")
		assert.Nil(t, got)
		require.NotNil(t, fault)
		assert.Equal(t, FaultDate, fault.Kind)
		assert.True(t, errors.Is(*fault, errNoDate))
	})

	t.Run("both absent", func(t *testing.T) {
		got, fault := documentDate("", "")
		assert.Nil(t, got)
		assert.Nil(t, fault)
	})
}

func TestExtract_Errors(t *testing.T) {
	e := New(Config{})
	ctx := context.Background()

	t.Run("unsupported type", func(t *testing.T) {
		_, err := e.Extract(ctx, "whatever.txt", models.FileType("txt"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := e.Extract(ctx, filepath.Join(t.TempDir(), "missing.pdf"), models.FileTypePDF)
		assert.ErrorIs(t, err, ErrUnreadable)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := e.Extract(ctx, t.TempDir(), models.FileTypePDF)
		assert.ErrorIs(t, err, ErrUnreadable)
	})

	t.Run("too large", func(t *testing.T) {
		small := New(Config{MaxFileSize: 4})
		path := filepath.Join(t.TempDir(), "big.pdf")
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 too big"), 0o644))
		_, err := small.Extract(ctx, path, models.FileTypePDF)
		assert.ErrorIs(t, err, ErrUnreadable)
	})
}

func TestExtract_CorruptPDFDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf at all"), 0o644))

	result, err := New(Config{}).Extract(context.Background(), path, models.FileTypePDF)

	require.NoError(t, err)
	assert.Equal(t, models.FileTypePDF, result.FileType)
	assert.Empty(t, result.Text)
	assert.Empty(t, result.Images)
	require.NotEmpty(t, result.Faults)
	assert.Equal(t, FaultCorrupt, result.Faults[0].Kind)
}

func TestExtract_CorruptDocxDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	require.NoError(t, os.WriteFile(path, []byte("PK not really"), 0o644))

	result, err := New(Config{}).Extract(context.Background(), path, models.FileTypeDOCX)

	require.NoError(t, err)
	assert.Empty(t, result.Text)
	require.NotEmpty(t, result.Faults)
	assert.Equal(t, FaultCorrupt, result.Faults[0].Kind)
}

const testDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Quarterly report</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Revenue grew </w:t></w:r><w:r><w:t>again.</w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:r><w:t>Выручка</w:t><w:tab/><w:t>выросла</w:t></w:r></w:p>
  </w:body>
</w:document>`

const testCoreXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
  xmlns:dc="http://purl.org/dc/elements/1.1/"
  xmlns:dcterms="http://purl.org/dc/terms/"
  xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <dc:creator>Jane Analyst</dc:creator>
  <dcterms:created xsi:type="dcterms:W3CDTF">2023-05-12T10:00:00Z</dcterms:created>
  <dcterms:modified xsi:type="dcterms:W3CDTF">2023-06-01T08:00:00Z</dcterms:modified>
</cp:coreProperties>`

const testRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
  <Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image2.jpeg"/>
  <Relationship Id="rId4" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
  <Relationship Id="rId6" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/missing.png"/>
  <Relationship Id="rId7" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="https://example.com/remote.png" TargetMode="External"/>
</Relationships>`

func writeDocx(t *testing.T, parts map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range parts {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func TestExtract_Docx(t *testing.T) {
	path := writeDocx(t, map[string]string{
		docxDocumentPath:         testDocumentXML,
		docxCorePath:             testCoreXML,
		docxRelsPath:             testRelsXML,
		"word/media/image1.png":  "png-bytes",
		"word/media/image2.jpeg": "jpeg-bytes",
	})

	result, err := New(Config{}).Extract(context.Background(), path, models.FileTypeDOCX)
	require.NoError(t, err)

	assert.Equal(t, models.FileTypeDOCX, result.FileType)
	assert.Equal(t, "Quarterly report\nRevenue grew again.\nВыручка выросла", result.Text)

	assert.Equal(t, "Jane Analyst", result.Metadata.Author)
	require.NotNil(t, result.Metadata.CreatedDate)
	assert.Equal(t, "2023-05-12", result.Metadata.CreatedDate.Format("2006-01-02"))

	// Relationship order, not part name order.
	require.Len(t, result.Images, 2)
	assert.Equal(t, []byte("jpeg-bytes"), result.Images[0].Data)
	assert.Equal(t, "jpeg", result.Images[0].Ext)
	assert.Equal(t, 1, result.Images[0].Index)
	assert.Equal(t, []byte("png-bytes"), result.Images[1].Data)
	assert.Equal(t, "png", result.Images[1].Ext)
	assert.Equal(t, 2, result.Images[1].Index)
	assert.Zero(t, result.Images[0].Page)

	// The dangling relationship is a fault, the external one is ignored.
	require.Len(t, result.Faults, 1)
	assert.Equal(t, FaultImage, result.Faults[0].Kind)
	assert.Equal(t, "rId6", result.Faults[0].Scope)
}

func TestExtract_DocxWithoutOptionalParts(t *testing.T) {
	path := writeDocx(t, map[string]string{docxDocumentPath: testDocumentXML})

	result, err := New(Config{}).Extract(context.Background(), path, models.FileTypeDOCX)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Text)
	assert.Empty(t, result.Metadata.Author)
	assert.Nil(t, result.Metadata.CreatedDate)
	assert.Empty(t, result.Images)
	assert.Empty(t, result.Faults)
}

func TestExtract_DocxBadDate(t *testing.T) {
	core := `<cp:coreProperties xmlns:cp="c" xmlns:dc="d" xmlns:dcterms="t"><dc:creator>X</dc:creator><dcterms:created>someday</dcterms:created></cp:coreProperties>`
	path := writeDocx(t, map[string]string{docxDocumentPath: testDocumentXML, docxCorePath: core})

	result, err := New(Config{}).Extract(context.Background(), path, models.FileTypeDOCX)
	require.NoError(t, err)

	assert.Equal(t, "X", result.Metadata.Author)
	assert.Nil(t, result.Metadata.CreatedDate)
	require.Len(t, result.Faults, 1)
	assert.Equal(t, FaultDate, result.Faults[0].Kind)
}

func TestExtract_DocxMissingBody(t *testing.T) {
	path := writeDocx(t, map[string]string{docxCorePath: testCoreXML})

	result, err := New(Config{}).Extract(context.Background(), path, models.FileTypeDOCX)
	require.NoError(t, err)

	assert.Empty(t, result.Text)
	assert.Equal(t, "Jane Analyst", result.Metadata.Author)
	require.Len(t, result.Faults, 1)
	assert.Equal(t, FaultPage, result.Faults[0].Kind)
}

func TestExtract_DocxTextBox(t *testing.T) {
	document := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t xml:space="preserve">Before the box </w:t></w:r><w:r><w:pict><w:txbxContent>
<w:p><w:r><w:t>Inside the box</w:t></w:r></w:p>
</w:txbxContent></w:pict></w:r><w:r><w:t>and after it.</w:t></w:r></w:p>
<w:p><w:r><w:t>Closing line</w:t></w:r></w:p>
</w:body></w:document>`
	path := writeDocx(t, map[string]string{docxDocumentPath: document})

	result, err := New(Config{}).Extract(context.Background(), path, models.FileTypeDOCX)
	require.NoError(t, err)

	assert.Equal(t, "Inside the box\nBefore the box and after it.\nClosing line", result.Text)
	assert.Empty(t, result.Faults)
}
