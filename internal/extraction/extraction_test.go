package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDocx(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const documentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Quarterly report</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Revenue </w:t></w:r><w:r><w:t>grew.</w:t></w:r></w:p>
    <w:tbl><w:tr><w:tc><w:p><w:r><w:t>cell</w:t><w:tab/><w:t>value</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
  </w:body>
</w:document>`

func TestDocx_Extract(t *testing.T) {
	data := buildDocx(t, map[string]string{
		"word/document.xml": documentXML,
		"docProps/core.xml": `<cp:coreProperties xmlns:cp="x" xmlns:dc="y"><dc:title>Q3</dc:title></cp:coreProperties>`,
	})

	doc, err := NewRegistry().Extract(context.Background(), data, "report.docx", "")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly report\nRevenue grew.\ncell\tvalue", doc.Text)
	assert.Equal(t, "Q3", doc.Title)
	assert.Equal(t, MIMEDocx, doc.MimeType)
}

func TestDocx_Corrupt(t *testing.T) {
	_, err := Docx{}.Extract(context.Background(), []byte("not a zip"))
	assert.ErrorIs(t, err, ErrCorruptDocument)

	data := buildDocx(t, map[string]string{"other.xml": "<x/>"})
	_, err = Docx{}.Extract(context.Background(), data)
	assert.ErrorIs(t, err, ErrCorruptDocument)
}

func TestPlainText_Extract(t *testing.T) {
	doc, err := NewRegistry().Extract(context.Background(), []byte("\xef\xbb\xbfline one\r\nline two"), "notes.md", "")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", doc.Text)
	assert.Equal(t, MIMEMarkdown, doc.MimeType)

	_, err = PlainText{}.Extract(context.Background(), []byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, ErrCorruptDocument)
}

func TestHTML_Extract(t *testing.T) {
	page := `<html><head><title>Hello &amp; bye</title><style>p{}</style></head>
<body><!-- hidden --><h1>Heading</h1><p>First   paragraph</p><script>alert(1)</script><p>Second</p></body></html>`

	doc, err := HTML{}.Extract(context.Background(), []byte(page))
	require.NoError(t, err)
	assert.Equal(t, "Hello & bye", doc.Title)
	assert.Equal(t, "Heading\nFirst paragraph\nSecond", doc.Text)
}

func TestRegistry_Unsupported(t *testing.T) {
	r := NewRegistry()
	_, err := r.Extract(context.Background(), []byte("%PDF-1.7"), "scan.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.False(t, r.Supports("application/pdf"))
	assert.True(t, r.Supports("text/plain; charset=utf-8"))
}

func TestDetectMIME(t *testing.T) {
	docx := buildDocx(t, map[string]string{"word/document.xml": documentXML})

	tests := []struct {
		name     string
		fileName string
		declared string
		data     []byte
		want     string
	}{
		{"declared wins", "a.txt", "text/csv; charset=utf-8", nil, MIMECSV},
		{"octet stream falls back to extension", "a.json", "application/octet-stream", nil, MIMEJSON},
		{"extension", "README.markdown", "", nil, MIMEMarkdown},
		{"sniffed docx", "upload", "", docx, MIMEDocx},
		{"sniffed utf8", "upload", "", []byte("just words"), MIMEPlain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMIME(tt.fileName, tt.declared, tt.data))
		})
	}
}
