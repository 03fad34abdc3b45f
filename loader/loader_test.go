package loader

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/harvest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		want     error
	}{
		{"pdf ok", "paper.PDF", 100, nil},
		{"docx ok", "notes.docx", 100, nil},
		{"markdown ok", "readme.md", 1, nil},
		{"txt ok", "a.txt", MaxFileSize, nil},
		{"too large", "paper.pdf", MaxFileSize + 1, ErrFileTooLarge},
		{"unsupported", "image.png", 10, ErrUnsupportedType},
		{"no extension", "Makefile", 10, ErrUnsupportedType},
		{"empty", "a.md", 0, ErrEmptyFile},
		{"no name", " ", 10, core.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.filename, tt.size)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "my_report__v2_.pdf", SafeName("my report (v2).pdf"))
	assert.Equal(t, "passwd", SafeName("../../etc/passwd"))
}

func TestFileStore_Save(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	store.now = func() time.Time { return time.Unix(1700000000, 0) }

	info, err := store.Save("alice@example.com", "My Notes.md", strings.NewReader("# Notes\n\nhello"))
	require.NoError(t, err)

	assert.Equal(t, "My Notes.md", info.Name)
	assert.Equal(t, int64(14), info.Size)
	assert.Equal(t, "text/markdown", info.ContentType)
	assert.Equal(t, "user_alice_example.com/1700000000_My_Notes.md", info.StoragePath)
	assert.Equal(t, core.ContentDigest([]byte("# Notes\n\nhello")), info.Digest)

	path, err := store.Path(info.StoragePath)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Notes\n\nhello", string(data))

	// same second, same name: stored under a distinct path
	again, err := store.Save("alice@example.com", "My Notes.md", strings.NewReader("other"))
	require.NoError(t, err)
	assert.NotEqual(t, info.StoragePath, again.StoragePath)

	require.NoError(t, store.Remove(info.StoragePath))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, store.Remove(info.StoragePath), "removing twice is fine")
}

func TestFileStore_SaveRejects(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("bob", "empty.txt", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = store.Save("bob", "virus.exe", strings.NewReader("MZ"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = store.Save("", "a.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, core.ErrEmptyOwner)

	_, err = store.Path("../outside")
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtract_Markdown(t *testing.T) {
	md := "---\ntitle: Field Guide\ntags: [birds, coast]\n---\n# Ignored Heading\n\nSome **bold** text and a [link](http://x).\n\n\n\n- item one\n- item two\n"
	rec, err := Extract(writeFile(t, "guide.md", md), "guide.md")
	require.NoError(t, err)

	assert.Equal(t, "guide.md", rec.Filename)
	assert.Empty(t, rec.URL)
	assert.Equal(t, "Field Guide", rec.Title)
	assert.Equal(t, "Ignored Heading\n\nSome bold text and a link.\n\nitem one\nitem two", rec.Content)
	assert.Equal(t, "birds, coast", rec.Metadata["tags"])
	assert.Equal(t, core.SourceTypeMarkdown, rec.Metadata["source_type"])
	assert.Equal(t, "guide.md", rec.Metadata["filename"])
}

func TestExtract_MarkdownTitleFromHeading(t *testing.T) {
	rec, err := Extract(writeFile(t, "n.markdown", "intro\n\n# The Title\n\nbody"), "n.markdown")
	require.NoError(t, err)
	assert.Equal(t, "The Title", rec.Title)
}

func TestExtract_Text(t *testing.T) {
	rec, err := Extract(writeFile(t, "plain.txt", "line one\r\nline   two\x00\n"), "plain.txt")
	require.NoError(t, err)
	assert.Equal(t, "plain", rec.Title)
	assert.Equal(t, "line one\nline two", rec.Content)
	assert.Equal(t, core.SourceTypeText, rec.Metadata["source_type"])
}

func TestExtract_NoText(t *testing.T) {
	_, err := Extract(writeFile(t, "blank.txt", "  \n\t\n"), "blank.txt")
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExtract_DOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>para</w:t></w:r></w:p>
</w:body></w:document>`))
	require.NoError(t, err)

	w, err = zw.Create("docProps/core.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Quarterly Report</dc:title><dc:creator>Ann</dc:creator></cp:coreProperties>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	rec, err := Extract(path, "report.docx")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly Report", rec.Title)
	assert.Equal(t, "Hello world\nSecond para", rec.Content)
	assert.Equal(t, "3", rec.Metadata["paragraph_count"])
	assert.Equal(t, "Ann", rec.Metadata["author"])
	assert.Equal(t, core.SourceTypeWord, rec.Metadata["source_type"])
}

func TestExtract_BrokenFiles(t *testing.T) {
	_, err := Extract(writeFile(t, "fake.pdf", "definitely not a pdf"), "fake.pdf")
	assert.ErrorIs(t, err, ErrExtractFailed)

	_, err = Extract(writeFile(t, "fake.docx", "not a zip"), "fake.docx")
	assert.ErrorIs(t, err, ErrExtractFailed)

	_, err = Extract(writeFile(t, "x.png", "png"), "x.png")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b\n\nc", CleanText("  a    b \n\n\n \n c  "))
}
