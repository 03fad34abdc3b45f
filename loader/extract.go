package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/harvest/core"
)

// Extract reads the file at path and returns its text as a content record.
// filename is the original upload name and selects the extractor.
func Extract(path, filename string) (*core.RawContentRecord, error) {
	var (
		text string
		md   map[string]string
		err  error
	)

	switch SourceType(filename) {
	case core.SourceTypePDF:
		text, md, err = extractPDF(path)
	case core.SourceTypeWord:
		text, md, err = extractDOCX(path)
	case core.SourceTypeMarkdown, core.SourceTypeText:
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filename, err)
		}
		if SourceType(filename) == core.SourceTypeMarkdown {
			text, md, err = extractMarkdown(data)
		} else {
			text, md = string(data), map[string]string{}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, Ext(filename))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtractFailed, filename, err)
	}

	text = CleanText(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoText, filename)
	}

	md["source_type"] = SourceType(filename)
	md["filename"] = filename
	md["content_length"] = strconv.Itoa(len(text))

	title := md["title"]
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return &core.RawContentRecord{
		Filename: filename,
		Title:    title,
		Content:  text,
		Metadata: md,
	}, nil
}

func extractPDF(path string) (text string, md map[string]string, err error) {
	// the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", nil, fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", nil, fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), map[string]string{"page_count": strconv.Itoa(r.NumPage())}, nil
}

// extractDOCX reads the WordprocessingML body of a .docx archive, one line
// per paragraph, and the title from the core properties.
func extractDOCX(path string) (string, map[string]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	md := map[string]string{}
	var body string
	found := false
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			data, err := readZipFile(f)
			if err != nil {
				return "", nil, err
			}
			var paragraphs int
			body, paragraphs, err = docxText(data)
			if err != nil {
				return "", nil, fmt.Errorf("parse document.xml: %w", err)
			}
			md["paragraph_count"] = strconv.Itoa(paragraphs)
			found = true
		case "docProps/core.xml":
			data, err := readZipFile(f)
			if err != nil {
				return "", nil, err
			}
			var props struct {
				Title   string `xml:"title"`
				Creator string `xml:"creator"`
				Subject string `xml:"subject"`
			}
			if xml.Unmarshal(data, &props) == nil {
				setIf(md, "title", props.Title)
				setIf(md, "author", props.Creator)
				setIf(md, "subject", props.Subject)
			}
		}
	}
	if !found {
		return "", nil, fmt.Errorf("word/document.xml missing")
	}
	return body, md, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, MaxFileSize*4))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

// docxText walks w:p paragraphs collecting w:t runs. Tabs and breaks become
// whitespace; empty paragraphs are dropped.
func docxText(data []byte) (string, int, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		lines      []string
		current    strings.Builder
		inText     bool
		paragraphs int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs++
				if line := strings.TrimSpace(current.String()); line != "" {
					lines = append(lines, line)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if line := strings.TrimSpace(current.String()); line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), paragraphs, nil
}

var (
	mdFence    = regexp.MustCompile("(?m)^[ \t]*(```|~~~).*$")
	mdHeading  = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`)
	mdList     = regexp.MustCompile(`(?m)^[ \t]*([-*+]|\d+[.)])[ \t]+`)
	mdQuote    = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	mdImage    = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdEmphasis = regexp.MustCompile(`(\*\*|__|\*|~~|` + "`" + `)`)
	mdRule     = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	mdTitle    = regexp.MustCompile(`(?m)^[ \t]{0,3}#[ \t]+(.+?)[ \t]*#*[ \t]*$`)
)

// extractMarkdown splits off YAML front matter and reduces the body to plain
// text, keeping paragraph structure.
func extractMarkdown(data []byte) (string, map[string]string, error) {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	md := map[string]string{"original_format": "markdown"}

	if strings.HasPrefix(content, "---\n") {
		if end := strings.Index(content[4:], "\n---"); end >= 0 {
			front := content[4 : 4+end]
			content = strings.TrimPrefix(content[4+end+4:], "\n")

			var fields map[string]any
			if err := yaml.Unmarshal([]byte(front), &fields); err != nil {
				return "", nil, fmt.Errorf("parse front matter: %w", err)
			}
			for k, v := range fields {
				switch v := v.(type) {
				case nil:
				case []any:
					parts := make([]string, 0, len(v))
					for _, p := range v {
						parts = append(parts, fmt.Sprint(p))
					}
					md[k] = strings.Join(parts, ", ")
				default:
					md[k] = fmt.Sprint(v)
				}
			}
		}
	}

	if md["title"] == "" {
		if m := mdTitle.FindStringSubmatch(content); m != nil {
			md["title"] = m[1]
		}
	}

	text := mdFence.ReplaceAllString(content, "")
	text = mdRule.ReplaceAllString(text, "")
	text = mdHeading.ReplaceAllString(text, "")
	text = mdList.ReplaceAllString(text, "")
	text = mdQuote.ReplaceAllString(text, "")
	text = mdImage.ReplaceAllString(text, "$1")
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdEmphasis.ReplaceAllString(text, "")
	return text, md, nil
}

var (
	blankLines = regexp.MustCompile(`\n\s*\n(\s*\n)*`)
	spaceRuns  = regexp.MustCompile(`[ \t]+`)
)

// CleanText drops control characters, normalizes line endings, collapses runs
// of spaces and limits blank lines to one.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = spaceRuns.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func setIf(md map[string]string, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		md[key] = value
	}
}
