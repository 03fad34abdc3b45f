package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ParsedPage is the useful content of one HTML document.
type ParsedPage struct {
	Title       string
	Description string
	Text        string
	Links       []string
}

// noText elements contribute no text. Links inside them are still followed.
var noText = map[string]bool{
	"script": true, "style": true, "noscript": true, "nav": true,
	"template": true, "svg": true, "iframe": true, "head": true,
}

// block elements start a new paragraph in the extracted text.
var block = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"header": true, "footer": true, "aside": true, "blockquote": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "dl": true, "dt": true, "dd": true,
	"table": true, "tr": true, "br": true, "hr": true, "figure": true, "figcaption": true,
}

// ParsePage extracts the title, meta description, readable text and absolute
// http(s) links of an HTML document. Links are resolved against baseURL,
// stripped of fragments and deduplicated in document order. Text blocks are
// separated by blank lines.
func ParsePage(baseURL string, body []byte) (*ParsedPage, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	var (
		page   ParsedPage
		blocks []string
		inline strings.Builder
		seen   = make(map[string]bool)
	)

	flush := func() {
		if text := strings.Join(strings.Fields(inline.String()), " "); text != "" {
			blocks = append(blocks, text)
		}
		inline.Reset()
	}

	var walker func(n *html.Node, text bool)
	walker = func(n *html.Node, text bool) {
		switch n.Type {
		case html.TextNode:
			if text {
				inline.WriteString(n.Data)
				inline.WriteByte(' ')
			}
			return
		case html.ElementNode:
			switch n.Data {
			case "title":
				if page.Title == "" && n.FirstChild != nil {
					page.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				if page.Description == "" && strings.EqualFold(attr(n, "name"), "description") {
					page.Description = strings.TrimSpace(attr(n, "content"))
				}
			case "a":
				if link, ok := resolve(base, attr(n, "href")); ok && !seen[link] {
					seen[link] = true
					page.Links = append(page.Links, link)
				}
			}
			if noText[n.Data] {
				text = false
			}
		}

		isBlock := text && n.Type == html.ElementNode && block[n.Data]
		if isBlock {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walker(c, text)
		}
		if isBlock {
			flush()
		}
	}

	walker(doc, true)
	flush()

	page.Text = strings.Join(blocks, "\n\n")
	return &page, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	absolute := base.ResolveReference(ref)
	if absolute.Scheme != "http" && absolute.Scheme != "https" {
		return "", false
	}
	absolute.Fragment = ""
	absolute.RawFragment = ""
	return absolute.String(), true
}
