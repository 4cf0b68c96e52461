// Package webfetch implements the URL fetch port: it downloads a page and
// renders it as markdown, keeping links.
package webfetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Strob0t/Exec/internal/port/tool"
)

const (
	userAgent    = "Exec/1.0 (+web fetch)"
	blockElems   = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td, th"
	noiseElems   = "script, style, noscript, iframe, svg, template"
	defaultLimit = 2 << 20
)

// Fetcher downloads pages over HTTP.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

var _ tool.Fetcher = (*Fetcher)(nil)

// New creates a Fetcher. maxBytes caps how much of a body is read.
func New(timeout time.Duration, maxBytes int64) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = defaultLimit
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
	}
}

// Fetch returns the page at rawURL as markdown. Non-HTML text bodies are
// returned unchanged.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("fetch %q: not an http(s) url", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: HTTP %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", u, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "" && mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		return string(body), nil
	}
	return Markdown(strings.NewReader(string(body)), resp.Request.URL)
}

// Markdown renders an HTML document as markdown in document order. Links are
// kept and resolved against base.
func Markdown(r io.Reader, base *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(noiseElems).Remove()

	var out strings.Builder
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		out.WriteString("# " + title + "\n\n")
	}

	blocks := 0
	doc.Find("body").Find(blockElems).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(blockElems).Length() > 0 {
			return
		}
		text := collapse(inline(s.Nodes[0], base))
		if text == "" {
			return
		}
		blocks++
		switch tag := goquery.NodeName(s); tag {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			out.WriteString(strings.Repeat("#", int(tag[1]-'0')) + " " + text + "\n\n")
		case "li":
			out.WriteString("* " + text + "\n")
		case "blockquote":
			out.WriteString("> " + text + "\n\n")
		case "pre":
			out.WriteString("```\n" + strings.TrimSpace(s.Text()) + "\n```\n\n")
		default:
			out.WriteString(text + "\n\n")
		}
	})

	if blocks == 0 {
		if text := collapse(inline(bodyNode(doc), base)); text != "" {
			out.WriteString(text + "\n")
		}
	}
	return strings.TrimSpace(out.String()) + "\n", nil
}

func bodyNode(doc *goquery.Document) *html.Node {
	if body := doc.Find("body"); body.Length() > 0 {
		return body.Nodes[0]
	}
	return doc.Nodes[0]
}

// inline renders n's subtree as one line, turning anchors into [text](href).
func inline(n *html.Node, base *url.URL) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "br":
				b.WriteString(" ")
				return
			case "img":
				if alt := attr(n, "alt"); alt != "" {
					b.WriteString(alt)
				}
				return
			case "a":
				var inner strings.Builder
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					inner.WriteString(inline(c, base))
				}
				text := collapse(inner.String())
				href := resolve(base, attr(n, "href"))
				switch {
				case href == "":
					b.WriteString(text)
				case text == "":
					b.WriteString("<" + href + ">")
				default:
					b.WriteString("[" + text + "](" + href + ")")
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
