package webfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

const page = `<!doctype html>
<html><head><title>Body Shops</title><style>p{}</style></head>
<body>
<nav><a href="/">Home</a></nav>
<h1>Top shops</h1>
<p>Try <a href="/shops/joe">Joe's Auto</a> for
   small dents.</p>
<ul><li><a href="https://example.org/x">X Body</a></li><li>Call ahead</li></ul>
<script>alert(1)</script>
<p><a href="#top">back</a></p>
</body></html>`

func TestMarkdown(t *testing.T) {
	base, _ := url.Parse("https://shops.example/list")
	got, err := Markdown(strings.NewReader(page), base)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"# Body Shops\n",
		"# Top shops\n",
		"Try [Joe's Auto](https://shops.example/shops/joe) for small dents.\n",
		"* [X Body](https://example.org/x)\n",
		"* Call ahead\n",
	}
	last := -1
	for _, w := range want {
		i := strings.Index(got, w)
		if i < 0 {
			t.Fatalf("missing %q in:\n%s", w, got)
		}
		if i < last {
			t.Errorf("%q out of document order", w)
		}
		last = i
	}
	if strings.Contains(got, "alert") {
		t.Error("script content leaked")
	}
	if strings.Contains(got, "(#top)") {
		t.Error("fragment-only links should be dropped")
	}
}

func TestMarkdownPlainBody(t *testing.T) {
	got, err := Markdown(strings.NewReader(`<html><body>just <a href="http://a.example">text</a></body></html>`), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "just [text](http://a.example)\n" {
		t.Errorf("got %q", got)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(page))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("raw text"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := New(5*time.Second, 0)

	got, err := f.Fetch(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(got, "[Joe's Auto]("+srv.URL+"/shops/joe)") {
		t.Errorf("relative link not resolved:\n%s", got)
	}

	got, err = f.Fetch(context.Background(), srv.URL+"/plain")
	if err != nil || got != "raw text" {
		t.Errorf("plain = %q, %v", got, err)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestFetchRejectsNonHTTP(t *testing.T) {
	f := New(time.Second, 0)
	for _, u := range []string{"file:///etc/passwd", "not a url", "ftp://x.example/"} {
		if _, err := f.Fetch(context.Background(), u); err == nil {
			t.Errorf("Fetch(%q) should fail", u)
		}
	}
}

func TestFetchTruncatesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer srv.Close()

	got, err := New(time.Second, 10).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Errorf("expected 10 bytes, got %d", len(got))
	}
}
