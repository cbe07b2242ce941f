package markitdown

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/japanese"
)

func mustConvert(t *testing.T, m *MarkItDown, data []byte, info StreamInfo) *Result {
	t.Helper()
	result, err := m.ConvertBytes(context.Background(), data, info)
	if err != nil {
		t.Fatalf("ConvertBytes(%s) error: %v", info.Filename, err)
	}
	return result
}

func assertContains(t *testing.T, md string, want ...string) {
	t.Helper()
	for _, s := range want {
		if !strings.Contains(md, s) {
			t.Errorf("expected output to contain %q\nGot:\n%s", s, md)
		}
	}
}

func assertNotContains(t *testing.T, md string, unwanted ...string) {
	t.Helper()
	for _, s := range unwanted {
		if strings.Contains(md, s) {
			t.Errorf("expected output NOT to contain %q\nGot:\n%s", s, md)
		}
	}
}

func TestConvertFormats(t *testing.T) {
	m := New()

	tests := []struct {
		name           string
		data           func(t *testing.T) []byte
		info           StreamInfo
		mustInclude    []string
		mustNotInclude []string
		title          string
	}{
		{
			name: "docx",
			data: docxFixture,
			info: StreamInfo{Extension: ".docx", Filename: "report.docx"},
			mustInclude: []string{
				"# Quarterly Report",
				"Hello World",
				"**Important**",
				"first point",
				"| Name",
				"Alice",
			},
			mustNotInclude: []string{"<w:", "<table>"},
			title:          "Q3 Report",
		},
		{
			name: "docx equations",
			data: docxMathFixture,
			info: StreamInfo{Extension: ".docx", Filename: "physics.docx"},
			mustInclude: []string{
				"Energy:$E=mc^{2}$",
				`$$\frac{a}{b}$$`,
				"After the math",
			},
			mustNotInclude: []string{"mc2", "DOCXMATH", `\_`},
		},
		{
			name: "epub",
			data: epubFixture,
			info: StreamInfo{Extension: ".epub", Filename: "guide.epub"},
			mustInclude: []string{
				"# Field Guide",
				"**Authors:** Ada Writer, Bo Editor",
				"**Language:** en",
				"# Chapter One",
				"Birds of the coast.",
				"Birds of the hills.",
			},
			mustNotInclude: []string{"margin", "<html"},
			title:          "Field Guide",
		},
		{
			name: "ipynb",
			data: func(*testing.T) []byte { return []byte(notebookJSON) },
			info: StreamInfo{Extension: ".ipynb", Filename: "nb.ipynb"},
			mustInclude: []string{
				"# Notebook Heading",
				"```python\nprint(1 + 1)\n```",
				"```\n2\n```",
				"'done'",
			},
			mustNotInclude: []string{`"cell_type"`},
			title:          "Notebook Heading",
		},
		{
			name:        "pptx",
			data:        pptxFixture,
			info:        StreamInfo{Extension: ".pptx", Filename: "deck.pptx"},
			mustInclude: []string{"<!-- Slide number: 1 -->", "# Roadmap", "Ship the beta"},
		},
		{
			name:        "xlsx",
			data:        xlsxFixture,
			info:        StreamInfo{Extension: ".xlsx", Filename: "sales.xlsx"},
			mustInclude: []string{"## Sheet1", "| Region | Revenue |", "| North | 120 |"},
		},
		{
			name: "html",
			data: func(*testing.T) []byte {
				return []byte(`<html><head><title>My Page</title><script>alert(1)</script></head>
<body><h1>Hello</h1><p onclick="steal()">Some <a href="javascript:alert(2)">text</a> here.</p></body></html>`)
			},
			info:           StreamInfo{Extension: ".html", Filename: "page.html"},
			mustInclude:    []string{"# Hello", "Some", "here."},
			mustNotInclude: []string{"alert", "javascript:", "steal", "<script"},
			title:          "My Page",
		},
		{
			name: "rss",
			data: func(*testing.T) []byte {
				return []byte(`<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Example Feed</title><description>News</description>
<item><title>First post</title><pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate><description>&lt;p&gt;Hello &lt;b&gt;feed&lt;/b&gt;&lt;/p&gt;</description></item>
</channel></rss>`)
			},
			info:           StreamInfo{Extension: ".xml", Filename: "feed.xml"},
			mustInclude:    []string{"# Example Feed", "## First post", "Published on:", "**feed**"},
			mustNotInclude: []string{"<rss", "<item>"},
			title:          "Example Feed",
		},
		{
			name: "json",
			data: func(*testing.T) []byte {
				return []byte(`{"id": "5b64c88c"}`)
			},
			info:        StreamInfo{Extension: ".json", Filename: "data.json"},
			mustInclude: []string{`"id": "5b64c88c"`},
		},
		{
			name: "pdf",
			data: func(t *testing.T) []byte {
				return pdfFixture(t, "Hello")
			},
			info:        StreamInfo{Extension: ".pdf", Filename: "hello.pdf", MIMEType: "application/pdf"},
			mustInclude: []string{"Hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := mustConvert(t, m, tt.data(t), tt.info)
			assertContains(t, result.Markdown, tt.mustInclude...)
			assertNotContains(t, result.Markdown, tt.mustNotInclude...)
			if tt.title != "" && result.Title != tt.title {
				t.Errorf("Title = %q, want %q", result.Title, tt.title)
			}
		})
	}
}

func TestConvertCSV(t *testing.T) {
	m := New()

	t.Run("utf8", func(t *testing.T) {
		result := mustConvert(t, m, []byte("name,score\nAlice,42\nBob,7\n"), StreamInfo{Extension: ".csv"})
		want := "| name | score |\n| --- | --- |\n| Alice | 42 |\n| Bob | 7 |"
		if result.Markdown != want {
			t.Errorf("Markdown = %q, want %q", result.Markdown, want)
		}
	})

	t.Run("ragged rows and pipes", func(t *testing.T) {
		result := mustConvert(t, m, []byte("a,b,c\n1\nx|y,2,3\n"), StreamInfo{Extension: ".csv"})
		assertContains(t, result.Markdown, "| 1 |  |  |", `x\|y`)
	})

	t.Run("shift_jis with charset hint", func(t *testing.T) {
		sjis, err := japanese.ShiftJIS.NewEncoder().String("名前,住所\n佐藤太郎,東京\n")
		if err != nil {
			t.Fatal(err)
		}
		result := mustConvert(t, m, []byte(sjis), StreamInfo{Extension: ".csv", MIMEType: "text/csv", Charset: "cp932"})
		assertContains(t, result.Markdown, "名前", "佐藤太郎", "東京")
	})
}

func TestConvertZip(t *testing.T) {
	m := New()

	archive := zipFiles(t,
		[2]string{"docs/report.docx", string(docxFixture(t))},
		[2]string{"notes.txt", "plain notes"},
		[2]string{"tool.exe", "\x00\x01\x02\x03"},
	)
	result := mustConvert(t, m, archive, StreamInfo{Extension: ".zip", Filename: "bundle.zip"})

	assertContains(t, result.Markdown,
		"Content from the zip file `bundle.zip`:",
		"## File: docs/report.docx",
		"Hello World",
		"## File: notes.txt",
		"plain notes",
	)
	assertNotContains(t, result.Markdown, "tool.exe")
}

func TestConvertZipNotebookAndBook(t *testing.T) {
	archive := zipFiles(t,
		[2]string{"nb.ipynb", notebookJSON},
		[2]string{"books/guide.epub", string(epubFixture(t))},
	)
	result := mustConvert(t, New(), archive, StreamInfo{Extension: ".zip", Filename: "mixed.zip"})

	assertContains(t, result.Markdown,
		"## File: nb.ipynb",
		"# Notebook Heading",
		"```python",
		"## File: books/guide.epub",
		"# Field Guide",
		"Birds of the hills.",
	)
	assertNotContains(t, result.Markdown, `"cell_type"`, "nbformat")
}

func TestConvertZipDepthLimit(t *testing.T) {
	m := New()

	inner := zipFiles(t, [2]string{"secret.txt", "deep secret"})
	for i := 0; i < maxZipDepth; i++ {
		inner = zipFiles(t, [2]string{"nested.zip", string(inner)})
	}
	result := mustConvert(t, m, inner, StreamInfo{Extension: ".zip", Filename: "outer.zip"})

	assertContains(t, result.Markdown, "## File: nested.zip")
	assertNotContains(t, result.Markdown, "deep secret")
}

// zeroZip packs one entry of size zero bytes; it deflates to almost nothing.
func zeroZip(t *testing.T, name string, size int) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	chunk := make([]byte, 1<<20)
	for written := 0; written < size; written += len(chunk) {
		if _, err := w.Write(chunk[:min(len(chunk), size-written)]); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func assertExpansionLimit(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected the conversion to fail")
	}
	if !IsConversionError(err) {
		t.Errorf("expected ConversionError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrExpansionLimit) {
		t.Errorf("expected ErrExpansionLimit, got %v", err)
	}
}

func TestConvertZipEntryTooLarge(t *testing.T) {
	data := zeroZip(t, "big.txt", 64<<20)
	if len(data) > 1<<20 {
		t.Fatalf("fixture should compress well, got %d bytes", len(data))
	}

	_, err := New().ConvertBytes(context.Background(), data, StreamInfo{Extension: ".zip", Filename: "bomb.zip"})
	assertExpansionLimit(t, err)
}

func TestConvertArchiveBudget(t *testing.T) {
	m := New(WithArchiveLimits(4<<10, 8<<10))
	chunk := strings.Repeat("x", 3<<10)

	tests := []struct {
		name string
		ext  string
		data func(t *testing.T) []byte
	}{
		{"entry over limit", ".zip", func(t *testing.T) []byte {
			return zipFiles(t, [2]string{"big.txt", strings.Repeat("y", 5<<10)})
		}},
		{"members over total", ".zip", func(t *testing.T) []byte {
			return zipFiles(t, [2]string{"a.txt", chunk}, [2]string{"b.txt", chunk}, [2]string{"c.txt", chunk})
		}},
		{"nested archive shares the budget", ".zip", func(t *testing.T) []byte {
			inner := zipFiles(t, [2]string{"a.txt", chunk}, [2]string{"b.txt", chunk})
			return zipFiles(t, [2]string{"c.txt", chunk}, [2]string{"inner.zip", string(inner)})
		}},
		{"docx part over limit", ".docx", func(t *testing.T) []byte {
			return zipFiles(t, [2]string{"word/document.xml", docxBody + "<!--" + strings.Repeat("z", 5<<10) + "-->"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := StreamInfo{Extension: tt.ext, MIMEType: MIMEFromExtension(tt.ext), Filename: "input" + tt.ext}
			_, err := m.ConvertBytes(context.Background(), tt.data(t), info)
			assertExpansionLimit(t, err)
		})
	}

	small := zipFiles(t, [2]string{"a.txt", "within limits"})
	result := mustConvert(t, m, small, StreamInfo{Extension: ".zip", Filename: "ok.zip"})
	assertContains(t, result.Markdown, "within limits")
}

func TestConvertCorrupted(t *testing.T) {
	m := New()

	for _, ext := range []string{".pdf", ".docx", ".pptx", ".xlsx", ".zip"} {
		t.Run(ext, func(t *testing.T) {
			info := StreamInfo{Extension: ext, MIMEType: MIMEFromExtension(ext), Filename: "broken" + ext}
			_, err := m.ConvertBytes(context.Background(), []byte("this is not a real document"), info)
			if err == nil {
				t.Fatal("expected an error for corrupted input")
			}
			if !IsConversionError(err) {
				t.Errorf("expected ConversionError, got %T: %v", err, err)
			}
		})
	}
}

func TestConvertUnsupported(t *testing.T) {
	m := New()

	_, err := m.ConvertBytes(context.Background(), []byte{0x7f, 'E', 'L', 'F', 0, 0, 0, 0},
		StreamInfo{Extension: ".bin", MIMEType: "application/octet-stream"})
	if !IsUnsupportedFormat(err) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) || ufe.Extension != ".bin" {
		t.Errorf("unexpected error details: %+v", ufe)
	}
}

func TestConvertCanceledContext(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.ConvertBytes(ctx, []byte("hello"), StreamInfo{Extension: ".txt", MIMEType: "text/plain"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConvertIsDeterministic(t *testing.T) {
	m := New()
	data := docxFixture(t)
	first := mustConvert(t, m, data, StreamInfo{Extension: ".docx"})
	second := mustConvert(t, m, data, StreamInfo{Extension: ".docx"})
	if first.Markdown != second.Markdown {
		t.Errorf("repeated conversions differ:\n%s\n---\n%s", first.Markdown, second.Markdown)
	}
}

func TestDataURIs(t *testing.T) {
	payload := strings.Repeat("AAAA", 32)
	page := []byte(`<html><body><p><img alt="dot" src="data:image/png;base64,` + payload + `"></p></body></html>`)
	info := StreamInfo{Extension: ".html", MIMEType: "text/html"}

	truncated := mustConvert(t, New(), page, info)
	assertContains(t, truncated.Markdown, "data:image/png;base64,...")
	assertNotContains(t, truncated.Markdown, payload)

	kept := mustConvert(t, New(WithKeepDataURIs(true)), page, info)
	assertContains(t, kept.Markdown, payload)
}

func TestConvertFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := New().ConvertFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ConvertFile error: %v", err)
	}
	assertContains(t, result.Markdown, "| a | b |", "| 1 | 2 |")

	if _, err := New().ConvertFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestConvertURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<html><head><title>Remote</title></head><body><h2>Fetched</h2></body></html>")
	}))
	defer srv.Close()

	result, err := New(WithHTTPClient(srv.Client())).ConvertURL(context.Background(), srv.URL+"/page.html")
	if err != nil {
		t.Fatalf("ConvertURL error: %v", err)
	}
	assertContains(t, result.Markdown, "## Fetched")
	if result.Title != "Remote" {
		t.Errorf("Title = %q, want %q", result.Title, "Remote")
	}
}

type stubConverter struct {
	ext    string
	output string
	panics bool
}

func (s *stubConverter) Accepts(info StreamInfo) bool {
	return info.hasExtension(s.ext)
}

func (s *stubConverter) Convert(ctx context.Context, reader io.ReadSeeker, info StreamInfo) (*Result, error) {
	if s.panics {
		panic("format library blew up")
	}
	return &Result{Markdown: s.output}, nil
}

func TestRegisterConverterPriority(t *testing.T) {
	m := New()
	m.RegisterConverter("override", &stubConverter{ext: ".txt", output: "from override"}, PrioritySpecific-1)

	result := mustConvert(t, m, []byte("original text"), StreamInfo{Extension: ".txt"})
	if result.Markdown != "from override" {
		t.Errorf("Markdown = %q, want override output", result.Markdown)
	}
}

func TestConverterPanicFallsThrough(t *testing.T) {
	m := New()
	m.RegisterConverter("explosive", &stubConverter{ext: ".txt", panics: true}, PrioritySpecific-1)

	result := mustConvert(t, m, []byte("still readable"), StreamInfo{Extension: ".txt"})
	if result.Markdown != "still readable" {
		t.Errorf("Markdown = %q, want plain text fallback", result.Markdown)
	}

	m = New()
	m.RegisterConverter("explosive", &stubConverter{ext: ".weird", panics: true}, PrioritySpecific)
	_, err := m.ConvertBytes(context.Background(), []byte("x"), StreamInfo{Extension: ".weird", MIMEType: "application/x-weird"})
	var ce *ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if len(ce.Attempts) != 1 || ce.Attempts[0].Converter != "explosive" {
		t.Errorf("unexpected attempts: %+v", ce.Attempts)
	}
}

func TestNormalization(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trailing whitespace", "hello   \nworld\t\n", "hello\nworld"},
		{"blank runs", "hello\n\n\n\n\nworld", "hello\n\nworld"},
		{"crlf", "hello\r\nworld\r\n", "hello\nworld"},
		{"bare cr", "a\rb", "a\nb"},
		{"control characters", "hello\x00world\x01test", "helloworldtest"},
		{"tabs kept", "a\tb", "a\tb"},
		{"invalid utf8", "ok\xff\xfe", "ok"},
		{"surrounding space", "\n\n  body  \n\n", "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeOutput(tt.input)
			if got != tt.want {
				t.Errorf("normalizeOutput(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := normalizeOutput(got); again != got {
				t.Errorf("normalizeOutput is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestConverterAccepts(t *testing.T) {
	tests := []struct {
		name      string
		converter DocumentConverter
		info      StreamInfo
		want      bool
	}{
		{"pdf by ext", NewPdfConverter(), StreamInfo{Extension: ".PDF"}, true},
		{"pdf by mime", NewPdfConverter(), StreamInfo{MIMEType: "application/pdf"}, true},
		{"pdf wrong ext", NewPdfConverter(), StreamInfo{Extension: ".txt"}, false},
		{"csv by ext", NewCsvConverter(), StreamInfo{Extension: ".csv"}, true},
		{"csv by mime", NewCsvConverter(), StreamInfo{MIMEType: "text/csv"}, true},
		{"html by ext", NewHTMLConverter(nil), StreamInfo{Extension: ".htm"}, true},
		{"html by mime", NewHTMLConverter(nil), StreamInfo{MIMEType: "text/html; charset=utf-8"}, true},
		{"plaintext txt", NewPlainTextConverter(), StreamInfo{Extension: ".txt"}, true},
		{"plaintext json", NewPlainTextConverter(), StreamInfo{Extension: ".json"}, true},
		{"plaintext pdf", NewPlainTextConverter(), StreamInfo{Extension: ".pdf", MIMEType: "application/pdf"}, false},
		{"rss by ext", NewRSSConverter(nil), StreamInfo{Extension: ".rss"}, true},
		{"rss xml", NewRSSConverter(nil), StreamInfo{Extension: ".xml"}, true},
		{"docx by ext", NewDocxConverter(nil), StreamInfo{Extension: ".docx"}, true},
		{"docx not pptx", NewDocxConverter(nil), StreamInfo{Extension: ".pptx"}, false},
		{"pptx by ext", NewPptxConverter(nil), StreamInfo{Extension: ".pptx"}, true},
		{"xlsx by ext", NewXlsxConverter(), StreamInfo{Extension: ".xlsx"}, true},
		{"xls by ext", NewXlsConverter(), StreamInfo{Extension: ".xls"}, true},
		{"zip by ext", NewZipConverter(nil), StreamInfo{Extension: ".zip"}, true},
		{"zip not docx", NewZipConverter(nil), StreamInfo{Extension: ".docx", MIMEType: MIMEFromExtension(".docx")}, false},
		{"zip not epub", NewZipConverter(nil), StreamInfo{Extension: ".epub", MIMEType: "application/epub+zip"}, false},
		{"epub by ext", NewEpubConverter(nil), StreamInfo{Extension: ".EPUB"}, true},
		{"epub by mime", NewEpubConverter(nil), StreamInfo{MIMEType: "application/epub+zip"}, true},
		{"ipynb by ext", NewIpynbConverter(), StreamInfo{Extension: ".ipynb"}, true},
		{"ipynb not json", NewIpynbConverter(), StreamInfo{Extension: ".json", MIMEType: "application/json"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.converter.Accepts(tt.info); got != tt.want {
				t.Errorf("Accepts() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMIMEFromExtension(t *testing.T) {
	if got := MIMEFromExtension(".DOCX"); !strings.Contains(got, "wordprocessingml") {
		t.Errorf("MIMEFromExtension(.DOCX) = %q", got)
	}
	if got := MIMEFromExtension(".nope"); got != "application/octet-stream" {
		t.Errorf("MIMEFromExtension(.nope) = %q", got)
	}
}
