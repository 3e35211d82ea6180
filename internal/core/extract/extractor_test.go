package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Syntra/internal/core"
	applog "github.com/markdave123-py/Syntra/internal/log"
)

func TestExtractTextPassthrough(t *testing.T) {
	e := NewExtractor(applog.NewNop())

	got, err := e.Extract(context.Background(), TextInput{Text: "hello\r\n\r\n  world  \r\n"})
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", got)
}

func TestExtractEmptyTextFails(t *testing.T) {
	e := NewExtractor(applog.NewNop())

	_, err := e.Extract(context.Background(), TextInput{Text: "   \n\t  "})
	require.Error(t, err)

	var exErr *core.ExtractionError
	assert.ErrorAs(t, err, &exErr)
}

func TestExtractEmptyFileFails(t *testing.T) {
	e := NewExtractor(applog.NewNop())

	_, err := e.Extract(context.Background(), FileInput{Data: nil, ContentType: "application/pdf"})
	require.Error(t, err)

	var exErr *core.ExtractionError
	assert.ErrorAs(t, err, &exErr)
}

func TestExtractPlainTextFile(t *testing.T) {
	e := NewExtractor(applog.NewNop())

	got, err := e.Extract(context.Background(), FileInput{
		Data:        []byte("line one\r\nline two\r\n"),
		ContentType: "text/plain",
	})
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got)
}

func TestExtractURLReducesToMainContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<!doctype html>
<html>
<head><title>Page</title><script>var tracked = true;</script></head>
<body>
  <nav><ul><li>Home</li><li>About</li></ul></nav>
  <main>
    <h1>The Heading</h1>
    <p>First paragraph of real content.</p>
    <p>Second paragraph.</p>
  </main>
  <footer><p>Copyright notice</p></footer>
</body>
</html>`))
	}))
	defer srv.Close()

	e := NewExtractor(applog.NewNop())
	got, err := e.Extract(context.Background(), URLInput{URL: srv.URL})
	require.NoError(t, err)

	assert.Contains(t, got, "The Heading")
	assert.Contains(t, got, "First paragraph of real content.")
	assert.Contains(t, got, "Second paragraph.")
	assert.NotContains(t, got, "tracked")
	assert.NotContains(t, got, "Home")
	assert.NotContains(t, got, "Copyright notice")
}

func TestExtractURLNon200Fails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	e := NewExtractor(applog.NewNop())
	_, err := e.Extract(context.Background(), URLInput{URL: srv.URL})
	require.Error(t, err)

	var exErr *core.ExtractionError
	assert.ErrorAs(t, err, &exErr)
}

func TestExtractURLNonTextContentFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0x00, 0x01})
	}))
	defer srv.Close()

	e := NewExtractor(applog.NewNop())
	_, err := e.Extract(context.Background(), URLInput{URL: srv.URL})
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	in := "a\r\nb\r\rc\n\n   \nd"
	assert.Equal(t, "a\nb\nc\nd", Normalize(in))
}
