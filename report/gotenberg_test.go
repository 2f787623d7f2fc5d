package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTMLPostsIndexFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("files")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "index.html", header.Filename)
		content, _ := io.ReadAll(file)
		assert.Contains(t, string(content), "INV-001")
		assert.Equal(t, "8.27", r.FormValue("paperWidth"))
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	pdf, err := NewClient(srv.URL+"/").RenderHTML(context.Background(), []byte("<html>INV-001</html>"), A4)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))
}

func TestRenderHTMLReportsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RenderHTML(context.Background(), []byte("<html></html>"), A4)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, NewClient(srv.URL).Ping(context.Background()), ErrUnavailable)
}
