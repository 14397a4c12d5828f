package transcriptserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pyama86/ticketbot/domain/infra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "transcripts")
	s, err := NewServer(dir, Site{Title: "Ticket Transcript", Description: "Support conversation", Image: "https://example.com/icon.png"})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts, dir
}

func multipartBody(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("file", "transcript.html")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestServer_Status(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), "running")
}

func TestServer_UploadAndServe(t *testing.T) {
	ts, dir := newTestServer(t)

	body, ct := multipartBody(t, map[string]string{"channel_id": "123/../456"}, []byte(`<p class="x">hello & bye</p>`))
	resp, err := http.Post(ts.URL+"/upload", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, strings.HasPrefix(got["url"], "/transcripts/ticket-123456_"))
	assert.True(t, strings.HasSuffix(got["url"], ".html"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	page, err := http.Get(ts.URL + got["url"])
	require.NoError(t, err)
	defer page.Body.Close()
	b, _ := io.ReadAll(page.Body)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(b), `<meta property="og:title" content="Ticket Transcript" />`)
	assert.Contains(t, string(b), "https://example.com/icon.png")
	assert.Contains(t, string(b), "&lt;p class=&#34;x&#34;&gt;hello &amp; bye&lt;/p&gt;")
	assert.NotContains(t, string(b), `<p class="x">`)
}

func TestServer_UploadValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name   string
		fields map[string]string
		file   []byte
	}{
		{name: "no channel", fields: map[string]string{}, file: []byte("x")},
		{name: "no file", fields: map[string]string{"channel_id": "123"}},
		{name: "channel sanitized to empty", fields: map[string]string{"channel_id": "../"}, file: []byte("x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.fields, tt.file)
			resp, err := http.Post(ts.URL+"/upload", ct, body)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp, err := http.Post(ts.URL+"/upload", "text/plain", strings.NewReader("nope"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_TranscriptNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, name := range []string{"missing.html", "..%2Fsecret", ".upload-1"} {
		resp, err := http.Get(ts.URL + "/transcripts/" + name)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, name)
	}
}

func TestServer_WithUploader(t *testing.T) {
	ts, _ := newTestServer(t)

	u := infra.NewTranscriptUploaderWithURL(ts.URL+"/upload", "")
	url, err := u.Upload(context.Background(), "chan1", "ticket-0001.html", []byte("<p>hi</p>"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, ts.URL+"/transcripts/ticket-chan1_"))

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
