package infra

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

// TranscriptUploader posts rendered transcripts to the transcript server.
type TranscriptUploader struct {
	endpoint  string
	publicURL string
	client    *http.Client
}

// NewTranscriptUploader returns nil when TRANSCRIPT_UPLOAD_URL is unset.
func NewTranscriptUploader() *TranscriptUploader {
	if os.Getenv("TRANSCRIPT_UPLOAD_URL") == "" {
		return nil
	}
	return NewTranscriptUploaderWithURL(os.Getenv("TRANSCRIPT_UPLOAD_URL"), os.Getenv("TRANSCRIPT_PUBLIC_URL"))
}

func NewTranscriptUploaderWithURL(endpoint, publicURL string) *TranscriptUploader {
	return &TranscriptUploader{
		endpoint:  endpoint,
		publicURL: publicURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload sends the document as multipart form (file, channel_id) and returns
// the hosted URL from the {"url": ...} response.
func (u *TranscriptUploader) Upload(ctx context.Context, channelID, name string, data []byte) (string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.WriteField("channel_id", channelID); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read upload response failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("upload failed: status=%d", resp.StatusCode)
	}
	if !gjson.ValidBytes(b) {
		return "", fmt.Errorf("upload response is not json")
	}
	raw := gjson.GetBytes(b, "url").String()
	if raw == "" {
		return "", fmt.Errorf("upload response has no url")
	}
	return u.resolve(raw)
}

func (u *TranscriptUploader) resolve(raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid transcript url %q: %w", raw, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base := u.publicURL
	if base == "" {
		base = u.endpoint
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	return b.ResolveReference(ref).String(), nil
}
