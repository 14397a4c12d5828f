package transcriptserver

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const maxUploadSize = 32 << 20

var (
	unsafeChannel = regexp.MustCompile(`[^\w-]`)
	unsafeName    = regexp.MustCompile(`[^\w\-.]`)
)

// Site is the metadata shown when a transcript link is previewed.
type Site struct {
	Title       string
	Description string
	Image       string
}

type Server struct {
	dir  string
	site Site
}

func NewServer(dir string, site Site) (*Server, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir failed: %w", err)
	}
	return &Server{dir: dir, site: site}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.status)
	r.Post("/upload", s.upload)
	r.Get("/transcripts/{name}", s.transcript)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "📎 Transcript upload server running.")
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	channelID := unsafeChannel.ReplaceAllString(r.FormValue("channel_id"), "")
	file, _, err := r.FormFile("file")
	if err != nil || channelID == "" {
		slog.Warn("missing file or channel_id in upload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing file or channel_id"})
		return
	}
	defer file.Close()

	name := fmt.Sprintf("ticket-%s_%s.html", channelID, uuid.NewString())
	if err := s.store(name, file); err != nil {
		slog.Error("store transcript failed", slog.Any("err", err), slog.String("channel", channelID))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to store transcript"})
		return
	}
	slog.Info("transcript uploaded", slog.String("name", name))
	writeJSON(w, http.StatusOK, map[string]string{"url": "/transcripts/" + name})
}

func (s *Server) store(name string, src io.Reader) error {
	f, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), filepath.Join(s.dir, name))
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <meta property="og:title" content="{{.Site.Title}}" />
    <meta property="og:description" content="{{.Site.Description}}" />
    {{- if .Site.Image}}
    <meta property="og:image" content="{{.Site.Image}}" />
    {{- end}}
    <meta name="twitter:card" content="summary_large_image" />
    <title>{{.Site.Title}}</title>
    <style>body, html { margin:0; padding:0; height:100%; }</style>
  </head>
  <body>
    <iframe srcdoc="{{.Document}}" style="width:100%; height:100%; border:none;"></iframe>
  </body>
</html>
`))

func (s *Server) transcript(w http.ResponseWriter, r *http.Request) {
	name := unsafeName.ReplaceAllString(chi.URLParam(r, "name"), "")
	if name == "" || name[0] == '.' {
		http.Error(w, "Transcript not found.", http.StatusNotFound)
		return
	}
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		http.Error(w, "Transcript not found.", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, struct {
		Site     Site
		Document string
	}{s.site, string(b)}); err != nil {
		slog.Error("render transcript page failed", slog.Any("err", err), slog.String("name", name))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", slog.Any("err", err))
	}
}
