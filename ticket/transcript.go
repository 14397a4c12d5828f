package ticket

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/pyama86/ticketbot/config"
	"github.com/pyama86/ticketbot/domain/infra"
	"github.com/pyama86/ticketbot/domain/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

type Uploader interface {
	Upload(ctx context.Context, channelID, name string, data []byte) (string, error)
}

type Summarizer interface {
	GenerateSummary(ctx context.Context, record *model.ClosureRecord, lines []model.TranscriptLine) (string, error)
}

// ClosureNotifier receives closure records outside of Discord.
type ClosureNotifier interface {
	NotifyClosure(ctx context.Context, record *model.ClosureRecord) error
}

// Document is a rendered transcript.
type Document struct {
	Name  string
	HTML  []byte
	Lines []model.TranscriptLine
}

// Pipeline renders, publishes and announces transcripts. Uploader,
// Summarizer and Mirror are optional.
type Pipeline struct {
	gw         infra.Gateway
	Uploader   Uploader
	Summarizer Summarizer
	Mirror     ClosureNotifier
	md         goldmark.Markdown
}

func NewPipeline(gw infra.Gateway) *Pipeline {
	return &Pipeline{
		gw: gw,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

const colorClosed = 0xe74c3c

var transcriptTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:sans-serif;background:#313338;color:#dbdee1;margin:0;padding:24px}
h1{font-size:20px;margin:0 0 4px}
.meta{color:#949ba4;font-size:13px;margin-bottom:24px}
.msg{display:flex;gap:12px;padding:6px 0;border-top:1px solid #3f4147}
.author{font-weight:bold;min-width:160px}
.bot{color:#5865f2}
.time{color:#949ba4;font-size:12px;display:block;font-weight:normal}
.content p{margin:0 0 6px}
.content pre{background:#2b2d31;padding:8px;overflow-x:auto}
a{color:#00a8fc}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">Opened by {{.Creator}} at {{.OpenedAt}}{{if .Category}} &middot; {{.Category}}{{end}} &middot; {{len .Lines}} messages</div>
{{range .Lines}}<div class="msg" id="m{{.ID}}">
<div class="author{{if .Bot}} bot{{end}}">{{.User}}<span class="time">{{.Time}}</span></div>
<div class="content">{{.HTML}}{{range .Attachments}}<p><a href="{{.}}">{{.}}</a></p>{{end}}</div>
</div>
{{end}}</body>
</html>
`))

type renderedLine struct {
	ID          string
	User        string
	Bot         bool
	Time        string
	HTML        template.HTML
	Attachments []string
}

// Render fetches the full channel history and renders one self-contained
// HTML document. Every failure is reported as ErrRenderFailure.
func (p *Pipeline) Render(ctx context.Context, t *model.Ticket) (*Document, error) {
	lines, err := p.gw.FetchHistory(ctx, t.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}

	data := struct {
		Title    string
		Creator  string
		OpenedAt string
		Category string
		Lines    []renderedLine
	}{
		Title:    fmt.Sprintf("Ticket #%04d", t.Number),
		Creator:  t.CreatorID,
		OpenedAt: t.CreatedAt.UTC().Format(time.RFC1123),
		Category: strings.Join(t.CategoryPath, " > "),
	}
	for _, l := range lines {
		if l.AuthorID == t.CreatorID && l.User != "" {
			data.Creator = l.User
			break
		}
	}
	for _, l := range lines {
		name := l.User
		if name == "" {
			name = l.AuthorID
		}
		var buf bytes.Buffer
		if err := p.md.Convert([]byte(l.Text), &buf); err != nil {
			return nil, fmt.Errorf("%w: markdown: %v", ErrRenderFailure, err)
		}
		data.Lines = append(data.Lines, renderedLine{
			ID:          l.MessageID,
			User:        name,
			Bot:         l.Bot,
			Time:        l.TimeStamp.UTC().Format("2006-01-02 15:04:05"),
			HTML:        template.HTML(buf.String()),
			Attachments: l.Attachments,
		})
	}

	var out bytes.Buffer
	if err := transcriptTemplate.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("%w: template: %v", ErrRenderFailure, err)
	}
	return &Document{
		Name:  fmt.Sprintf("%s.html", t.ChannelName()),
		HTML:  out.Bytes(),
		Lines: lines,
	}, nil
}

// Publish returns the hosted URL, or "" when the document has to be
// attached instead.
func (p *Pipeline) Publish(ctx context.Context, t *model.Ticket, doc *Document) string {
	if p.Uploader == nil || doc == nil {
		return ""
	}
	url, err := p.Uploader.Upload(ctx, t.ChannelID, doc.Name, doc.HTML)
	if err != nil {
		slog.Warn("transcript upload failed, attaching instead", slog.Any("err", err), slog.String("channel", t.ChannelID))
		return ""
	}
	return url
}

func (p *Pipeline) summarize(ctx context.Context, record *model.ClosureRecord, doc *Document) {
	if p.Summarizer == nil || doc == nil || len(doc.Lines) == 0 {
		return
	}
	summary, err := p.Summarizer.GenerateSummary(ctx, record, doc.Lines)
	if err != nil {
		slog.Warn("GenerateSummary failed", slog.Any("err", err), slog.String("channel", record.ChannelID))
		return
	}
	record.Summary = summary
}

// Run is the close-time pipeline. Nothing here can fail the close.
func (p *Pipeline) Run(ctx context.Context, cfg *config.Tickets, t *model.Ticket, record *model.ClosureRecord) {
	doc, err := p.Render(ctx, t)
	if err != nil {
		slog.Error("transcript render failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
	}
	record.TranscriptURL = p.Publish(ctx, t, doc)
	p.summarize(ctx, record, doc)
	p.Notify(ctx, cfg, record, doc)
}

// Notify sends the closure record to every configured target. Targets are
// independent; a failure is logged and the next target is tried.
func (p *Pipeline) Notify(ctx context.Context, cfg *config.Tickets, record *model.ClosureRecord, doc *Document) {
	build := func() *infra.Message {
		msg := &infra.Message{Embeds: []infra.Embed{closureEmbed(record, doc != nil)}}
		if record.TranscriptURL == "" && doc != nil {
			msg.Files = []infra.File{{Name: doc.Name, ContentType: "text/html", Data: doc.HTML}}
		}
		return msg
	}

	if cfg.LogChannelID != "" {
		if _, err := p.gw.SendMessage(ctx, cfg.LogChannelID, build()); err != nil {
			slog.Error("closure log failed", slog.Any("err", err), slog.String("channel", record.ChannelID))
		}
	}
	if cfg.DMCreator && record.CreatorID != "" {
		if err := p.gw.SendDirectMessage(ctx, record.CreatorID, build()); err != nil {
			slog.Warn("closure DM to creator failed", slog.Any("err", err), slog.String("user", record.CreatorID))
		}
	}
	if cfg.DMCloser && record.CloserID != "" && record.CloserID != record.CreatorID {
		if err := p.gw.SendDirectMessage(ctx, record.CloserID, build()); err != nil {
			slog.Warn("closure DM to closer failed", slog.Any("err", err), slog.String("user", record.CloserID))
		}
	}
	if p.Mirror != nil {
		if err := p.Mirror.NotifyClosure(ctx, record); err != nil {
			slog.Warn("closure mirror failed", slog.Any("err", err), slog.String("channel", record.ChannelID))
		}
	}
}

func closureEmbed(r *model.ClosureRecord, attached bool) infra.Embed {
	closer := "System"
	if r.CloserID != "" {
		closer = fmt.Sprintf("<@%s>", r.CloserID)
	}
	reason := r.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	transcript := "Unavailable"
	if attached {
		transcript = "Attached"
	}
	if r.TranscriptURL != "" {
		transcript = fmt.Sprintf("[View transcript](%s)", r.TranscriptURL)
	}
	category := strings.Join(r.CategoryPath, " > ")
	if category == "" {
		category = "None"
	}
	return infra.Embed{
		Title:       fmt.Sprintf("Ticket #%04d closed", r.Number),
		Description: r.Summary,
		URL:         r.TranscriptURL,
		Color:       colorClosed,
		Fields: []infra.Field{
			{Name: "Ticket", Value: fmt.Sprintf("#%04d", r.Number), Inline: true},
			{Name: "Creator", Value: fmt.Sprintf("<@%s>", r.CreatorID), Inline: true},
			{Name: "Closed by", Value: closer, Inline: true},
			{Name: "Opened", Value: fmt.Sprintf("<t:%d:f>", r.OpenedAt.Unix()), Inline: true},
			{Name: "Closed", Value: fmt.Sprintf("<t:%d:f>", r.ClosedAt.Unix()), Inline: true},
			{Name: "Category", Value: category, Inline: true},
			{Name: "Reason", Value: reason},
			{Name: "Transcript", Value: transcript},
		},
	}
}
