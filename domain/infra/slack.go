package infra

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pyama86/ticketbot/domain/model"
	"github.com/slack-go/slack"
)

type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier mirrors closure records into a Slack channel.
type SlackNotifier struct {
	client  SlackAPI
	channel string
}

// NewSlackNotifier returns nil unless SLACK_BOT_TOKEN and SLACK_NOTIFY_CHANNEL are set.
func NewSlackNotifier() *SlackNotifier {
	if os.Getenv("SLACK_BOT_TOKEN") == "" || os.Getenv("SLACK_NOTIFY_CHANNEL") == "" {
		return nil
	}
	return NewSlackNotifierWithClient(slack.New(os.Getenv("SLACK_BOT_TOKEN")), os.Getenv("SLACK_NOTIFY_CHANNEL"))
}

func NewSlackNotifierWithClient(client SlackAPI, channel string) *SlackNotifier {
	return &SlackNotifier{client: client, channel: channel}
}

func (s *SlackNotifier) NotifyClosure(ctx context.Context, record *model.ClosureRecord) error {
	header := slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Ticket #%04d closed*", record.Number), false, false)
	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*Creator*\n"+record.CreatorID, false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Closed by*\n"+record.CloserID, false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Category*\n"+orNone(strings.Join(record.CategoryPath, " > ")), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Closed at*\n"+record.ClosedAt.Format(time.RFC3339), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Reason*\n"+orNone(record.Reason), false, false),
	}
	if record.TranscriptURL != "" {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Transcript*\n<%s|open>", record.TranscriptURL), false, false))
	}
	blocks := []slack.Block{
		slack.NewSectionBlock(header, fields, nil),
	}
	if record.Summary != "" {
		blocks = append(blocks,
			slack.NewDividerBlock(),
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, record.Summary, false, false), nil, nil),
		)
	}

	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(record.String(), false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return fmt.Errorf("PostMessage failed: %w", err)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
