package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pyama86/ticketbot/domain/model"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath            = "./config/tickets.yml"
	DefaultSelectTimeout   = 10 * time.Minute
	DefaultQuestionTimeout = 30 * time.Minute
)

// Tickets is the ticket configuration file.
type Tickets struct {
	Categories          yaml.Node `yaml:"categories"`
	WaitingCategoryID   string    `yaml:"waiting_category_id"`
	RespondedCategoryID string    `yaml:"responded_category_id"`
	AssignedCategoryID  string    `yaml:"assigned_category_id"`
	StaffRoleIDs        []string  `yaml:"staff_role_ids"`
	ClosingRoleIDs      []string  `yaml:"closing_role_ids"`
	LogChannelID        string    `yaml:"log_channel_id"`
	DMCreator           bool      `yaml:"dm_creator"`
	DMCloser            bool      `yaml:"dm_closer"`
	SelectTimeout       Duration  `yaml:"select_timeout"`
	QuestionTimeout     Duration  `yaml:"question_timeout"`
	MaxOpenPerUser      int       `yaml:"max_open_per_user"`

	Tree *model.CategoryTree `yaml:"-"`
}

type category struct {
	CategoryID string    `yaml:"category_id"`
	StaffRoles []string  `yaml:"staff_roles"`
	Children   yaml.Node `yaml:"children"`
	Questions  []string  `yaml:"questions"`
}

// Duration accepts "10m" style strings or a number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if v, err := time.ParseDuration(s); err == nil {
		*d = Duration(v)
		return nil
	}
	var sec int64
	if err := value.Decode(&sec); err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(time.Duration(sec) * time.Second)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

const defaultTickets = `# Ticket categories. Each category has either children or questions.
categories:
  Minecraft Issues:
    children:
      Server Related:
        children:
          Hub:
            questions:
              - What issue are you experiencing in Hub?
          Prison:
            questions:
              - What issue are you experiencing in Prison?
          Skyblock:
            questions:
              - What issue are you experiencing in Skyblock?
      Client Related:
        questions:
          - What client are you using?
          - What mods are installed?
waiting_category_id: ""
responded_category_id: ""
assigned_category_id: ""
staff_role_ids: []
closing_role_ids: []
log_channel_id: ""
dm_creator: true
dm_closer: false
select_timeout: 10m
question_timeout: 30m
max_open_per_user: 0
`

func TicketsPath() string {
	if os.Getenv("TICKETS_CONFIG") != "" {
		return os.Getenv("TICKETS_CONFIG")
	}
	return DefaultPath
}

// LoadTickets reads the ticket configuration, writing the default one first
// when the file does not exist yet.
func LoadTickets(path string) (*Tickets, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create config dir failed: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultTickets), 0o644); err != nil {
			return nil, fmt.Errorf("write default config failed: %w", err)
		}
		slog.Info("created default tickets config", slog.String("path", path))
		b = []byte(defaultTickets)
	} else if err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}
	return ParseTickets(b)
}

func ParseTickets(b []byte) (*Tickets, error) {
	t := &Tickets{
		SelectTimeout:   Duration(DefaultSelectTimeout),
		QuestionTimeout: Duration(DefaultQuestionTimeout),
	}
	if err := yaml.Unmarshal(b, t); err != nil {
		return nil, fmt.Errorf("parse config failed: %w", err)
	}
	if t.SelectTimeout <= 0 {
		t.SelectTimeout = Duration(DefaultSelectTimeout)
	}
	if t.QuestionTimeout <= 0 {
		t.QuestionTimeout = Duration(DefaultQuestionTimeout)
	}
	if t.MaxOpenPerUser < 0 {
		return nil, fmt.Errorf("max_open_per_user must not be negative")
	}

	children, err := buildChildren(&t.Categories)
	if err != nil {
		return nil, err
	}
	tree, err := model.NewCategoryTree(&model.CategoryNode{
		StaffGroupIDs: t.StaffRoleIDs,
		Children:      children,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid categories: %w", err)
	}
	t.Tree = tree
	return t, nil
}

// buildChildren keeps the mapping order of the YAML document.
func buildChildren(n *yaml.Node) ([]*model.CategoryNode, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: categories must be a mapping", n.Line)
	}
	nodes := make([]*model.CategoryNode, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		var c category
		if err := n.Content[i+1].Decode(&c); err != nil {
			return nil, fmt.Errorf("line %d: category %q: %w", n.Content[i].Line, name, err)
		}
		children, err := buildChildren(&c.Children)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, &model.CategoryNode{
			Name:               name,
			ArchivalLocationID: c.CategoryID,
			StaffGroupIDs:      c.StaffRoles,
			Children:           children,
			Questions:          c.Questions,
		})
	}
	return nodes, nil
}

// IsStaff reports whether roles intersect the global staff roles.
func (t *Tickets) IsStaff(roles []string) bool {
	return hasAny(roles, t.StaffRoleIDs)
}

func (t *Tickets) CanClose(roles []string) bool {
	return hasAny(roles, t.ClosingRoleIDs)
}

func hasAny(roles, wanted []string) bool {
	for _, r := range roles {
		for _, w := range wanted {
			if r == w {
				return true
			}
		}
	}
	return false
}
