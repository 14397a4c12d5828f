package model

import (
	"errors"
	"fmt"
	"strings"
)

// Discord select menus accept at most 25 options.
const MaxCategoryChildren = 25

var ErrTreeInconsistency = errors.New("category tree inconsistency")

// CategoryNode is one topic in the ticket category tree. A node is either
// an internal node (Children) or a leaf (Questions), never both.
type CategoryNode struct {
	Name               string
	ArchivalLocationID string
	StaffGroupIDs      []string
	Children           []*CategoryNode
	Questions          []string
}

func (n *CategoryNode) IsLeaf() bool {
	return len(n.Children) == 0 && len(n.Questions) > 0
}

func (n *CategoryNode) IsDeadEnd() bool {
	return len(n.Children) == 0 && len(n.Questions) == 0
}

func (n *CategoryNode) Child(name string) *CategoryNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (n *CategoryNode) ChildNames() []string {
	names := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		names = append(names, c.Name)
	}
	return names
}

// CategoryTree is shared by every open ticket and must not be modified
// after NewCategoryTree returns. Reloading configuration builds a new tree.
type CategoryTree struct {
	root *CategoryNode
}

func NewCategoryTree(root *CategoryNode) (*CategoryTree, error) {
	if root == nil || len(root.Children) == 0 {
		return nil, fmt.Errorf("category tree has no categories")
	}
	if len(root.Questions) > 0 {
		return nil, fmt.Errorf("category tree root cannot carry questions")
	}
	if err := validateChildren(root, nil); err != nil {
		return nil, err
	}
	return &CategoryTree{root: root}, nil
}

func validateChildren(n *CategoryNode, path []string) error {
	if len(n.Children) > MaxCategoryChildren {
		return fmt.Errorf("category %q has %d children, at most %d allowed", strings.Join(path, " > "), len(n.Children), MaxCategoryChildren)
	}
	seen := map[string]bool{}
	for _, c := range n.Children {
		p := append(append([]string{}, path...), c.Name)
		if c.Name == "" {
			return fmt.Errorf("category under %q has an empty name", strings.Join(path, " > "))
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate category %q", strings.Join(p, " > "))
		}
		seen[c.Name] = true
		switch {
		case len(c.Children) > 0 && len(c.Questions) > 0:
			return fmt.Errorf("category %q has both children and questions", strings.Join(p, " > "))
		case c.IsDeadEnd():
			return fmt.Errorf("category %q has neither children nor questions", strings.Join(p, " > "))
		}
		if err := validateChildren(c, p); err != nil {
			return err
		}
	}
	return nil
}

func (t *CategoryTree) Root() *CategoryNode {
	return t.root
}

// ResolveNode walks path from the root. A missing segment means the tree
// was edited after the ticket recorded the path.
func (t *CategoryTree) ResolveNode(path []string) (*CategoryNode, error) {
	node := t.root
	for i, name := range path {
		next := node.Child(name)
		if next == nil {
			return nil, fmt.Errorf("%w: %q not found under %q", ErrTreeInconsistency, name, strings.Join(path[:i], " > "))
		}
		node = next
	}
	return node, nil
}

// ResolveStaffGroup returns the staff group of the deepest node on path that
// defines one. Segments that no longer resolve end the walk.
func (t *CategoryTree) ResolveStaffGroup(path []string) []string {
	node := t.root
	group := node.StaffGroupIDs
	for _, name := range path {
		node = node.Child(name)
		if node == nil {
			break
		}
		if len(node.StaffGroupIDs) > 0 {
			group = node.StaffGroupIDs
		}
	}
	return append([]string{}, group...)
}
