package testutil

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/notionsync/internal/notion"
)

// Fixture is a remote tree described in YAML:
//
//	root: home
//	page_size: 2
//	nodes:
//	  - id: home
//	    kind: page
//	    comments: [c1]
//	    children:
//	      - id: intro
//	      - id: toggle
//	        type: toggle
//	        children:
//	          - id: nested
//	      - id: tasks
//	        kind: database
//	        children:
//	          - id: task-1
//	            kind: page
//
// Blocks are the default kind; their type defaults to paragraph. Children of
// a database are its rows and must be pages.
type Fixture struct {
	Root     string `yaml:"root,omitempty"`
	PageSize int    `yaml:"page_size,omitempty"`
	Nodes    []Node `yaml:"nodes"`
}

// Node is one record of a Fixture.
type Node struct {
	ID       string   `yaml:"id"`
	Kind     string   `yaml:"kind,omitempty"`
	Type     string   `yaml:"type,omitempty"`
	Archived bool     `yaml:"archived,omitempty"`
	Comments []string `yaml:"comments,omitempty"`
	Children []Node   `yaml:"children,omitempty"`
}

// LoadFixture reads and parses a fixture YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture parses fixture YAML.
func ParseFixture(data []byte) (*Fixture, error) {
	var fx Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fx); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &fx, nil
}

// Validate checks that the fixture describes a well-formed tree.
func (fx *Fixture) Validate() error {
	if len(fx.Nodes) == 0 {
		return fmt.Errorf("nodes list is required and must be non-empty")
	}
	seen := make(map[string]bool)
	for _, n := range fx.Nodes {
		if n.kind() == notion.KindBlock {
			return fmt.Errorf("top-level node %q must be a page or database", n.ID)
		}
		if err := n.validate(seen, ""); err != nil {
			return err
		}
	}
	if fx.Root != "" && !seen[fx.Root] {
		return fmt.Errorf("root %q is not a node", fx.Root)
	}
	return nil
}

func (n Node) validate(seen map[string]bool, parentKind notion.Kind) error {
	if n.ID == "" {
		return fmt.Errorf("node id is required")
	}
	if seen[n.ID] {
		return fmt.Errorf("duplicate node id %q", n.ID)
	}
	seen[n.ID] = true

	switch n.Kind {
	case "", "block", "page", "database":
	default:
		return fmt.Errorf("node %q: unknown kind %q", n.ID, n.Kind)
	}
	if parentKind == notion.KindDatabase && n.kind() == notion.KindBlock {
		return fmt.Errorf("node %q: database rows must be pages or databases", n.ID)
	}
	for _, child := range n.Children {
		if err := child.validate(seen, n.kind()); err != nil {
			return err
		}
	}
	return nil
}

func (n Node) kind() notion.Kind {
	if n.Kind == "" {
		return notion.KindBlock
	}
	return notion.Kind(n.Kind)
}

// RootID returns the configured root, or the first node.
func (fx *Fixture) RootID() string {
	if fx.Root != "" {
		return fx.Root
	}
	return fx.Nodes[0].ID
}

// Build creates a FakeRemote holding the fixture's tree.
func (fx *Fixture) Build() *FakeRemote {
	f := NewFakeRemote()
	if fx.PageSize > 0 {
		f.SetPageSize(fx.PageSize)
	}
	for _, n := range fx.Nodes {
		build(f, "", n)
	}
	return f
}

func build(f *FakeRemote, parentID string, n Node) {
	switch n.kind() {
	case notion.KindPage:
		f.AddPage(n.ID, parentID)
	case notion.KindDatabase:
		f.AddDatabase(n.ID, parentID)
	default:
		blockType := n.Type
		if blockType == "" {
			blockType = "paragraph"
		}
		f.AddBlock(parentID, n.ID, blockType)
	}
	for _, child := range n.Children {
		build(f, n.ID, child)
	}
	for _, c := range n.Comments {
		f.AddComment(n.ID, c)
	}
	if n.Archived {
		f.Archive(n.ID)
	}
}

// SyntheticTree builds a root page whose block tree has the given depth and
// branching factor: the root has branching child blocks, and every block
// above the last level has branching children of its own.
//
// The tree has 1 + B + ... + B^(D-1) containers and B^D leaf blocks.
func SyntheticTree(depth, branching int) (*FakeRemote, string) {
	f := NewFakeRemote()
	const root = "root"
	f.AddPage(root, "")
	growSynthetic(f, root, nil, 1, depth, branching)
	return f, root
}

func growSynthetic(f *FakeRemote, parentID string, path []string, level, depth, branching int) {
	if level > depth {
		return
	}
	for i := 0; i < branching; i++ {
		p := append(append([]string(nil), path...), strconv.Itoa(i))
		id := "b-" + strings.Join(p, "-")
		f.AddBlock(parentID, id, "paragraph")
		growSynthetic(f, id, p, level+1, depth, branching)
	}
}

// SyntheticCounts returns the container and leaf counts of SyntheticTree.
func SyntheticCounts(depth, branching int) (containers, leaves int) {
	containers = 1
	level := 1
	for d := 1; d <= depth; d++ {
		level *= branching
		if d < depth {
			containers += level
		}
	}
	return containers, level
}
