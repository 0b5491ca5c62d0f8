package notion

import (
	"encoding/json"
	"time"
)

// Kind identifies one of the mirrored entity kinds.
type Kind string

const (
	KindBlock    Kind = "block"
	KindPage     Kind = "page"
	KindDatabase Kind = "database"
	KindComment  Kind = "comment"
)

// Kinds lists every mirrored kind in a stable order.
var Kinds = []Kind{KindBlock, KindPage, KindDatabase, KindComment}

// Block types that point at another container rather than holding content.
const (
	BlockTypeChildPage     = "child_page"
	BlockTypeChildDatabase = "child_database"
)

// TimeLayout is the timestamp format used by the API and by the store.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ParentType tags which kind of entity a parent reference points at.
type ParentType string

const (
	ParentBlock     ParentType = "block_id"
	ParentPage      ParentType = "page_id"
	ParentDatabase  ParentType = "database_id"
	ParentWorkspace ParentType = "workspace"
)

// WorkspaceID is the parent id recorded for top-level pages and databases.
const WorkspaceID = "workspace"

// Parent is a reference to the owning entity.
type Parent struct {
	Type ParentType `json:"type"`
	ID   string     `json:"id"`
}

// UserRef is the actor reference carried by audit fields.
type UserRef struct {
	ID string `json:"id"`
}

// Object is implemented by every mirrored record.
type Object interface {
	ObjectID() string
	Kind() Kind
}

// Common holds the fields shared by blocks, pages and databases.
type Common struct {
	ID             string
	Parent         Parent
	CreatedTime    time.Time
	CreatedBy      UserRef
	LastEditedTime time.Time
	LastEditedBy   UserRef
	Archived       bool
	InTrash        bool
}

// Inactive reports whether the remote has archived or trashed the entity.
// Inactive entities are mirrored as data but never expanded.
func (c *Common) Inactive() bool {
	return c.Archived || c.InTrash
}

// Block is a content node.
type Block struct {
	Common

	// ChildIndex is the position among the parent's children as observed at
	// fetch time. It is assigned by the lister, not by the API.
	ChildIndex  int
	HasChildren bool
	Type        string          // paragraph, child_page, to_do, ...
	TypeData    json.RawMessage // payload stored under the key named by Type
}

func (b *Block) ObjectID() string { return b.ID }
func (b *Block) Kind() Kind       { return KindBlock }

// ChildContainer returns the kind of container a child_page or
// child_database block points at. The pointed-at container shares the
// block's id.
func (b *Block) ChildContainer() (Kind, bool) {
	switch b.Type {
	case BlockTypeChildPage:
		return KindPage, true
	case BlockTypeChildDatabase:
		return KindDatabase, true
	}
	return "", false
}

// Page is a container with arbitrary typed properties.
type Page struct {
	Common

	Properties json.RawMessage
	URL        string
	PublicURL  *string
	Icon       json.RawMessage // nil when absent
	Cover      json.RawMessage // nil when absent
}

func (p *Page) ObjectID() string { return p.ID }
func (p *Page) Kind() Kind       { return KindPage }

// Database is a page-like container whose children are rows.
type Database struct {
	Common

	Properties  json.RawMessage
	URL         string
	PublicURL   *string
	Icon        json.RawMessage
	Cover       json.RawMessage
	IsInline    bool
	Title       json.RawMessage // rich text array
	Description json.RawMessage // rich text array
}

func (d *Database) ObjectID() string { return d.ID }
func (d *Database) Kind() Kind       { return KindDatabase }

// Comment is a leaf attached to a discussion thread.
type Comment struct {
	ID             string
	Parent         Parent
	CreatedTime    time.Time
	CreatedBy      UserRef
	LastEditedTime time.Time
	DiscussionID   string
	RichText       json.RawMessage
}

func (c *Comment) ObjectID() string { return c.ID }
func (c *Comment) Kind() Kind       { return KindComment }

// Inactive reports whether obj is an archived or trashed block, page or
// database. Comments are never inactive.
func Inactive(obj Object) bool {
	switch o := obj.(type) {
	case *Block:
		return o.Inactive()
	case *Page:
		return o.Inactive()
	case *Database:
		return o.Inactive()
	}
	return false
}

// Probe is the outcome of resolving an id of unknown kind.
type Probe struct {
	// Block is the block the id names; nil when the remote has no block
	// for it.
	Block *Block

	// Container is the record to traverse: the page or database a
	// child_page or child_database block stands for, or Block itself.
	Container Object
}

// Records returns the distinct records of the probe, block first.
func (p Probe) Records() []Object {
	var out []Object
	if p.Block != nil {
		out = append(out, p.Block)
	}
	if p.Container != nil && p.Container != Object(p.Block) {
		out = append(out, p.Container)
	}
	return out
}
