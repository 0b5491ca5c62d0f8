package notion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DecodeBlock parses a block object. The returned block has ChildIndex 0;
// listers assign the real index.
func DecodeBlock(data []byte) (*Block, error) {
	f, err := parseFields(KindBlock, data)
	if err != nil {
		return nil, err
	}

	b := &Block{Common: f.common()}
	b.HasChildren = f.boolean("has_children")
	b.Type = f.str("type")
	if f.err == nil {
		// The payload lives under the key named by the type tag.
		b.TypeData = f.object(b.Type)
	}
	if f.err != nil {
		return nil, f.err
	}
	return b, nil
}

// DecodePage parses a page object.
func DecodePage(data []byte) (*Page, error) {
	f, err := parseFields(KindPage, data)
	if err != nil {
		return nil, err
	}

	p := &Page{Common: f.common()}
	p.Properties = f.object("properties")
	p.URL = f.str("url")
	p.PublicURL = f.optStr("public_url")
	p.Icon = f.optRaw("icon")
	p.Cover = f.optRaw("cover")
	if f.err != nil {
		return nil, f.err
	}
	return p, nil
}

// DecodeDatabase parses a database object.
func DecodeDatabase(data []byte) (*Database, error) {
	f, err := parseFields(KindDatabase, data)
	if err != nil {
		return nil, err
	}

	d := &Database{Common: f.common()}
	d.Properties = f.object("properties")
	d.URL = f.str("url")
	d.PublicURL = f.optStr("public_url")
	d.Icon = f.optRaw("icon")
	d.Cover = f.optRaw("cover")
	d.IsInline = f.boolean("is_inline")
	d.Title = f.array("title")
	d.Description = f.array("description")
	if f.err != nil {
		return nil, f.err
	}
	return d, nil
}

// DecodeComment parses a comment object.
func DecodeComment(data []byte) (*Comment, error) {
	f, err := parseFields(KindComment, data)
	if err != nil {
		return nil, err
	}

	c := &Comment{
		ID:             f.id,
		Parent:         f.parent(),
		CreatedTime:    f.timestamp("created_time"),
		CreatedBy:      f.user("created_by"),
		LastEditedTime: f.timestamp("last_edited_time"),
		DiscussionID:   f.str("discussion_id"),
		RichText:       f.array("rich_text"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return c, nil
}

// DecodeObject parses a block, page, database or comment, dispatching on
// the "object" field.
func DecodeObject(data []byte) (Object, error) {
	var head struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, malformed(err)
	}
	switch Kind(head.Object) {
	case KindBlock:
		return DecodeBlock(data)
	case KindPage:
		return DecodePage(data)
	case KindDatabase:
		return DecodeDatabase(data)
	case KindComment:
		return DecodeComment(data)
	}
	return nil, &StructuralError{Field: "object", Msg: fmt.Sprintf("unsupported object type %q", head.Object)}
}

// DecodeRow parses one database query result. Rows are pages, or databases
// nested in a database; any other object makes the response malformed.
func DecodeRow(data []byte) (Object, error) {
	var head struct {
		Object string `json:"object"`
		ID     string `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, malformed(err)
	}
	switch Kind(head.Object) {
	case KindPage, KindDatabase:
		return DecodeObject(data)
	}
	return nil, &APIError{
		Code:    CodeMalformedResponse,
		Message: fmt.Sprintf("query result %q is a %q, not a page or database", head.ID, head.Object),
	}
}

func malformed(err error) error {
	return &APIError{Code: CodeMalformedResponse, Message: err.Error(), Err: err}
}

// fields walks a decoded JSON object. The first failure sticks in err and
// every later accessor returns a zero value, so decoders read straight
// through and check once.
type fields struct {
	kind Kind
	id   string
	m    map[string]json.RawMessage
	err  error
}

func parseFields(kind Kind, data []byte) (*fields, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, malformed(err)
	}
	f := &fields{kind: kind, m: m}

	// The id is read first so that every later error can name the record.
	idErr := json.Unmarshal(m["id"], &f.id)

	var object string
	if err := json.Unmarshal(m["object"], &object); err != nil || Kind(object) != kind {
		return nil, &StructuralError{Kind: kind, ID: f.id, Field: "object", Msg: fmt.Sprintf("expected %q", kind)}
	}
	switch {
	case isNull(m["id"]):
		return nil, &StructuralError{Kind: kind, Field: "id", Msg: "missing"}
	case idErr != nil:
		return nil, &StructuralError{Kind: kind, Field: "id", Msg: "not a string"}
	case f.id == "":
		return nil, &StructuralError{Kind: kind, Field: "id", Msg: "empty"}
	}
	return f, nil
}

func (f *fields) fail(field, msg string) {
	if f.err == nil {
		f.err = &StructuralError{Kind: f.kind, ID: f.id, Field: field, Msg: msg}
	}
}

// present returns the raw value of a required, non-null field.
func (f *fields) present(name string) (json.RawMessage, bool) {
	if f.err != nil {
		return nil, false
	}
	raw, ok := f.m[name]
	if !ok || isNull(raw) {
		f.fail(name, "missing")
		return nil, false
	}
	return raw, true
}

func (f *fields) str(name string) string {
	raw, ok := f.present(name)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		f.fail(name, "not a string")
	}
	return s
}

func (f *fields) optStr(name string) *string {
	if f.err != nil {
		return nil
	}
	raw, ok := f.m[name]
	if !ok || isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		f.fail(name, "not a string")
		return nil
	}
	return &s
}

func (f *fields) boolean(name string) bool {
	raw, ok := f.present(name)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		f.fail(name, "not a boolean")
	}
	return b
}

// optBool treats an absent field as false.
func (f *fields) optBool(name string) bool {
	if f.err != nil {
		return false
	}
	raw, ok := f.m[name]
	if !ok || isNull(raw) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		f.fail(name, "not a boolean")
	}
	return b
}

func (f *fields) timestamp(name string) time.Time {
	s := f.str(name)
	if f.err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		f.fail(name, "not an RFC 3339 timestamp")
		return time.Time{}
	}
	return t.UTC()
}

func (f *fields) user(name string) UserRef {
	raw, ok := f.present(name)
	if !ok {
		return UserRef{}
	}
	var u UserRef
	if err := json.Unmarshal(raw, &u); err != nil || u.ID == "" {
		f.fail(name, "missing user id")
	}
	return u
}

func (f *fields) object(name string) json.RawMessage {
	raw, ok := f.present(name)
	if !ok {
		return nil
	}
	if t := firstByte(raw); t != '{' {
		f.fail(name, "not an object")
		return nil
	}
	return raw
}

func (f *fields) array(name string) json.RawMessage {
	raw, ok := f.present(name)
	if !ok {
		return nil
	}
	if t := firstByte(raw); t != '[' {
		f.fail(name, "not an array")
		return nil
	}
	return raw
}

// optRaw returns nil for absent or null fields.
func (f *fields) optRaw(name string) json.RawMessage {
	if f.err != nil {
		return nil
	}
	raw, ok := f.m[name]
	if !ok || isNull(raw) {
		return nil
	}
	return raw
}

func (f *fields) parent() Parent {
	raw, ok := f.present("parent")
	if !ok {
		return Parent{}
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		f.fail("parent", "not an object")
		return Parent{}
	}
	var typ string
	if err := json.Unmarshal(m["type"], &typ); err != nil || typ == "" {
		f.fail("parent.type", "missing")
		return Parent{}
	}
	if ParentType(typ) == ParentWorkspace {
		return Parent{Type: ParentWorkspace, ID: WorkspaceID}
	}
	var id string
	if err := json.Unmarshal(m[typ], &id); err != nil || id == "" {
		f.fail("parent."+typ, "missing")
		return Parent{}
	}
	return Parent{Type: ParentType(typ), ID: id}
}

func (f *fields) common() Common {
	return Common{
		ID:             f.id,
		Parent:         f.parent(),
		CreatedTime:    f.timestamp("created_time"),
		CreatedBy:      f.user("created_by"),
		LastEditedTime: f.timestamp("last_edited_time"),
		LastEditedBy:   f.user("last_edited_by"),
		Archived:       f.boolean("archived"),
		// Older API versions omit in_trash.
		InTrash: f.optBool("in_trash"),
	}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
