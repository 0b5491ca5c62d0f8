package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/roach88/notionsync/internal/notion"
)

// Fake remote operations, as counted by Calls.
const (
	OpFetchContainer = "fetch_container"
	OpListChildren   = "list_children"
	OpQueryRows      = "query_database_rows"
	OpListComments   = "list_comments"
)

// DefaultPageSize is the listing page size of a new FakeRemote.
const DefaultPageSize = 100

// FixtureTime is the created time of every record built by FakeRemote.
var FixtureTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// Fault makes a fake operation fail.
type Fault struct {
	// Err is returned instead of the result.
	Err error

	// After is the number of calls that succeed before the fault fires.
	After int

	// Times is how often the fault fires; 0 means every call.
	Times int

	fired int
}

// Call is one recorded call on the fake.
type Call struct {
	Op     string
	ID     string
	Cursor string
}

// FakeRemote is an in-memory remote tree with fault injection.
//
// Records are built with the Add methods. Every call returns fresh copies,
// so callers may mutate what they receive. Listings are paginated by
// PageSize with cursors holding the next offset.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeRemote struct {
	mu        sync.Mutex
	pageSize  int
	blocks    map[string]*notion.Block
	pages     map[string]*notion.Page
	databases map[string]*notion.Database
	children  map[string][]string
	rows      map[string][]string
	comments  map[string][]*notion.Comment
	faults    map[Call]*Fault
	calls     map[Call]int
	log       []Call

	// OnCall, if set, runs before every call is served.
	OnCall func(Call)
}

// NewFakeRemote creates an empty fake remote.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		pageSize:  DefaultPageSize,
		blocks:    make(map[string]*notion.Block),
		pages:     make(map[string]*notion.Page),
		databases: make(map[string]*notion.Database),
		children:  make(map[string][]string),
		rows:      make(map[string][]string),
		comments:  make(map[string][]*notion.Comment),
		faults:    make(map[Call]*Fault),
		calls:     make(map[Call]int),
	}
}

// SetPageSize sets the listing page size.
func (f *FakeRemote) SetPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = n
}

func common(id string, parent notion.Parent) notion.Common {
	return notion.Common{
		ID:             id,
		Parent:         parent,
		CreatedTime:    FixtureTime,
		CreatedBy:      notion.UserRef{ID: "user-1"},
		LastEditedTime: FixtureTime,
		LastEditedBy:   notion.UserRef{ID: "user-1"},
	}
}

// parentOf returns the parent reference for a record owned by id.
// Callers hold f.mu.
func (f *FakeRemote) parentOf(id string) notion.Parent {
	if id == "" {
		return notion.Parent{Type: notion.ParentWorkspace, ID: notion.WorkspaceID}
	}
	if _, ok := f.pages[id]; ok {
		return notion.Parent{Type: notion.ParentPage, ID: id}
	}
	if _, ok := f.databases[id]; ok {
		return notion.Parent{Type: notion.ParentDatabase, ID: id}
	}
	return notion.Parent{Type: notion.ParentBlock, ID: id}
}

// AddPage adds a page. An empty parentID makes it a workspace page. When the
// parent is a page or block, a child_page block linking to it is appended
// to the parent's children; when the parent is a database, the page becomes
// a row.
func (f *FakeRemote) AddPage(id, parentID string) *notion.Page {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent := f.parentOf(parentID)
	p := &notion.Page{
		Common:     common(id, parent),
		Properties: json.RawMessage(fmt.Sprintf(`{"title":{"id":"title","type":"title","title":[{"plain_text":%q}]}}`, id)),
		URL:        "https://www.notion.so/" + id,
	}
	f.pages[id] = p

	switch parent.Type {
	case notion.ParentDatabase:
		f.rows[parentID] = append(f.rows[parentID], id)
	case notion.ParentPage, notion.ParentBlock:
		f.addBlockLocked(parentID, id, notion.BlockTypeChildPage)
	}
	return p
}

// AddDatabase adds a database. An empty parentID makes it a workspace
// database. When the parent is a page or block, a child_database block
// linking to it is appended to the parent's children; when the parent is a
// database, the database becomes a row.
func (f *FakeRemote) AddDatabase(id, parentID string) *notion.Database {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent := f.parentOf(parentID)
	d := &notion.Database{
		Common:      common(id, parent),
		Properties:  json.RawMessage(`{"Name":{"id":"title","type":"title"}}`),
		URL:         "https://www.notion.so/" + id,
		IsInline:    parentID != "",
		Title:       json.RawMessage(fmt.Sprintf(`[{"plain_text":%q}]`, id)),
		Description: json.RawMessage(`[]`),
	}
	f.databases[id] = d

	switch parent.Type {
	case notion.ParentDatabase:
		f.rows[parentID] = append(f.rows[parentID], id)
	case notion.ParentPage, notion.ParentBlock:
		f.addBlockLocked(parentID, id, notion.BlockTypeChildDatabase)
	}
	return d
}

// AddBlock appends a block of the given type to parentID's children.
func (f *FakeRemote) AddBlock(parentID, id, blockType string) *notion.Block {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addBlockLocked(parentID, id, blockType)
}

func (f *FakeRemote) addBlockLocked(parentID, id, blockType string) *notion.Block {
	b, ok := f.blocks[id]
	if !ok {
		b = &notion.Block{
			Common:   common(id, f.parentOf(parentID)),
			Type:     blockType,
			TypeData: json.RawMessage(fmt.Sprintf(`{"rich_text":[{"plain_text":%q}]}`, id)),
		}
		f.blocks[id] = b
	}
	f.children[parentID] = append(f.children[parentID], id)
	return b
}

// Link appends an existing block to another parent's children without
// changing the block's own parent reference. Used to build malformed trees.
func (f *FakeRemote) Link(parentID, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.children[parentID] = append(f.children[parentID], id)
}

// AddComment adds a comment on a page or block.
func (f *FakeRemote) AddComment(parentID, id string) *notion.Comment {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent := notion.Parent{Type: notion.ParentBlock, ID: parentID}
	if _, ok := f.pages[parentID]; ok {
		parent.Type = notion.ParentPage
	}
	c := &notion.Comment{
		ID:             id,
		Parent:         parent,
		CreatedTime:    FixtureTime,
		CreatedBy:      notion.UserRef{ID: "user-1"},
		LastEditedTime: FixtureTime,
		DiscussionID:   "discussion-" + parentID,
		RichText:       json.RawMessage(fmt.Sprintf(`[{"plain_text":%q}]`, id)),
	}
	f.comments[parentID] = append(f.comments[parentID], c)
	return c
}

// Archive marks a block, page or database as archived.
func (f *FakeRemote) Archive(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.blocks[id]; ok {
		b.Archived = true
	}
	if p, ok := f.pages[id]; ok {
		p.Archived = true
	}
	if d, ok := f.databases[id]; ok {
		d.Archived = true
	}
}

// Edit changes the last edited time of a record, simulating a remote edit.
func (f *FakeRemote) Edit(id string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.blocks[id]; ok {
		b.LastEditedTime = at
	}
	if p, ok := f.pages[id]; ok {
		p.LastEditedTime = at
	}
	if d, ok := f.databases[id]; ok {
		d.LastEditedTime = at
	}
}

// Fail installs a fault on op for id. Later calls replace earlier faults.
func (f *FakeRemote) Fail(op, id string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[Call{Op: op, ID: id}] = &fault
}

// Calls returns how many times op was called for id.
func (f *FakeRemote) Calls(op, id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[Call{Op: op, ID: id}]
}

// Log returns every call in the order served.
func (f *FakeRemote) Log() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.log))
	copy(out, f.log)
	return out
}

// Cursors returns the cursors passed to op for id, in call order.
func (f *FakeRemote) Cursors(op, id string) []string {
	var out []string
	for _, c := range f.Log() {
		if c.Op == op && c.ID == id {
			out = append(out, c.Cursor)
		}
	}
	return out
}

// Size returns the number of records per kind held by the fake.
func (f *FakeRemote) Size() map[notion.Kind]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, cs := range f.comments {
		n += len(cs)
	}
	return map[notion.Kind]int{
		notion.KindBlock:    len(f.blocks),
		notion.KindPage:     len(f.pages),
		notion.KindDatabase: len(f.databases),
		notion.KindComment:  n,
	}
}

// begin records a call and returns the fault to report, if any.
func (f *FakeRemote) begin(ctx context.Context, op, id, cursor string) error {
	call := Call{Op: op, ID: id, Cursor: cursor}
	if f.OnCall != nil {
		f.OnCall(call)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := Call{Op: op, ID: id}
	f.calls[key]++
	f.log = append(f.log, call)

	fault, ok := f.faults[key]
	if !ok || f.calls[key] <= fault.After {
		return nil
	}
	if fault.Times > 0 && fault.fired >= fault.Times {
		return nil
	}
	fault.fired++
	return fault.Err
}

// FetchContainer returns the record of the given kind for id.
func (f *FakeRemote) FetchContainer(ctx context.Context, id string, kind notion.Kind) (notion.Object, error) {
	if err := f.begin(ctx, OpFetchContainer, id, ""); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if obj := f.recordLocked(id, kind); obj != nil {
		return obj, nil
	}
	return nil, NotFound(id)
}

// Probe resolves id as the API would: the block id names, if any, and the
// page or database it stands for. Workspace pages and databases have no
// block. Probes are counted as OpFetchContainer calls.
func (f *FakeRemote) Probe(ctx context.Context, id string) (notion.Probe, error) {
	if err := f.begin(ctx, OpFetchContainer, id, ""); err != nil {
		return notion.Probe{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var probe notion.Probe
	if b := f.recordLocked(id, notion.KindBlock); b != nil {
		probe.Block = b.(*notion.Block)
		probe.Container = probe.Block
	}
	if p := f.recordLocked(id, notion.KindPage); p != nil {
		probe.Container = p
	} else if d := f.recordLocked(id, notion.KindDatabase); d != nil {
		probe.Container = d
	}
	if probe.Container == nil {
		return probe, NotFound(id)
	}
	return probe, nil
}

// recordLocked returns a copy of the record of kind for id, or nil.
// Callers hold f.mu.
func (f *FakeRemote) recordLocked(id string, kind notion.Kind) notion.Object {
	switch kind {
	case notion.KindPage:
		if p, ok := f.pages[id]; ok {
			cp := *p
			return &cp
		}
	case notion.KindDatabase:
		if d, ok := f.databases[id]; ok {
			cp := *d
			return &cp
		}
	case notion.KindBlock:
		if b, ok := f.blocks[id]; ok {
			return f.blockLocked(b)
		}
	}
	return nil
}

// blockLocked copies b, deriving has_children from the child lists.
func (f *FakeRemote) blockLocked(b *notion.Block) *notion.Block {
	cp := *b
	if b.Type != notion.BlockTypeChildPage && b.Type != notion.BlockTypeChildDatabase {
		cp.HasChildren = len(f.children[b.ID]) > 0
	} else {
		cp.HasChildren = false
	}
	return &cp
}

func (f *FakeRemote) known(id string) bool {
	_, page := f.pages[id]
	_, db := f.databases[id]
	_, block := f.blocks[id]
	return page || db || block
}

// window returns the [start, end) slice bounds for cursor and the cursor
// of the following page.
func (f *FakeRemote) window(cursor string, total int) (int, int, string, error) {
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 || n > total {
			return 0, 0, "", &notion.APIError{Status: http.StatusBadRequest, Code: "validation_error", Message: "invalid start_cursor " + cursor}
		}
		start = n
	}
	end := start + f.pageSize
	if end > total {
		end = total
	}
	next := ""
	if end < total {
		next = strconv.Itoa(end)
	}
	return start, end, next, nil
}

// ListChildren lists the child blocks of a page or block.
func (f *FakeRemote) ListChildren(ctx context.Context, id, cursor string) (notion.ResultPage[*notion.Block], error) {
	var page notion.ResultPage[*notion.Block]
	if err := f.begin(ctx, OpListChildren, id, cursor); err != nil {
		return page, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.known(id) {
		return page, NotFound(id)
	}
	ids := f.children[id]
	start, end, next, err := f.window(cursor, len(ids))
	if err != nil {
		return page, err
	}
	for _, childID := range ids[start:end] {
		page.Results = append(page.Results, f.blockLocked(f.blocks[childID]))
	}
	page.NextCursor = next
	return page, nil
}

// QueryDatabaseRows lists the rows of a database: pages and nested
// databases.
func (f *FakeRemote) QueryDatabaseRows(ctx context.Context, id, cursor string) (notion.ResultPage[notion.Object], error) {
	var page notion.ResultPage[notion.Object]
	if err := f.begin(ctx, OpQueryRows, id, cursor); err != nil {
		return page, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.databases[id]; !ok {
		return page, NotFound(id)
	}
	ids := f.rows[id]
	start, end, next, err := f.window(cursor, len(ids))
	if err != nil {
		return page, err
	}
	for _, rowID := range ids[start:end] {
		row := f.recordLocked(rowID, notion.KindPage)
		if row == nil {
			row = f.recordLocked(rowID, notion.KindDatabase)
		}
		page.Results = append(page.Results, row)
	}
	page.NextCursor = next
	return page, nil
}

// ListComments lists the comments on a page or block.
func (f *FakeRemote) ListComments(ctx context.Context, id, cursor string) (notion.ResultPage[*notion.Comment], error) {
	var page notion.ResultPage[*notion.Comment]
	if err := f.begin(ctx, OpListComments, id, cursor); err != nil {
		return page, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.known(id) {
		return page, NotFound(id)
	}
	cs := f.comments[id]
	start, end, next, err := f.window(cursor, len(cs))
	if err != nil {
		return page, err
	}
	for _, c := range cs[start:end] {
		cp := *c
		page.Results = append(page.Results, &cp)
	}
	page.NextCursor = next
	return page, nil
}

// NotFound returns the permanent error the API reports for a missing or
// unshared object.
func NotFound(id string) error {
	return &notion.APIError{
		Status:  http.StatusNotFound,
		Code:    notion.CodeNotFound,
		Message: "Could not find block with ID: " + id,
	}
}

// RateLimited returns a transient 429 error carrying a Retry-After hint.
func RateLimited(retryAfter time.Duration) error {
	return &notion.APIError{
		Status:     http.StatusTooManyRequests,
		Code:       notion.CodeRateLimited,
		Message:    "rate limited",
		Transient:  true,
		RetryAfter: retryAfter,
	}
}

// ServerError returns a transient 5xx error.
func ServerError() error {
	return &notion.APIError{
		Status:    http.StatusBadGateway,
		Code:      "bad_gateway",
		Message:   "upstream unavailable",
		Transient: true,
	}
}

// Structural returns the error a decoder reports for a missing field.
func Structural(kind notion.Kind, id, field string) error {
	return &notion.StructuralError{Kind: kind, ID: id, Field: field, Msg: "missing"}
}
