package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/notionsync/internal/notion"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func testCommon(id string, parent notion.Parent) notion.Common {
	return notion.Common{
		ID:             id,
		Parent:         parent,
		CreatedTime:    testTime,
		CreatedBy:      notion.UserRef{ID: "user-1"},
		LastEditedTime: testTime.Add(time.Hour),
		LastEditedBy:   notion.UserRef{ID: "user-2"},
	}
}

// createTestBlock creates a paragraph block under a page.
func createTestBlock(id, parentID string, index int) *notion.Block {
	return &notion.Block{
		Common:     testCommon(id, notion.Parent{Type: notion.ParentPage, ID: parentID}),
		ChildIndex: index,
		Type:       "paragraph",
		TypeData:   json.RawMessage(`{"rich_text": [], "color": "default"}`),
	}
}

func createTestPage(id string) *notion.Page {
	return &notion.Page{
		Common:     testCommon(id, notion.Parent{Type: notion.ParentWorkspace, ID: notion.WorkspaceID}),
		Properties: json.RawMessage(`{"title": {"id": "title", "type": "title", "title": []}}`),
		URL:        "https://www.notion.so/" + id,
	}
}

func createTestDatabase(id string) *notion.Database {
	return &notion.Database{
		Common:      testCommon(id, notion.Parent{Type: notion.ParentPage, ID: "page-1"}),
		Properties:  json.RawMessage(`{}`),
		URL:         "https://www.notion.so/" + id,
		IsInline:    true,
		Title:       json.RawMessage(`[{"plain_text": "Tasks"}]`),
		Description: json.RawMessage(`[]`),
	}
}

func createTestComment(id, parentID string) *notion.Comment {
	return &notion.Comment{
		ID:             id,
		Parent:         notion.Parent{Type: notion.ParentPage, ID: parentID},
		CreatedTime:    testTime,
		CreatedBy:      notion.UserRef{ID: "user-1"},
		LastEditedTime: testTime,
		DiscussionID:   "disc-" + id,
		RichText:       json.RawMessage(`[{"plain_text": "hello"}]`),
	}
}
