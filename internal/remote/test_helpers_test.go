package remote

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testToken = "secret_test"

// newTestClient starts srv's handler behind httptest and returns a client
// pointed at it with a generous rate limit.
func newTestClient(t *testing.T, h http.Handler, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	if cfg.Token == "" {
		cfg.Token = testToken
	}
	cfg.BaseURL = srv.URL + "/v1/"
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1000
		cfg.Burst = 100
	}
	c, err := New(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func apiError(status int, code, message string) string {
	return fmt.Sprintf(`{"object":"error","status":%d,"code":%q,"message":%q}`, status, code, message)
}

var stamp = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format("2006-01-02T15:04:05.000Z")

func blockJSON(id, parentID, blockType string, hasChildren bool) string {
	return fmt.Sprintf(`{
		"object": "block", "id": %q,
		"parent": {"type": "page_id", "page_id": %q},
		"created_time": %q, "created_by": {"object": "user", "id": "u1"},
		"last_edited_time": %q, "last_edited_by": {"object": "user", "id": "u1"},
		"has_children": %t, "archived": false, "in_trash": false,
		"type": %q, %q: {}
	}`, id, parentID, stamp, stamp, hasChildren, blockType, blockType)
}

func pageJSON(id string) string {
	return fmt.Sprintf(`{
		"object": "page", "id": %q,
		"parent": {"type": "workspace", "workspace": true},
		"created_time": %q, "created_by": {"id": "u1"},
		"last_edited_time": %q, "last_edited_by": {"id": "u1"},
		"archived": false, "in_trash": false,
		"properties": {}, "url": "https://www.notion.so/%s",
		"public_url": null, "icon": null, "cover": null
	}`, id, stamp, stamp, id)
}

func databaseJSON(id string) string {
	return fmt.Sprintf(`{
		"object": "database", "id": %q,
		"parent": {"type": "page_id", "page_id": "p1"},
		"created_time": %q, "created_by": {"id": "u1"},
		"last_edited_time": %q, "last_edited_by": {"id": "u1"},
		"archived": false, "properties": {}, "url": "https://www.notion.so/%s",
		"public_url": null, "is_inline": false, "title": [], "description": []
	}`, id, stamp, stamp, id)
}

func commentJSON(id, parentID string) string {
	return fmt.Sprintf(`{
		"object": "comment", "id": %q,
		"parent": {"type": "page_id", "page_id": %q},
		"discussion_id": "disc-1",
		"created_time": %q, "created_by": {"object": "user", "id": "u1"},
		"last_edited_time": %q,
		"rich_text": []
	}`, id, parentID, stamp, stamp)
}

func listJSON(nextCursor string, results ...string) string {
	next := "null"
	if nextCursor != "" {
		next = fmt.Sprintf("%q", nextCursor)
	}
	body := "["
	for i, r := range results {
		if i > 0 {
			body += ","
		}
		body += r
	}
	body += "]"
	return fmt.Sprintf(`{"object":"list","results":%s,"next_cursor":%s,"has_more":%t}`, body, next, nextCursor != "")
}
