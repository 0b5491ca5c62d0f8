package engine

import (
	"fmt"

	"github.com/roach88/notionsync/internal/notion"
)

// Operations named in soft failures and fatal errors.
const (
	opFetchContainer = "fetch_container"
	opListChildren   = "list_children"
	opQueryRows      = "query_database_rows"
	opListComments   = "list_comments"
)

// CommentScope selects which entities have their comments mirrored.
type CommentScope string

const (
	// CommentsPages fetches comments of pages only.
	CommentsPages CommentScope = "pages"
	// CommentsBlocks fetches comments of pages and of every active block.
	CommentsBlocks CommentScope = "blocks"
	// CommentsNone skips comments entirely.
	CommentsNone CommentScope = "none"
)

// ParseCommentScope validates a comment scope name.
func ParseCommentScope(s string) (CommentScope, error) {
	switch scope := CommentScope(s); scope {
	case CommentsPages, CommentsBlocks, CommentsNone:
		return scope, nil
	}
	return "", fmt.Errorf("invalid comment scope %q (want pages, blocks or none)", s)
}

// container is the uniform view of a record during traversal: its kind and
// the fetchers that enumerate what it owns. Blocks, pages and databases all
// go through the same expansion; only the fetcher list differs.
type container struct {
	id       string
	kind     notion.Kind
	fetchers []string
}

// containerOf derives the fetchers for obj. Inactive records get none.
func containerOf(obj notion.Object, comments CommentScope) container {
	c := container{id: obj.ObjectID(), kind: obj.Kind()}
	if notion.Inactive(obj) {
		return c
	}

	switch o := obj.(type) {
	case *notion.Database:
		c.fetchers = append(c.fetchers, opQueryRows)
	case *notion.Page:
		c.fetchers = append(c.fetchers, opListChildren)
		if comments == CommentsPages || comments == CommentsBlocks {
			c.fetchers = append(c.fetchers, opListComments)
		}
	case *notion.Block:
		if o.HasChildren {
			c.fetchers = append(c.fetchers, opListChildren)
		}
		if comments == CommentsBlocks {
			c.fetchers = append(c.fetchers, opListComments)
		}
	}
	return c
}

// isContainer reports whether the record owns children that need traversal.
// Comments alone do not make a container.
func (c container) isContainer() bool {
	for _, op := range c.fetchers {
		if op == opListChildren || op == opQueryRows {
			return true
		}
	}
	return false
}
