package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notionsync/internal/notion"
)

func TestUpsertBlock_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	b := createTestBlock("b1", "p1", 3)
	b.HasChildren = true
	require.NoError(t, s.UpsertBlock(ctx, b))

	got, err := s.ReadBlock(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", got.ID)
	assert.Equal(t, notion.Parent{Type: notion.ParentPage, ID: "p1"}, got.Parent)
	assert.Equal(t, 3, got.ChildIndex)
	assert.True(t, got.HasChildren)
	assert.Equal(t, "paragraph", got.Type)
	assert.True(t, got.CreatedTime.Equal(testTime))
	assert.Equal(t, "user-2", got.LastEditedBy.ID)
	// Stored blobs are canonical.
	assert.Equal(t, `{"color":"default","rich_text":[]}`, string(got.TypeData))
}

func TestUpsertBlock_OverwritesAllColumns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBlock(ctx, createTestBlock("b1", "p1", 0)))

	updated := createTestBlock("b1", "p2", 7)
	updated.Archived = true
	updated.Type = "heading_1"
	updated.TypeData = json.RawMessage(`{"rich_text":[{"plain_text":"Title"}]}`)
	require.NoError(t, s.UpsertBlock(ctx, updated))

	got, err := s.ReadBlock(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "p2", got.Parent.ID)
	assert.Equal(t, 7, got.ChildIndex)
	assert.True(t, got.Archived)
	assert.Equal(t, "heading_1", got.Type)
	assert.Equal(t, `{"rich_text":[{"plain_text":"Title"}]}`, string(got.TypeData))

	n, err := s.Count(ctx, notion.KindBlock)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertBlock_InvalidBlobWritesNothing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	b := createTestBlock("b1", "p1", 0)
	b.TypeData = json.RawMessage(`{"broken":`)
	require.Error(t, s.UpsertBlock(ctx, b))

	ok, err := s.Exists(ctx, notion.KindBlock, "b1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsertPage_OptionalColumns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	p := createTestPage("p1")
	require.NoError(t, s.UpsertPage(ctx, p))

	got, err := s.ReadPage(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got.PublicURL)
	assert.Nil(t, got.Icon)
	assert.Nil(t, got.Cover)
	assert.Equal(t, notion.ParentWorkspace, got.Parent.Type)
	assert.Equal(t, notion.WorkspaceID, got.Parent.ID)

	public := "https://example.notion.site/p1"
	p.PublicURL = &public
	p.Icon = json.RawMessage(`{"type": "emoji", "emoji": "📄"}`)
	p.InTrash = true
	require.NoError(t, s.UpsertPage(ctx, p))

	got, err = s.ReadPage(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got.PublicURL)
	assert.Equal(t, public, *got.PublicURL)
	assert.Equal(t, `{"emoji":"📄","type":"emoji"}`, string(got.Icon))
	assert.True(t, got.InTrash)
}

func TestUpsertDatabase_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertDatabase(ctx, createTestDatabase("d1")))

	got, err := s.ReadDatabase(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, got.IsInline)
	assert.Equal(t, `[{"plain_text":"Tasks"}]`, string(got.Title))
	assert.Equal(t, `[]`, string(got.Description))
	assert.Equal(t, `{}`, string(got.Properties))
}

func TestUpsertComment_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertComment(ctx, createTestComment("c1", "p1")))

	got, err := s.ReadComment(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "disc-c1", got.DiscussionID)
	assert.Equal(t, "p1", got.Parent.ID)
	assert.Equal(t, `[{"plain_text":"hello"}]`, string(got.RichText))
}

func TestUpsert_Dispatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	objs := []notion.Object{
		createTestBlock("b1", "p1", 0),
		createTestPage("p1"),
		createTestDatabase("d1"),
		createTestComment("c1", "p1"),
	}
	for _, obj := range objs {
		require.NoError(t, Upsert(ctx, s, obj))
	}
	assert.ErrorContains(t, Upsert(ctx, s, nil), "unsupported record type")

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	for _, kind := range notion.Kinds {
		assert.Equal(t, 1, counts[kind], "kind %s", kind)
	}
}

func TestRead_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.ReadBlock(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ReadPage(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ReadDatabase(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ReadComment(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExists_UnknownKind(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Exists(context.Background(), notion.Kind("user"), "u1")
	assert.Error(t, err)
}

func TestChildBlocks_OrderedByIndex(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, b := range []*notion.Block{
		createTestBlock("z", "p1", 0),
		createTestBlock("a", "p1", 2),
		createTestBlock("m", "p1", 1),
		createTestBlock("other", "p2", 0),
	} {
		require.NoError(t, s.UpsertBlock(ctx, b))
	}

	children, err := s.ChildBlocks(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, "z", children[0].ID)
	assert.Equal(t, "m", children[1].ID)
	assert.Equal(t, "a", children[2].ID)
}

func TestParents_OrderedByID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertBlock(ctx, createTestBlock("b2", "p1", 1)))
	require.NoError(t, s.UpsertBlock(ctx, createTestBlock("b1", "p1", 0)))

	refs, err := s.Parents(ctx, notion.KindBlock)
	require.NoError(t, err)
	assert.Equal(t, []ParentRef{
		{ID: "b1", Parent: notion.Parent{Type: notion.ParentPage, ID: "p1"}},
		{ID: "b2", Parent: notion.Parent{Type: notion.ParentPage, ID: "p1"}},
	}, refs)

	refs, err = s.Parents(ctx, notion.KindComment)
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = s.Parents(ctx, notion.Kind("user"))
	assert.Error(t, err)
}
