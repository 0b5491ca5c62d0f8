package store

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notionsync/internal/notion"
)

func seedSmall(t *testing.T, s *Store, order []notion.Object) {
	t.Helper()
	for _, obj := range order {
		require.NoError(t, Upsert(context.Background(), s, obj))
	}
}

func smallTree() []notion.Object {
	return []notion.Object{
		createTestPage("p1"),
		createTestBlock("b1", "p1", 0),
		createTestBlock("b2", "p1", 1),
		createTestDatabase("d1"),
		createTestComment("c1", "p1"),
	}
}

func TestDump_Golden(t *testing.T) {
	s := createTestStore(t)
	seedSmall(t, s, smallTree())

	dump, err := s.Dump(context.Background())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "dump_small", []byte(dump))
}

func TestDump_IndependentOfWriteOrder(t *testing.T) {
	forward := createTestStore(t)
	seedSmall(t, forward, smallTree())

	tree := smallTree()
	reversed := make([]notion.Object, 0, len(tree))
	for i := len(tree) - 1; i >= 0; i-- {
		reversed = append(reversed, tree[i])
	}
	backward := createTestStore(t)
	seedSmall(t, backward, reversed)

	a, err := forward.Dump(context.Background())
	require.NoError(t, err)
	b, err := backward.Dump(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDump_ExcludesRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	before, err := s.Dump(ctx)
	require.NoError(t, err)
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1", RootID: "root", StartedAt: testTime}))
	after, err := s.Dump(ctx)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Equal(t, "# blocks\n# pages\n# databases\n# comments\n", after)
}
