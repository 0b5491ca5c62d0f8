package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notionsync/internal/notion"
)

func TestSyncError_Error(t *testing.T) {
	cause := errors.New("disk full")

	withID := &SyncError{Code: ErrCodeStoreWrite, ID: "b1", Op: "upsert_block", Err: cause}
	assert.Equal(t, "STORE_WRITE: upsert_block b1: disk full", withID.Error())

	noID := &SyncError{Code: ErrCodeCanceled, Op: "sync", Err: context.Canceled}
	assert.Equal(t, "CANCELED: sync: context canceled", noID.Error())
}

func TestSyncError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("run: %w", &SyncError{Code: ErrCodeStoreWrite, Err: cause})
	assert.ErrorIs(t, err, cause)
}

func TestSyncError_Predicates(t *testing.T) {
	tests := []struct {
		code SyncErrorCode
		is   func(error) bool
	}{
		{ErrCodeStoreWrite, IsStoreError},
		{ErrCodeStructural, IsStructuralError},
		{ErrCodeRootUnavailable, IsRootUnavailable},
		{ErrCodeCanceled, IsCanceled},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &SyncError{Code: tt.code, Err: errors.New("x")})
			assert.True(t, tt.is(err))

			for _, other := range tests {
				if other.code != tt.code {
					assert.False(t, other.is(err), "%s matched %s", other.code, tt.code)
				}
			}
		})
	}

	assert.False(t, IsStoreError(nil))
	assert.False(t, IsCanceled(context.Canceled), "raw context errors are not SyncErrors")
}

func TestClassify(t *testing.T) {
	t.Run("structural is fatal", func(t *testing.T) {
		cause := &notion.StructuralError{Kind: notion.KindBlock, ID: "b1", Field: "type", Msg: "missing"}
		soft, err := classify("p1", notion.KindPage, opListChildren, 1, cause)
		assert.Nil(t, soft)
		require.Error(t, err)
		assert.True(t, IsStructuralError(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("permanent api error is soft", func(t *testing.T) {
		cause := &notion.APIError{Status: 404, Code: notion.CodeNotFound}
		soft, err := classify("p1", notion.KindPage, opListChildren, 1, cause)
		require.NoError(t, err)
		require.NotNil(t, soft)
		assert.Equal(t, "p1", soft.ID)
		assert.Equal(t, notion.KindPage, soft.Kind)
		assert.Equal(t, opListChildren, soft.Op)
		assert.Equal(t, 1, soft.Attempts)
		assert.True(t, notion.IsNotFound(soft))
	})

	t.Run("exhausted transient error is soft", func(t *testing.T) {
		cause := &notion.APIError{Status: 503, Transient: true}
		soft, err := classify("d1", notion.KindDatabase, opQueryRows, 5, cause)
		require.NoError(t, err)
		assert.Equal(t, 5, soft.Attempts)
		assert.Contains(t, soft.Error(), "query_database_rows database d1 (after 5 attempts)")
	})
}
