package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/copy-catalog/internal/common"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "ab/cd.docx", strings.NewReader("hello"), 5))
	got, err := ReadAll(ctx, s, "ab/cd.docx")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	// Overwrite replaces the blob atomically.
	require.NoError(t, s.Put(ctx, "ab/cd.docx", strings.NewReader("bye"), 3))
	got, err = ReadAll(ctx, s, "ab/cd.docx")
	require.NoError(t, err)
	assert.Equal(t, "bye", string(got))

	require.NoError(t, s.Delete(ctx, "ab/cd.docx"))
	require.NoError(t, s.Delete(ctx, "ab/cd.docx"))
	_, err = ReadAll(ctx, s, "ab/cd.docx")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLocalStore_RejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)

	for _, key := range []string{"", "/", "../escape.pdf", "a/../../b.pdf"} {
		err := s.Put(ctx, key, strings.NewReader("x"), 1)
		assert.ErrorIs(t, err, common.ErrInvalidInput, key)
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()
	fs, err := New(ctx, common.StorageConfig{Backend: "local", Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, fs)

	_, err = New(ctx, common.StorageConfig{Backend: "tape"}, nil)
	assert.Error(t, err)

	_, err = NewLocalStore("", nil)
	assert.Error(t, err)
}
