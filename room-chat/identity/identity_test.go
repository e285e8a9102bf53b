package identity

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*MemoryStore
}

func (failingStore) Set(string, string) error { return errors.New("disk full") }

func TestLoad(t *testing.T) {
	t.Run("falls back to guest name", func(t *testing.T) {
		store := NewMemoryStore()
		id, err := Load(store, func() string { return "Guest42" })
		require.NoError(t, err)
		assert.Equal(t, "Guest42", id.Name())

		_, ok, _ := store.Get(Key)
		assert.False(t, ok, "guest name must not be persisted")
	})

	t.Run("uses saved name", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Set(Key, "alice"))
		id, err := Load(store, func() string { return "Guest1" })
		require.NoError(t, err)
		assert.Equal(t, "alice", id.Name())
	})

	t.Run("blank saved name is ignored", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Set(Key, "  "))
		id, err := Load(store, func() string { return "Guest7" })
		require.NoError(t, err)
		assert.Equal(t, "Guest7", id.Name())
	})
}

func TestGuestName(t *testing.T) {
	for i := 0; i < 200; i++ {
		name := GuestName()
		require.True(t, strings.HasPrefix(name, "Guest"), name)
		n := strings.TrimPrefix(name, "Guest")
		require.NotEmpty(t, n)
		require.LessOrEqual(t, len(n), 3, name)
	}
}

func TestRename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain", input: "alice", want: "alice"},
		{name: "trimmed", input: "  alice  ", want: "alice"},
		{name: "markup stripped", input: "<b>bob</b>", want: "bob"},
		{name: "ampersand kept", input: "tom & jerry", want: "tom & jerry"},
		{name: "blank", input: "   ", wantErr: ErrBlankName},
		{name: "only markup", input: "<i></i>", wantErr: ErrBlankName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			id, err := Load(store, func() string { return "Guest1" })
			require.NoError(t, err)

			got, err := id.Rename(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, "Guest1", id.Name())
				_, ok, _ := store.Get(Key)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, id.Name())
			saved, ok, _ := store.Get(Key)
			require.True(t, ok)
			assert.Equal(t, tt.want, saved)
		})
	}
}

func TestRenamePersistFailureKeepsName(t *testing.T) {
	id, err := Load(failingStore{NewMemoryStore()}, func() string { return "Guest1" })
	require.NoError(t, err)

	got, err := id.Rename("alice")
	require.Error(t, err)
	assert.Equal(t, "alice", got)
	assert.Equal(t, "alice", id.Name())
}

func TestPebbleStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenPebbleStore(dir)
	require.NoError(t, err)
	_, ok, err := store.Get(Key)
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := Load(store, nil)
	require.NoError(t, err)
	_, err = id.Rename("alice")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = OpenPebbleStore(dir)
	require.NoError(t, err)
	defer store.Close()
	id, err = Load(store, func() string { return "Guest9" })
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Name())
}

func TestOpenPebbleStoreEmptyPath(t *testing.T) {
	_, err := OpenPebbleStore("")
	require.Error(t, err)
}
