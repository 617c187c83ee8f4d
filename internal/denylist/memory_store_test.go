package denylist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAddr  = "0x1111111111111111111111111111111111111111"
	otherAddr = "0x2222222222222222222222222222222222222222"
)

func TestMemoryStore_AddAndLookup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.Add(ctx, &Entry{Address: testAddr, Tag: TagKnownBadAddress, Source: "chainabuse"})
	require.NoError(t, err)

	entries, err := store.Lookup(ctx, testAddr)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, TagKnownBadAddress, entries[0].Tag)
	assert.Equal(t, "chainabuse", entries[0].Source)
	assert.False(t, entries[0].AddedAt.IsZero())
}

func TestMemoryStore_LookupIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	mixed := "0xAbCdEF1111111111111111111111111111111111"
	require.NoError(t, store.Add(ctx, &Entry{Address: mixed, Tag: TagKnownBadContract, Source: "manual"}))

	entries, err := store.Lookup(ctx, "0xabcdef1111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMemoryStore_LookupMiss(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Lookup(context.Background(), testAddr)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_MultipleSources(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Add(ctx, &Entry{Address: testAddr, Tag: TagKnownBadAddress, Source: "chainabuse"}))
	require.NoError(t, store.Add(ctx, &Entry{Address: testAddr, Tag: TagKnownBadContract, Source: "scamsniffer"}))

	entries, err := store.Lookup(ctx, testAddr)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMemoryStore_AddReplacesSameSource(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Add(ctx, &Entry{Address: testAddr, Tag: TagKnownBadAddress, Source: "manual"}))
	require.NoError(t, store.Add(ctx, &Entry{Address: testAddr, Tag: TagKnownBadContract, Source: "manual", Note: "updated"}))

	entries, err := store.Lookup(ctx, testAddr)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, TagKnownBadContract, entries[0].Tag)
	assert.Equal(t, "updated", entries[0].Note)
}

func TestMemoryStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Add(ctx, &Entry{Address: testAddr, Tag: TagKnownBadAddress, Source: "manual"}))

	require.NoError(t, store.Remove(ctx, testAddr, "manual"))
	_, err := store.Lookup(ctx, testAddr)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Remove(ctx, testAddr, "manual"), ErrNotFound)
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Add(ctx, &Entry{Address: otherAddr, Tag: TagKnownBadAddress, Source: "manual"}))
	require.NoError(t, store.Add(ctx, &Entry{Address: testAddr, Tag: TagKnownBadAddress, Source: "manual"}))

	all, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, testAddr, all[0].Address) // sorted by address

	page, err := store.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, otherAddr, page[0].Address)
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.Add(ctx, &Entry{Address: "not-an-address", Tag: TagKnownBadAddress, Source: "manual"})
	assert.ErrorIs(t, err, ErrInvalidAddress)

	err = store.Add(ctx, &Entry{Address: testAddr, Tag: "bogus", Source: "manual"})
	assert.ErrorIs(t, err, ErrInvalidTag)
}
