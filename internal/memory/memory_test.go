package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScratchpadRoundTrip(t *testing.T) {
	var s Scratchpad
	assert.Empty(t, s.Read())

	s.Write("day 1: ordered cola", ModeAppend)
	s.Write("day 2: restocked", ModeAppend)
	assert.Equal(t, "day 1: ordered cola\nday 2: restocked", s.Read())

	s.Write("fresh plan", ModeOverwrite)
	assert.Equal(t, "fresh plan", s.Read())

	// Unknown modes behave as append.
	s.Write("addendum", WriteMode("bogus"))
	assert.Equal(t, "fresh plan\naddendum", s.Read())

	s.Clear()
	assert.Empty(t, s.Read())
}

func TestKVLastWriteWins(t *testing.T) {
	kv := NewKV()
	kv.Set("supplier", "acme@example.com")
	kv.Set("supplier", "globex@example.com")

	v, err := kv.Get("supplier")
	require.NoError(t, err)
	assert.Equal(t, "globex@example.com", v)
	assert.Equal(t, 1, kv.Len())
}

func TestKVGetAfterDelete(t *testing.T) {
	kv := NewKV()
	kv.Set("price.cola", "2.00")
	kv.Delete("price.cola")

	_, err := kv.Get("price.cola")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is a no-op.
	kv.Delete("never-set")
	_, err = kv.Get("never-set")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVectorStoreSearch(t *testing.T) {
	v := NewVectorStore(NewHashEmbedder())
	colaID := v.Add("cola supplier quoted 85 cents per can")
	v.Add("machine slot 2-1 holds sandwiches")
	v.Add("rainy days depress foot traffic")

	hits := v.Search("what did the cola supplier quote", 2)
	require.Len(t, hits, 2)
	assert.Equal(t, colaID, hits[0].Entry.ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	// k larger than the store clamps.
	assert.Len(t, v.Search("anything", 10), 3)
}

func TestVectorStoreDelete(t *testing.T) {
	v := NewVectorStore(NewHashEmbedder())
	id := v.Add("cola supplier quoted 85 cents per can")
	v.Add("machine slot 2-1 holds sandwiches")

	require.NoError(t, v.Delete(id))
	assert.Equal(t, 1, v.Len())
	for _, h := range v.Search("cola supplier", 5) {
		assert.NotEqual(t, id, h.Entry.ID)
	}

	assert.ErrorIs(t, v.Delete(id), ErrNotFound)
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder()
	a := e.Embed("Cola supplier quote")
	b := e.Embed("cola supplier quote!")
	assert.Equal(t, a, b, "case and trailing punctuation should not change the embedding")
	assert.Len(t, a, e.Dim)
}
