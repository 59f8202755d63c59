package memory

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
)

// Embedder maps text to a fixed-dimension vector. Entries added under one
// embedding space are only comparable to queries in the same space, so a
// run keeps a single embedder for its lifetime.
type Embedder interface {
	Embed(text string) []float64
}

// VectorEntry is one stored text with its embedding.
type VectorEntry struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Embedding []float64 `json:"-"`
}

// SearchHit is a retrieval result with its similarity score.
type SearchHit struct {
	Entry VectorEntry `json:"entry"`
	Score float64     `json:"score"`
}

// VectorStore is a per-run nearest-neighbor text store.
type VectorStore struct {
	embedder Embedder
	entries  map[int]VectorEntry
	nextID   int
}

// NewVectorStore creates a store over the given embedding space.
func NewVectorStore(embedder Embedder) *VectorStore {
	return &VectorStore{
		embedder: embedder,
		entries:  make(map[int]VectorEntry),
		nextID:   1,
	}
}

// Add embeds and stores text, returning the new entry's ID.
func (v *VectorStore) Add(text string) int {
	id := v.nextID
	v.nextID++
	v.entries[id] = VectorEntry{ID: id, Text: text, Embedding: v.embedder.Embed(text)}
	return id
}

// Delete removes an entry by ID.
func (v *VectorStore) Delete(id int) error {
	if _, ok := v.entries[id]; !ok {
		return fmt.Errorf("vector entry %d: %w", id, ErrNotFound)
	}
	delete(v.entries, id)
	return nil
}

// Search returns the k entries nearest to query by cosine similarity.
func (v *VectorStore) Search(query string, k int) []SearchHit {
	if k <= 0 || len(v.entries) == 0 {
		return nil
	}
	q := v.embedder.Embed(query)

	hits := make([]SearchHit, 0, len(v.entries))
	for _, e := range v.entries {
		hits = append(hits, SearchHit{Entry: e, Score: cosine(q, e.Embedding)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Entry.ID < hits[j].Entry.ID
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

// Len returns the number of stored entries.
func (v *VectorStore) Len() int {
	return len(v.entries)
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// HashEmbedder is a deterministic local embedding space: hashed
// bag-of-words over a fixed dimension. It needs no network access, which
// keeps seeded runs reproducible and tests offline.
type HashEmbedder struct {
	Dim int
}

// NewHashEmbedder creates a hash embedder with a 256-dim space.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Dim: 256}
}

// Embed implements Embedder.
func (h *HashEmbedder) Embed(text string) []float64 {
	vec := make([]float64, h.Dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]")
		if word == "" {
			continue
		}
		hash := fnv.New32a()
		hash.Write([]byte(word))
		vec[int(hash.Sum32())%h.Dim] += 1
	}
	return vec
}
