// Package memory provides the three auxiliary stores the agent uses to
// externalize state under a bounded context window: a scratchpad blob, a
// key-value map, and an embedding-backed vector store. All stores belong
// to exactly one simulation run.
package memory

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// WriteMode selects scratchpad write behavior.
type WriteMode string

const (
	ModeAppend    WriteMode = "append"
	ModeOverwrite WriteMode = "overwrite"
)

// Scratchpad is a single mutable text blob.
type Scratchpad struct {
	text string
}

// Write appends or overwrites the blob. Append is the default mode.
func (s *Scratchpad) Write(text string, mode WriteMode) {
	switch mode {
	case ModeOverwrite:
		s.text = text
	default:
		if s.text != "" {
			s.text += "\n"
		}
		s.text += text
	}
}

// Read returns the full current blob.
func (s *Scratchpad) Read() string {
	return s.text
}

// Clear empties the blob. Irreversible.
func (s *Scratchpad) Clear() {
	s.text = ""
}

// KV is a per-run key-value store.
type KV struct {
	entries map[string]string
}

// NewKV creates an empty key-value store.
func NewKV() *KV {
	return &KV{entries: make(map[string]string)}
}

// Set stores value under key, overwriting any prior value.
func (k *KV) Set(key, value string) {
	k.entries[key] = value
}

// Get returns the value for key, or ErrNotFound.
func (k *KV) Get(key string) (string, error) {
	v, ok := k.entries[key]
	if !ok {
		return "", fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	return v, nil
}

// Delete removes key. Deleting a missing key is a no-op.
func (k *KV) Delete(key string) {
	delete(k.entries, key)
}

// Len returns the number of stored entries.
func (k *KV) Len() int {
	return len(k.entries)
}
