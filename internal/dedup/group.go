package dedup

import (
	"fmt"

	"github.com/starford/dagaz/internal/models"
)

// Fetch loads a note by id from the collection.
type Fetch func(id int64) (*models.Note, error)

// Persist writes a note's tag changes back to the collection.
type Persist func(n *models.Note) error

// Groups maps dedup keys to the note ids sharing that key, remembering
// first-appearance key order so consumers produce deterministic output.
type Groups struct {
	keySpec string
	order   []Key
	buckets map[Key][]int64
}

// Keys returns the dedup keys in first-appearance order.
func (g *Groups) Keys() []Key {
	return g.order
}

// Bucket returns the note ids for key, in first-seen order.
func (g *Groups) Bucket(k Key) []int64 {
	return g.buckets[k]
}

// Len returns the number of distinct keys.
func (g *Groups) Len() int {
	return len(g.buckets)
}

func (g *Groups) add(k Key, id int64) {
	if _, ok := g.buckets[k]; !ok {
		g.order = append(g.order, k)
	}
	g.buckets[k] = append(g.buckets[k], id)
}

// display renders a key for trace output.
func (g *Groups) display(k Key) string {
	if g.keySpec == CombineAll {
		return "(combined keys)"
	}
	return string(k)
}

// Group fetches every note in ids (in the given order), extracts its dedup
// key, and buckets ids by key.
//
// Notes with zero cards are skipped entirely: they are orphaned in the host
// collection and must never be grouped or tagged. Notes without a usable
// key under keySpec are skipped as well. A fetch failure aborts the whole
// call; Group performs no writes, so an aborted call has no side effects.
func Group(ids []int64, fetch Fetch, keySpec string) (*Groups, error) {
	g := &Groups{
		keySpec: keySpec,
		buckets: make(map[Key][]int64),
	}

	for _, id := range ids {
		n, err := fetch(id)
		if err != nil {
			return nil, fmt.Errorf("dedup: fetch note %d: %w", id, err)
		}
		if n.Cards == 0 {
			continue
		}
		k, ok := ExtractKey(n, keySpec)
		if !ok {
			continue
		}
		g.add(k, id)
	}

	return g, nil
}
