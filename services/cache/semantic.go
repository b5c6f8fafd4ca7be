package cache

import (
	"container/list"
	"math"
	"sync"
)

// semanticEntry pairs a stored payload with the embedding of the prompt
// that produced it.
type semanticEntry struct {
	key       string
	embedding []float32
	payload   []byte
	element   *list.Element
}

// VectorIndex is the in-process nearest-neighbor index behind the
// semantic cache level. Entries are LRU-bounded; lookups are linear
// scans, which is adequate at the cache sizes this layer runs with.
type VectorIndex struct {
	mu      sync.Mutex
	byKey   map[string]*semanticEntry
	lruList *list.List
	maxSize int
}

// NewVectorIndex creates an index bounded to maxSize entries.
func NewVectorIndex(maxSize int) *VectorIndex {
	return &VectorIndex{
		byKey:   make(map[string]*semanticEntry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Add stores a payload under its exact-level key. Re-adding the same key
// overwrites the previous entry rather than duplicating it.
func (i *VectorIndex) Add(key string, embedding []float32, payload []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if entry, exists := i.byKey[key]; exists {
		entry.embedding = embedding
		entry.payload = payload
		i.lruList.MoveToFront(entry.element)
		return
	}

	if i.maxSize > 0 && i.lruList.Len() >= i.maxSize {
		if back := i.lruList.Back(); back != nil {
			evicted := back.Value.(string)
			i.lruList.Remove(back)
			delete(i.byKey, evicted)
		}
	}

	entry := &semanticEntry{key: key, embedding: embedding, payload: payload}
	entry.element = i.lruList.PushFront(key)
	i.byKey[key] = entry
}

// Search returns the payload of the nearest stored neighbor when its
// cosine similarity meets the threshold.
func (i *VectorIndex) Search(embedding []float32, threshold float64) ([]byte, float64, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	var best *semanticEntry
	bestScore := -1.0
	for _, entry := range i.byKey {
		score := cosineSimilarity(embedding, entry.embedding)
		if score > bestScore {
			bestScore = score
			best = entry
		}
	}

	if best == nil || bestScore < threshold {
		return nil, bestScore, false
	}

	i.lruList.MoveToFront(best.element)
	return best.payload, bestScore, true
}

// Clear removes all entries.
func (i *VectorIndex) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.byKey = make(map[string]*semanticEntry)
	i.lruList.Init()
}

// Len returns the current number of entries.
func (i *VectorIndex) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lruList.Len()
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either has zero magnitude or the lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
