// Package dataset holds the labeled embeddings collected for training.
//
// A Set is an append-only, ordered collection: the i-th embedding always
// pairs with the i-th label. It is safe for concurrent use, since frame
// callbacks append from the recognizer's dispatcher goroutine while the
// UI loop reads counts.
package dataset

import (
	"sync"
)

// Example is one embedding paired with its class label. It is never
// mutated after creation.
type Example struct {
	Embedding []float32
	Label     int
}

// Set is the ordered training set.
type Set struct {
	mu       sync.RWMutex
	examples []Example
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{}
}

// Append adds an example at the end of the set.
func (s *Set) Append(ex Example) {
	s.mu.Lock()
	s.examples = append(s.examples, ex)
	s.mu.Unlock()
}

// Len returns the number of examples.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.examples)
}

// Examples returns a snapshot of the set in insertion order. The slice is
// a copy; the embeddings are shared and must not be modified.
func (s *Set) Examples() []Example {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Example, len(s.examples))
	copy(out, s.examples)
	return out
}

// Counts returns the number of examples per label for labels in
// [0, numClasses). Labels outside that range are not counted.
func (s *Set) Counts(numClasses int) []int {
	counts := make([]int, numClasses)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ex := range s.examples {
		if ex.Label >= 0 && ex.Label < numClasses {
			counts[ex.Label]++
		}
	}
	return counts
}

// Replace swaps the contents of the set for examples.
func (s *Set) Replace(examples []Example) {
	s.mu.Lock()
	s.examples = examples
	s.mu.Unlock()
}

// Reset removes every example.
func (s *Set) Reset() {
	s.mu.Lock()
	s.examples = nil
	s.mu.Unlock()
}
