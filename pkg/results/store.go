package results

import (
	"sort"
	"sync"
)

// Store holds page load times in milliseconds per renderer kind, keyed by normalized URL.
// Samples are only ever added during a run; a later sample for the same page replaces
// the earlier one.
type Store struct {
	mu      sync.RWMutex
	samples map[Kind]map[string]int64
}

func NewStore() *Store {
	return &Store{
		samples: make(map[Kind]map[string]int64, 2),
	}
}

func (s *Store) Record(sample Sample) {
	s.Put(sample.Kind, sample.URL, sample.Millis())
}

// Put stores a raw measurement in milliseconds.
func (s *Store) Put(kind Kind, url string, millis int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byURL, ok := s.samples[kind]
	if !ok {
		byURL = make(map[string]int64)
		s.samples[kind] = byURL
	}
	byURL[url] = millis
}

func (s *Store) Lookup(kind Kind, url string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.samples[kind][url]
	return value, ok
}

// Samples returns a copy of all measurements for the given kind.
func (s *Store) Samples(kind Kind) map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]int64, len(s.samples[kind]))
	for url, value := range s.samples[kind] {
		result[url] = value
	}

	return result
}

func (s *Store) Len(kind Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.samples[kind])
}

// URLs returns the measured pages for the given kind, sorted.
func (s *Store) URLs(kind Kind) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0, len(s.samples[kind]))
	for url := range s.samples[kind] {
		result = append(result, url)
	}
	sort.Strings(result)

	return result
}

// Total sums all positive measurements of the given kind.
func (s *Store) Total(kind Kind) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, value := range s.samples[kind] {
		if value > 0 {
			total += value
		}
	}

	return total
}
