package api

import (
	"math"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultStoreCapacity bounds the number of generations kept in memory.
const DefaultStoreCapacity = 1024

// GenerationStore keeps finished generations by id and indexes them by a
// digest of (prompt, sampling config). Generation is deterministic for a
// fixed config, so a digest hit can be served without running the model.
type GenerationStore struct {
	mu       sync.Mutex
	capacity int
	byID     map[string]*storedGeneration
	byDigest map[uint64]string
	order    []string
}

type storedGeneration struct {
	gen    Generation
	digest uint64
}

func NewGenerationStore(capacity int) *GenerationStore {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	return &GenerationStore{
		capacity: capacity,
		byID:     make(map[string]*storedGeneration),
		byDigest: make(map[uint64]string),
	}
}

// Save stores gen, evicting the oldest entry once the store is full.
func (s *GenerationStore) Save(gen Generation, digest uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[gen.ID]; !ok {
		s.order = append(s.order, gen.ID)
	}
	s.byID[gen.ID] = &storedGeneration{gen: gen, digest: digest}
	s.byDigest[digest] = gen.ID

	for len(s.order) > s.capacity {
		s.removeLocked(s.order[0])
	}
}

func (s *GenerationStore) Get(id string) (Generation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return Generation{}, false
	}
	return rec.gen, true
}

// Lookup returns the stored generation for digest, if any.
func (s *GenerationStore) Lookup(digest uint64) (Generation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byDigest[digest]
	if !ok {
		return Generation{}, false
	}
	return s.byID[id].gen, true
}

func (s *GenerationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	s.removeLocked(id)
	return true
}

func (s *GenerationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *GenerationStore) removeLocked(id string) {
	rec, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	if s.byDigest[rec.digest] == id {
		delete(s.byDigest, rec.digest)
	}
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Digest hashes a prompt together with the resolved sampling settings.
func Digest(prompt string, sampling SamplingEcho) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(prompt)
	buf := make([]byte, 0, 96)
	buf = append(buf, 0)
	buf = appendOptional(buf, sampling.Temperature)
	buf = appendOptional(buf, sampling.TopP)
	buf = strconv.AppendInt(buf, sampling.Seed, 10)
	buf = append(buf, '|')
	buf = strconv.AppendUint(buf, math.Float64bits(sampling.RepeatPenalty), 16)
	buf = append(buf, '|')
	buf = strconv.AppendInt(buf, int64(sampling.RepeatWindow), 10)
	buf = append(buf, '|')
	buf = strconv.AppendInt(buf, int64(sampling.MaxNewTokens), 10)
	_, _ = d.Write(buf)
	return d.Sum64()
}

func appendOptional(buf []byte, v *float64) []byte {
	if v == nil {
		return append(buf, '-', '|')
	}
	buf = strconv.AppendUint(buf, math.Float64bits(*v), 16)
	return append(buf, '|')
}
