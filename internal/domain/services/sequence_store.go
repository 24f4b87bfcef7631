package services

import "sync"

// SequenceStore 按名称递增的计数器，线程安全
type SequenceStore struct {
	mu        sync.Mutex
	sequences map[string]int64
}

func NewSequenceStore() *SequenceStore {
	return &SequenceStore{sequences: make(map[string]int64)}
}

// Next 返回当前值后递增，首次使用从 start 开始
func (s *SequenceStore) Next(name string, start int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sequences[name]; !ok {
		s.sequences[name] = start
	}
	val := s.sequences[name]
	s.sequences[name]++
	return val
}
