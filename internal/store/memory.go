package store

import (
	"context"
	"path"
	"sync"

	"wiki-comic-web/internal/domain"
)

// MemoryStore はプロセス内メモリのみで動作する StageStore 実装です。
// テストおよび永続化を要しない単発実行向けです。
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.StageRecord
	objects map[string][]byte
}

var _ StageStore = (*MemoryStore)(nil)

// NewMemoryStore は空の MemoryStore を生成します。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]domain.StageRecord),
		objects: make(map[string][]byte),
	}
}

func (s *MemoryStore) Put(_ context.Context, rec domain.StageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(rec.Topic, rec.Stage, rec.Fingerprint)] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, topic domain.Topic, stage domain.Stage, fingerprint string) (domain.StageRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordKey(topic, stage, fingerprint)]
	return rec, ok, nil
}

func (s *MemoryStore) List(_ context.Context, topic domain.Topic) ([]domain.StageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []domain.StageRecord
	for _, rec := range s.records {
		if rec.Topic == topic {
			recs = append(recs, rec)
		}
	}
	sortRecords(recs)
	return recs, nil
}

func (s *MemoryStore) WriteObject(_ context.Context, topic domain.Topic, relPath string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := path.Join(topic.Key(), relPath)
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[p] = buf
	return p, nil
}

// Object はテスト検証用に保存済みオブジェクトを返します。
func (s *MemoryStore) Object(p string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[p]
	return data, ok
}

// RecordCount はテスト検証用に保存済みレコード数を返します。
func (s *MemoryStore) RecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
