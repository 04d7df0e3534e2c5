package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"wiki-comic-web/internal/config"
	"wiki-comic-web/internal/domain"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

const recordContentType = "application/json"

// RemoteStore は remote-io 経由で GCS（またはローカルファイルシステム）へ
// レコードを保存する StageStore 実装です。読み取りは TTL キャッシュを経由します。
type RemoteStore struct {
	cfg    *config.Config
	reader remoteio.InputReader
	writer remoteio.OutputWriter
	cache  *cache.Cache
	locks  *keyLocks
}

var _ StageStore = (*RemoteStore)(nil)

// NewRemoteStore は設定と I/O コンポーネントから RemoteStore を生成します。
func NewRemoteStore(cfg *config.Config, reader remoteio.InputReader, writer remoteio.OutputWriter) *RemoteStore {
	return &RemoteStore{
		cfg:    cfg,
		reader: reader,
		writer: writer,
		cache:  cache.New(config.DefaultRecordCacheTTL, config.DefaultRecordCacheCleanup),
		locks:  newKeyLocks(),
	}
}

// recordURL はレコード JSON の保存先フルパスを組み立てます。
// 例: gs://bucket/comics/en/Albert_Einstein/stages/story/ab12cd34ef56a7b8.json
func (s *RemoteStore) recordURL(topic domain.Topic, stage domain.Stage, fingerprint string) string {
	rel := path.Join(s.cfg.TopicDir(topic.Key()), "stages", string(stage), fingerprint+".json")
	return s.cfg.GetObjectURL(rel)
}

// Put はレコードを書き込み、キャッシュを更新します。
func (s *RemoteStore) Put(ctx context.Context, rec domain.StageRecord) error {
	key := recordKey(rec.Topic, rec.Stage, rec.Fingerprint)
	l := s.locks.lockFor(key)
	l.Lock()
	defer l.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stage record: %w", err)
	}

	url := s.recordURL(rec.Topic, rec.Stage, rec.Fingerprint)
	if err := s.writer.Write(ctx, url, bytes.NewReader(data), recordContentType); err != nil {
		return fmt.Errorf("failed to write stage record to %s: %w: %w", url, domain.ErrStoreUnavailable, err)
	}

	s.cache.Set(key, rec, cache.DefaultExpiration)
	return nil
}

// Get はキャッシュ、続いて永続媒体からレコードを探します。
func (s *RemoteStore) Get(ctx context.Context, topic domain.Topic, stage domain.Stage, fingerprint string) (domain.StageRecord, bool, error) {
	key := recordKey(topic, stage, fingerprint)
	if v, ok := s.cache.Get(key); ok {
		return v.(domain.StageRecord), true, nil
	}

	url := s.recordURL(topic, stage, fingerprint)
	rc, err := s.reader.Open(ctx, url)
	if err != nil {
		if isNotExist(err) {
			return domain.StageRecord{}, false, nil
		}
		return domain.StageRecord{}, false, fmt.Errorf("failed to open stage record %s: %w: %w", url, domain.ErrStoreUnavailable, err)
	}
	defer rc.Close()

	var rec domain.StageRecord
	if err := json.NewDecoder(rc).Decode(&rec); err != nil {
		return domain.StageRecord{}, false, fmt.Errorf("failed to decode stage record %s: %w: %w", url, domain.ErrStoreUnavailable, err)
	}

	s.cache.Set(key, rec, cache.DefaultExpiration)
	return rec, true, nil
}

// List はトピック配下の stages/ ディレクトリを走査して全レコードを返します。
func (s *RemoteStore) List(ctx context.Context, topic domain.Topic) ([]domain.StageRecord, error) {
	prefix := s.cfg.GetObjectURL(path.Join(s.cfg.TopicDir(topic.Key()), "stages"))

	var paths []string
	err := s.reader.List(ctx, prefix, func(objPath string) error {
		if strings.HasSuffix(objPath, ".json") {
			paths = append(paths, objPath)
		}
		return nil
	})
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list stage records under %s: %w: %w", prefix, domain.ErrStoreUnavailable, err)
	}

	recs := make([]domain.StageRecord, 0, len(paths))
	for _, p := range paths {
		rec, err := s.readRecord(ctx, p)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	sortRecords(recs)
	return recs, nil
}

func (s *RemoteStore) readRecord(ctx context.Context, url string) (domain.StageRecord, error) {
	rc, err := s.reader.Open(ctx, url)
	if err != nil {
		return domain.StageRecord{}, fmt.Errorf("failed to open stage record %s: %w: %w", url, domain.ErrStoreUnavailable, err)
	}
	defer rc.Close()

	var rec domain.StageRecord
	if err := json.NewDecoder(rc).Decode(&rec); err != nil {
		return domain.StageRecord{}, fmt.Errorf("failed to decode stage record %s: %w: %w", url, domain.ErrStoreUnavailable, err)
	}
	return rec, nil
}

// WriteObject はバイナリ成果物をトピック配下へ書き込みます。
func (s *RemoteStore) WriteObject(ctx context.Context, topic domain.Topic, relPath string, data []byte, contentType string) (string, error) {
	url := s.cfg.GetObjectURL(path.Join(s.cfg.TopicDir(topic.Key()), relPath))
	if err := s.writer.Write(ctx, url, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("failed to write object %s: %w: %w", url, domain.ErrStoreUnavailable, err)
	}
	return url, nil
}

// isNotExist は「存在しない」ことを示すエラーかを判定します。ローカル実行では
// os.ErrNotExist に包まれ、GCS ではオブジェクト不在のメッセージが返ります。
func isNotExist(err error) bool {
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "object doesn't exist") ||
		strings.Contains(msg, "no such file") ||
		strings.Contains(msg, "not found")
}
