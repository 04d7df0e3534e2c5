// Package store はステージ成果物の永続化層です。レコードは
// (topic, stage, fingerprint) の完全一致でのみ参照され、書き込みは
// プロセス再起動後も残る媒体へ行われます。
package store

import (
	"context"
	"path"
	"sync"

	"wiki-comic-web/internal/domain"
)

// StageStore はパイプラインのステージレコードを保存・参照する契約です。
type StageStore interface {
	// Put はレコードをキー (topic, stage, fingerprint) へ書き込みます。
	// 既存レコードがある場合は明示的な上書きとなります。同一キーへの
	// 書き込みは直列化され、中途半端な状態のレコードは残りません。
	Put(ctx context.Context, rec domain.StageRecord) error

	// Get はキーに完全一致するレコードを返します。存在しない場合は
	// ok=false を返し、媒体へ到達できない場合のみ error を返します。
	Get(ctx context.Context, topic domain.Topic, stage domain.Stage, fingerprint string) (domain.StageRecord, bool, error)

	// List はトピック配下の全レコードをパイプライン順で返します。
	List(ctx context.Context, topic domain.Topic) ([]domain.StageRecord, error)

	// WriteObject はレコード本体とは別のバイナリ成果物（画像など）を
	// トピック配下の相対パスへ書き込み、保存先のフルパスを返します。
	WriteObject(ctx context.Context, topic domain.Topic, relPath string, data []byte, contentType string) (string, error)
}

// recordKey はキャッシュとロックの共有キー表現です。
func recordKey(topic domain.Topic, stage domain.Stage, fingerprint string) string {
	return path.Join(topic.Key(), string(stage), fingerprint)
}

// keyLocks は (topic, stage, fingerprint) 単位の書き込み直列化を提供します。
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyLocks) lockFor(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}

// sortRecords はレコード列をパイプライン順、同一ステージ内では作成時刻順に
// 並べ替えます。
func sortRecords(recs []domain.StageRecord) {
	order := make(map[domain.Stage]int, len(domain.StageOrder))
	for i, s := range domain.StageOrder {
		order[s] = i
	}
	// 挿入ソートで十分な件数しか扱いません。
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0; j-- {
			a, b := recs[j-1], recs[j]
			if order[a.Stage] > order[b.Stage] ||
				(order[a.Stage] == order[b.Stage] && a.CreatedAt.After(b.CreatedAt)) {
				recs[j-1], recs[j] = b, a
				continue
			}
			break
		}
	}
}
