package storage

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/groupkeeper-tgbot-go/internal/apperrors"
	"github.com/groupkeeper-tgbot-go/internal/config"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/groupkeeper-tgbot-go/pkg/logger"
)

// setupTestRedis starts a miniredis server and returns a backend bound to it.
func setupTestRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create mini redis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedisStorageWithClient(client, "test", logger.Discard()), mr
}

func setupTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func backends(t *testing.T) map[string]func(t *testing.T) Backend {
	return map[string]func(t *testing.T) Backend{
		"memory": func(t *testing.T) Backend {
			return NewMemoryStorage(&config.MemoryConfig{}, logger.Discard())
		},
		"redis": func(t *testing.T) Backend {
			b, _ := setupTestRedis(t)
			return b
		},
		"sqlite": func(t *testing.T) Backend {
			return setupTestSQLite(t)
		},
	}
}

func TestBackendDocuments(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := mk(t)
			ctx := context.Background()
			key := DocKey{Kind: KindRank, Scope: "42", ID: "7"}

			if _, err := b.GetDocument(ctx, key); !apperrors.IsNotFound(err) {
				t.Fatalf("GetDocument on empty store: err = %v, want not found", err)
			}

			created, err := b.CreateDocument(ctx, key, []byte(`{"v":1}`))
			if err != nil || !created {
				t.Fatalf("CreateDocument = %v, %v; want true, nil", created, err)
			}
			created, err = b.CreateDocument(ctx, key, []byte(`{"v":2}`))
			if err != nil || created {
				t.Fatalf("second CreateDocument = %v, %v; want false, nil", created, err)
			}
			got, err := b.GetDocument(ctx, key)
			if err != nil {
				t.Fatalf("GetDocument: %v", err)
			}
			if string(got) != `{"v":1}` {
				t.Errorf("create must not overwrite, got %s", got)
			}

			if err := b.PutDocument(ctx, key, []byte(`{"v":3}`)); err != nil {
				t.Fatalf("PutDocument: %v", err)
			}
			got, _ = b.GetDocument(ctx, key)
			if string(got) != `{"v":3}` {
				t.Errorf("after put got %s", got)
			}

			other := DocKey{Kind: KindRank, Scope: "42", ID: "8"}
			if err := b.PutDocument(ctx, other, []byte(`{"v":4}`)); err != nil {
				t.Fatalf("PutDocument: %v", err)
			}
			if err := b.PutDocument(ctx, DocKey{Kind: KindRank, Scope: "420", ID: "1"}, []byte(`{}`)); err != nil {
				t.Fatalf("PutDocument: %v", err)
			}
			list, err := b.ListDocuments(ctx, KindRank, "42")
			if err != nil {
				t.Fatalf("ListDocuments: %v", err)
			}
			if len(list) != 2 {
				t.Errorf("ListDocuments returned %d docs, want 2", len(list))
			}
			n, err := b.CountDocuments(ctx, KindRank)
			if err != nil || n != 3 {
				t.Errorf("CountDocuments = %d, %v; want 3", n, err)
			}
		})
	}
}

func TestBackendWarnings(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := mk(t)
			ctx := context.Background()
			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

			var ids []int64
			for i, reason := range []string{"spam", "flood", "links"} {
				id, err := b.AppendWarning(ctx, &models.Warning{
					ChatID: 1, UserID: 2, Reason: reason, WarnedBy: 9,
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
				})
				if err != nil {
					t.Fatalf("AppendWarning: %v", err)
				}
				ids = append(ids, id)
			}
			if _, err := b.AppendWarning(ctx, &models.Warning{ChatID: 1, UserID: 3, Reason: "other", CreatedAt: base}); err != nil {
				t.Fatalf("AppendWarning: %v", err)
			}
			if ids[0] >= ids[1] || ids[1] >= ids[2] {
				t.Errorf("warning ids not increasing: %v", ids)
			}

			count, err := b.CountWarnings(ctx, 1, 2)
			if err != nil || count != 3 {
				t.Fatalf("CountWarnings = %d, %v; want 3", count, err)
			}

			list, err := b.ListWarnings(ctx, 1, 2)
			if err != nil {
				t.Fatalf("ListWarnings: %v", err)
			}
			if len(list) != 3 || list[0].Reason != "links" || list[2].Reason != "spam" {
				t.Errorf("ListWarnings not most-recent-first: %+v", list)
			}

			w, err := b.GetWarning(ctx, ids[1])
			if err != nil {
				t.Fatalf("GetWarning: %v", err)
			}
			if w.Reason != "flood" || !w.CreatedAt.Equal(base.Add(time.Minute)) {
				t.Errorf("GetWarning = %+v", w)
			}
			if _, err := b.GetWarning(ctx, 999); !apperrors.IsNotFound(err) {
				t.Errorf("GetWarning(999) err = %v, want not found", err)
			}

			cleared, err := b.ClearWarnings(ctx, 1, 2)
			if err != nil || cleared != 3 {
				t.Fatalf("ClearWarnings = %d, %v; want 3", cleared, err)
			}
			if count, _ := b.CountWarnings(ctx, 1, 2); count != 0 {
				t.Errorf("count after clear = %d", count)
			}
			if count, _ := b.CountWarnings(ctx, 1, 3); count != 1 {
				t.Errorf("clear touched another user, count = %d", count)
			}
			list, err = b.ListWarnings(ctx, 1, 2)
			if err != nil || len(list) != 0 {
				t.Errorf("ListWarnings after clear = %v, %v", list, err)
			}
		})
	}
}

func TestRedisCreateDocumentIndexes(t *testing.T) {
	b, mr := setupTestRedis(t)
	ctx := context.Background()
	key := DocKey{Kind: KindRank, Scope: "7", ID: "42"}

	tests := []struct {
		data        string
		wantCreated bool
	}{
		{`{"level":1}`, true},
		{`{"level":9}`, false},
	}
	for _, tt := range tests {
		created, err := b.CreateDocument(ctx, key, []byte(tt.data))
		if err != nil || created != tt.wantCreated {
			t.Fatalf("CreateDocument(%s) = %v, %v; want %v", tt.data, created, err, tt.wantCreated)
		}
	}

	if got, _ := mr.Get(b.docKey(key)); got != `{"level":1}` {
		t.Errorf("stored document = %s, want the first write", got)
	}
	if ok, _ := mr.SIsMember(b.scopeIndex(KindRank, "7"), "42"); !ok {
		t.Error("document missing from scope index")
	}
	if ok, _ := mr.SIsMember(b.kindIndex(KindRank), key.String()); !ok {
		t.Error("document missing from kind index")
	}
	docs, err := b.ListDocuments(ctx, KindRank, "7")
	if err != nil || len(docs) != 1 {
		t.Errorf("ListDocuments = %d docs, %v", len(docs), err)
	}
}

func TestRedisClearWarningsLeavesNoOrphans(t *testing.T) {
	b, mr := setupTestRedis(t)
	ctx := context.Background()
	const appends = 200

	var cleared int64
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < appends; i++ {
			if _, err := b.AppendWarning(ctx, &models.Warning{ChatID: 1, UserID: 2, Reason: "spam"}); err != nil {
				t.Errorf("AppendWarning: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < appends/4; i++ {
			n, err := b.ClearWarnings(ctx, 1, 2)
			if err != nil {
				t.Errorf("ClearWarnings: %v", err)
				return
			}
			atomic.AddInt64(&cleared, int64(n))
		}
	}()
	wg.Wait()

	remaining, err := b.CountWarnings(ctx, 1, 2)
	if err != nil {
		t.Fatalf("CountWarnings: %v", err)
	}
	if got := int(cleared) + remaining; got != appends {
		t.Errorf("cleared %d + remaining %d = %d, want %d", cleared, remaining, got, appends)
	}

	records := 0
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "test:warning:") && k != "test:warning:seq" {
			records++
		}
	}
	if records != remaining {
		t.Errorf("%d warning records stored, %d still listed", records, remaining)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bot.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.PutDocument(ctx, chatKey(5), []byte(`{"chat_id":5}`)); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}
	s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.GetDocument(ctx, chatKey(5))
	if err != nil || string(got) != `{"chat_id":5}` {
		t.Errorf("GetDocument after reopen = %s, %v", got, err)
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
