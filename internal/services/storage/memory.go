package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/groupkeeper-tgbot-go/internal/apperrors"
	"github.com/groupkeeper-tgbot-go/internal/config"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// MemoryStorage implements Backend in process memory. Nothing survives a restart.
type MemoryStorage struct {
	documents *cache.Cache
	logger    *logrus.Logger

	mu       sync.Mutex
	seq      int64
	warnings map[string][]models.Warning // newest last
}

func NewMemoryStorage(cfg *config.MemoryConfig, logger *logrus.Logger) *MemoryStorage {
	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = cache.NoExpiration
	}
	return &MemoryStorage{
		documents: cache.New(cache.NoExpiration, cleanup),
		logger:    logger,
		warnings:  make(map[string][]models.Warning),
	}
}

func copyBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

func (m *MemoryStorage) GetDocument(ctx context.Context, key DocKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if val, found := m.documents.Get(key.String()); found {
		return copyBytes(val.([]byte)), nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *MemoryStorage) CreateDocument(ctx context.Context, key DocKey, data []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	// Add fails when the key already exists
	if err := m.documents.Add(key.String(), copyBytes(data), cache.NoExpiration); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *MemoryStorage) PutDocument(ctx context.Context, key DocKey, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.documents.Set(key.String(), copyBytes(data), cache.NoExpiration)
	return nil
}

func (m *MemoryStorage) ListDocuments(ctx context.Context, kind Kind, scope string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := DocKey{Kind: kind, Scope: scope}.String()
	var keys []string
	items := m.documents.Items()
	for k := range items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, copyBytes(items[k].Object.([]byte)))
	}
	return out, nil
}

func (m *MemoryStorage) CountDocuments(ctx context.Context, kind Kind) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	prefix := string(kind) + ":"
	n := 0
	for k := range m.documents.Items() {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n, nil
}

func warningsKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

func (m *MemoryStorage) AppendWarning(ctx context.Context, w *models.Warning) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	stored := *w
	stored.ID = m.seq
	key := warningsKey(w.ChatID, w.UserID)
	m.warnings[key] = append(m.warnings[key], stored)
	return stored.ID, nil
}

func (m *MemoryStorage) ListWarnings(ctx context.Context, chatID, userID int64) ([]models.Warning, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.warnings[warningsKey(chatID, userID)]
	out := make([]models.Warning, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (m *MemoryStorage) CountWarnings(ctx context.Context, chatID, userID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.warnings[warningsKey(chatID, userID)]), nil
}

func (m *MemoryStorage) ClearWarnings(ctx context.Context, chatID, userID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := warningsKey(chatID, userID)
	n := len(m.warnings[key])
	delete(m.warnings, key)
	return n, nil
}

func (m *MemoryStorage) GetWarning(ctx context.Context, id int64) (*models.Warning, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, list := range m.warnings {
		for _, w := range list {
			if w.ID == id {
				found := w
				return &found, nil
			}
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStorage) Close() error {
	m.documents.Flush()
	return nil
}
