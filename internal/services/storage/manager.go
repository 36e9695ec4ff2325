package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/groupkeeper-tgbot-go/internal/apperrors"
	"github.com/groupkeeper-tgbot-go/internal/config"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// OperationRecorder receives storage timings; middleware.Metrics implements it.
type OperationRecorder interface {
	RecordStorageOperation(operation, status string, duration time.Duration)
}

// ErrSkipWrite may be returned by an update mutator that left the document
// unchanged; the update then succeeds without writing.
var ErrSkipWrite = errors.New("storage: skip write")

type noopRecorder struct{}

func (noopRecorder) RecordStorageOperation(string, string, time.Duration) {}

// Manager owns every persisted document. Reads load-or-initialize, writes are
// whole-document replaces serialized per key, and every call is bounded by the
// configured operation timeout.
type Manager struct {
	backend  Backend
	locks    *keyLocks
	timeout  time.Duration
	logger   *logrus.Logger
	recorder OperationRecorder
	now      func() time.Time
}

// NewManager creates a new storage manager for the configured backend.
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	var backend Backend

	switch cfg.Storage.Type {
	case "redis":
		redisStorage, err := NewRedisStorage(&cfg.Storage.Redis, logger)
		if err != nil {
			return nil, err
		}
		backend = redisStorage
	case "memory":
		backend = NewMemoryStorage(&cfg.Storage.Memory, logger)
	case "sqlite":
		sqliteStorage, err := OpenSQLite(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		backend = sqliteStorage
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	return NewManagerWithBackend(backend, cfg.Storage.OperationTimeout, logger), nil
}

// NewManagerWithBackend wraps an already constructed backend.
func NewManagerWithBackend(backend Backend, timeout time.Duration, logger *logrus.Logger) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{
		backend:  backend,
		locks:    newKeyLocks(),
		timeout:  timeout,
		logger:   logger,
		recorder: noopRecorder{},
		now:      time.Now,
	}
}

// SetRecorder installs a metrics sink for storage operations.
func (m *Manager) SetRecorder(r OperationRecorder) {
	if r == nil {
		r = noopRecorder{}
	}
	m.recorder = r
}

func (m *Manager) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return wrapErr("ping", m.backend.Ping(ctx))
}

func (m *Manager) Close() error {
	return m.backend.Close()
}

// begin bounds ctx by the operation timeout and returns a finisher that
// records the outcome and normalizes the error.
func (m *Manager) begin(ctx context.Context, op string) (context.Context, func(error) error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	start := time.Now()
	return ctx, func(err error) error {
		cancel()
		err = wrapErr(op, err)
		status := "success"
		switch {
		case err == nil:
		case apperrors.IsCorrupt(err):
			status = "corrupt"
			m.logger.WithError(err).WithField("op", op).Error("Corrupt document in storage")
		case apperrors.IsStorage(err):
			status = "error"
		case apperrors.IsNotFound(err):
			status = "not_found"
		default:
			status = "rejected"
		}
		m.recorder.RecordStorageOperation(op, status, time.Since(start))
		return err
	}
}

// wrapErr turns raw backend failures into StorageError and leaves the
// taxonomy errors untouched.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsNotFound(err) || apperrors.IsCorrupt(err) || apperrors.IsStorage(err) {
		return err
	}
	if _, ok := apperrors.IsValidation(err); ok {
		return err
	}
	return &apperrors.StorageError{Op: op, Err: err}
}

func (m *Manager) lock(ctx context.Context, key DocKey) (func(), error) {
	unlock, err := m.locks.Lock(ctx, key.String())
	if err != nil {
		m.logger.WithField("key", key.String()).Warn("Timed out waiting for document lock")
		return nil, &apperrors.StorageError{Op: "lock " + key.String(), Err: err}
	}
	return unlock, nil
}

func decode[T any](key DocKey, data []byte, check func(*T) error) (*T, error) {
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &apperrors.CorruptDataError{Kind: string(key.Kind), Key: key.String(), Err: err}
	}
	if check != nil {
		if err := check(&doc); err != nil {
			return nil, &apperrors.CorruptDataError{Kind: string(key.Kind), Key: key.String(), Err: err}
		}
	}
	return &doc, nil
}

// loadOrInit returns the stored document or seeds it. A lost creation race
// re-reads the winner's document instead of overwriting it.
func loadOrInit[T any](ctx context.Context, b Backend, key DocKey, seed func() *T, check func(*T) error) (*T, error) {
	data, err := b.GetDocument(ctx, key)
	if err == nil {
		return decode(key, data, check)
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	doc := seed()
	data, err = json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	created, err := b.CreateDocument(ctx, key, data)
	if err != nil {
		return nil, err
	}
	if created {
		return doc, nil
	}
	data, err = b.GetDocument(ctx, key)
	if err != nil {
		return nil, err
	}
	return decode(key, data, check)
}

func update[T any](ctx context.Context, m *Manager, key DocKey, seed func() *T, check func(*T) error, mutate func(*T) error) (*T, error) {
	unlock, err := m.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := loadOrInit(ctx, m.backend, key, seed, check)
	if err != nil {
		return nil, err
	}
	if err := mutate(doc); err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return doc, nil
		}
		return nil, err
	}
	if err := put(ctx, m.backend, key, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func put[T any](ctx context.Context, b Backend, key DocKey, doc *T) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.PutDocument(ctx, key, data)
}

func checkChat(s *models.ChatSettings) error {
	s.Normalize()
	return nil
}

func checkUser(*models.UserSettings) error { return nil }

func checkRank(r *models.UserRank) error {
	switch {
	case r.Level < 1:
		return fmt.Errorf("level %d below 1", r.Level)
	case r.XP < 0:
		return fmt.Errorf("negative xp %d", r.XP)
	case r.MessagesCount < 0 || r.DailyStreak < 0 || r.Prestige < 0:
		return fmt.Errorf("negative counter")
	}
	return nil
}

// Chat settings

func (m *Manager) GetChatSettings(ctx context.Context, chatID int64) (s *models.ChatSettings, err error) {
	ctx, done := m.begin(ctx, "get_chat_settings")
	defer func() { err = done(err) }()
	return loadOrInit(ctx, m.backend, chatKey(chatID), func() *models.ChatSettings {
		return models.DefaultChatSettings(chatID)
	}, checkChat)
}

// UpdateChatSettings applies mutate to the current document and stores the
// result. A mutate error aborts without writing.
func (m *Manager) UpdateChatSettings(ctx context.Context, chatID int64, mutate func(*models.ChatSettings) error) (s *models.ChatSettings, err error) {
	ctx, done := m.begin(ctx, "update_chat_settings")
	defer func() { err = done(err) }()
	return update(ctx, m, chatKey(chatID), func() *models.ChatSettings {
		return models.DefaultChatSettings(chatID)
	}, checkChat, func(s *models.ChatSettings) error {
		if err := mutate(s); err != nil {
			return err
		}
		s.ChatID = chatID
		s.Normalize()
		return nil
	})
}

// PutChatSettings replaces the whole chat document.
func (m *Manager) PutChatSettings(ctx context.Context, s *models.ChatSettings) (err error) {
	ctx, done := m.begin(ctx, "put_chat_settings")
	defer func() { err = done(err) }()
	key := chatKey(s.ChatID)
	unlock, err := m.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	doc := s.Clone()
	doc.Normalize()
	return put(ctx, m.backend, key, doc)
}

// User settings

func (m *Manager) GetUserSettings(ctx context.Context, userID int64) (s *models.UserSettings, err error) {
	ctx, done := m.begin(ctx, "get_user_settings")
	defer func() { err = done(err) }()
	return loadOrInit(ctx, m.backend, userKey(userID), func() *models.UserSettings {
		return models.DefaultUserSettings(userID)
	}, checkUser)
}

func (m *Manager) UpdateUserSettings(ctx context.Context, userID int64, mutate func(*models.UserSettings) error) (s *models.UserSettings, err error) {
	ctx, done := m.begin(ctx, "update_user_settings")
	defer func() { err = done(err) }()
	return update(ctx, m, userKey(userID), func() *models.UserSettings {
		return models.DefaultUserSettings(userID)
	}, checkUser, func(s *models.UserSettings) error {
		if err := mutate(s); err != nil {
			return err
		}
		s.UserID = userID
		return nil
	})
}

// Ranks

func (m *Manager) GetUserRank(ctx context.Context, chatID, userID int64) (r *models.UserRank, err error) {
	ctx, done := m.begin(ctx, "get_user_rank")
	defer func() { err = done(err) }()
	return loadOrInit(ctx, m.backend, rankKey(chatID, userID), func() *models.UserRank {
		return models.DefaultUserRank(chatID, userID)
	}, checkRank)
}

// UpdateUserRank runs mutate under the (chat, user) lock; concurrent awards
// to the same pair are applied one after another.
func (m *Manager) UpdateUserRank(ctx context.Context, chatID, userID int64, mutate func(*models.UserRank) error) (r *models.UserRank, err error) {
	ctx, done := m.begin(ctx, "update_user_rank")
	defer func() { err = done(err) }()
	return update(ctx, m, rankKey(chatID, userID), func() *models.UserRank {
		return models.DefaultUserRank(chatID, userID)
	}, checkRank, func(r *models.UserRank) error {
		if err := mutate(r); err != nil {
			return err
		}
		r.ChatID, r.UserID = chatID, userID
		if err := checkRank(r); err != nil {
			return apperrors.Invalid("rank", err.Error())
		}
		return nil
	})
}

func (m *Manager) PutUserRank(ctx context.Context, r *models.UserRank) (err error) {
	ctx, done := m.begin(ctx, "put_user_rank")
	defer func() { err = done(err) }()
	if err := checkRank(r); err != nil {
		return apperrors.Invalid("rank", err.Error())
	}
	key := rankKey(r.ChatID, r.UserID)
	unlock, err := m.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return put(ctx, m.backend, key, r)
}

// ListChatRanks returns every rank document stored for a chat, unordered.
func (m *Manager) ListChatRanks(ctx context.Context, chatID int64) (ranks []models.UserRank, err error) {
	ctx, done := m.begin(ctx, "list_chat_ranks")
	defer func() { err = done(err) }()
	scope := strconv.FormatInt(chatID, 10)
	raw, err := m.backend.ListDocuments(ctx, KindRank, scope)
	if err != nil {
		return nil, err
	}
	ranks = make([]models.UserRank, 0, len(raw))
	for _, data := range raw {
		r, err := decode(DocKey{Kind: KindRank, Scope: scope, ID: "*"}, data, checkRank)
		if err != nil {
			return nil, err
		}
		ranks = append(ranks, *r)
	}
	return ranks, nil
}

// CountChats reports how many chat documents exist.
func (m *Manager) CountChats(ctx context.Context) (n int, err error) {
	ctx, done := m.begin(ctx, "count_chats")
	defer func() { err = done(err) }()
	return m.backend.CountDocuments(ctx, KindChat)
}

// CountUsers reports how many user documents exist.
func (m *Manager) CountUsers(ctx context.Context) (n int, err error) {
	ctx, done := m.begin(ctx, "count_users")
	defer func() { err = done(err) }()
	return m.backend.CountDocuments(ctx, KindUser)
}

// Warnings

func (m *Manager) AddWarning(ctx context.Context, chatID, userID int64, reason string, warnedBy int64) (w *models.Warning, err error) {
	ctx, done := m.begin(ctx, "add_warning")
	defer func() { err = done(err) }()
	w = &models.Warning{
		ChatID:    chatID,
		UserID:    userID,
		Reason:    reason,
		WarnedBy:  warnedBy,
		CreatedAt: m.now().UTC(),
	}
	id, err := m.backend.AppendWarning(ctx, w)
	if err != nil {
		return nil, err
	}
	w.ID = id
	return w, nil
}

func (m *Manager) ListWarnings(ctx context.Context, chatID, userID int64) (ws []models.Warning, err error) {
	ctx, done := m.begin(ctx, "list_warnings")
	defer func() { err = done(err) }()
	return m.backend.ListWarnings(ctx, chatID, userID)
}

func (m *Manager) CountWarnings(ctx context.Context, chatID, userID int64) (n int, err error) {
	ctx, done := m.begin(ctx, "count_warnings")
	defer func() { err = done(err) }()
	return m.backend.CountWarnings(ctx, chatID, userID)
}

func (m *Manager) ClearWarnings(ctx context.Context, chatID, userID int64) (n int, err error) {
	ctx, done := m.begin(ctx, "clear_warnings")
	defer func() { err = done(err) }()
	return m.backend.ClearWarnings(ctx, chatID, userID)
}

// GetWarning returns apperrors.ErrNotFound for unknown ids.
func (m *Manager) GetWarning(ctx context.Context, id int64) (w *models.Warning, err error) {
	ctx, done := m.begin(ctx, "get_warning")
	defer func() { err = done(err) }()
	return m.backend.GetWarning(ctx, id)
}

// Global settings

// GetGlobalSetting returns apperrors.ErrNotFound when the key was never set.
func (m *Manager) GetGlobalSetting(ctx context.Context, key string) (g *models.GlobalSetting, err error) {
	ctx, done := m.begin(ctx, "get_global_setting")
	defer func() { err = done(err) }()
	dk := globalKey(key)
	data, err := m.backend.GetDocument(ctx, dk)
	if err != nil {
		return nil, err
	}
	return decode[models.GlobalSetting](dk, data, nil)
}

func (m *Manager) SetGlobalSetting(ctx context.Context, g models.GlobalSetting) (err error) {
	ctx, done := m.begin(ctx, "set_global_setting")
	defer func() { err = done(err) }()
	if strings.TrimSpace(g.Key) == "" {
		return apperrors.Invalid("setting key", "must not be empty")
	}
	return put(ctx, m.backend, globalKey(g.Key), &g)
}

// SeedGlobalSettings stores each setting whose key is not present yet and
// reports how many were written.
func (m *Manager) SeedGlobalSettings(ctx context.Context, defaults []models.GlobalSetting) (n int, err error) {
	ctx, done := m.begin(ctx, "seed_global_settings")
	defer func() { err = done(err) }()
	for i := range defaults {
		g := defaults[i]
		data, err := json.Marshal(&g)
		if err != nil {
			return n, fmt.Errorf("encode global %s: %w", g.Key, err)
		}
		created, err := m.backend.CreateDocument(ctx, globalKey(g.Key), data)
		if err != nil {
			return n, err
		}
		if created {
			n++
		}
	}
	return n, nil
}

// GlobalInt reads an integer global setting, returning fallback when absent.
// A stored value that is not an integer is a CorruptDataError.
func (m *Manager) GlobalInt(ctx context.Context, key string, fallback int) (int, error) {
	g, err := m.GetGlobalSetting(ctx, key)
	if apperrors.IsNotFound(err) {
		return fallback, nil
	}
	if err != nil {
		return 0, err
	}
	corrupt := func(err error) error {
		dk := globalKey(key)
		return &apperrors.CorruptDataError{Kind: string(dk.Kind), Key: dk.String(), Err: err}
	}
	switch v := g.Value.(type) {
	case float64:
		if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, corrupt(fmt.Errorf("value %v is not an integer", v))
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, corrupt(err)
		}
		return n, nil
	}
	return 0, corrupt(fmt.Errorf("value of type %T is not an integer", g.Value))
}
