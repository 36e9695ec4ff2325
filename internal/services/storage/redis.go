package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/groupkeeper-tgbot-go/internal/apperrors"
	"github.com/groupkeeper-tgbot-go/internal/config"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// createScript stores a document only if absent and indexes it in the same step.
var createScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("SADD", KEYS[2], ARGV[2])
redis.call("SADD", KEYS[3], ARGV[3])
return 1
`)

// clearScript drops a warning list and every record it references.
// ARGV[1] is the warning key prefix.
var clearScript = redis.NewScript(`
local ids = redis.call("LRANGE", KEYS[1], 0, -1)
for _, id in ipairs(ids) do
	redis.call("DEL", ARGV[1] .. id)
end
redis.call("DEL", KEYS[1])
return #ids
`)

// RedisStorage implements Backend on Redis.
//
//	<prefix>:doc:<key>                 encoded document
//	<prefix>:idx:<kind>:<scope>        set of ids in a scope
//	<prefix>:kind:<kind>               set of full keys of a kind
//	<prefix>:warning:seq               warning id counter
//	<prefix>:warning:<id>              encoded warning
//	<prefix>:warnings:<chat>:<user>    list of warning ids, newest first
type RedisStorage struct {
	client *redis.Client
	prefix string
	logger *logrus.Logger
}

func NewRedisStorage(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStorageWithClient(client, cfg.KeyPrefix, logger), nil
}

// NewRedisStorageWithClient wraps an existing client.
func NewRedisStorageWithClient(client *redis.Client, prefix string, logger *logrus.Logger) *RedisStorage {
	if prefix == "" {
		prefix = "gk"
	}
	return &RedisStorage{client: client, prefix: prefix, logger: logger}
}

// Client exposes the underlying connection.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

func (r *RedisStorage) docKey(key DocKey) string {
	return fmt.Sprintf("%s:doc:%s", r.prefix, key)
}

func (r *RedisStorage) scopeIndex(kind Kind, scope string) string {
	return fmt.Sprintf("%s:idx:%s:%s", r.prefix, kind, scope)
}

func (r *RedisStorage) kindIndex(kind Kind) string {
	return fmt.Sprintf("%s:kind:%s", r.prefix, kind)
}

func (r *RedisStorage) warningKey(id int64) string {
	return fmt.Sprintf("%s:warning:%d", r.prefix, id)
}

func (r *RedisStorage) warningList(chatID, userID int64) string {
	return fmt.Sprintf("%s:warnings:%d:%d", r.prefix, chatID, userID)
}

func (r *RedisStorage) GetDocument(ctx context.Context, key DocKey) ([]byte, error) {
	data, err := r.client.Get(ctx, r.docKey(key)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *RedisStorage) index(ctx context.Context, pipe redis.Pipeliner, key DocKey) {
	pipe.SAdd(ctx, r.scopeIndex(key.Kind, key.Scope), key.ID)
	pipe.SAdd(ctx, r.kindIndex(key.Kind), key.String())
}

func (r *RedisStorage) CreateDocument(ctx context.Context, key DocKey, data []byte) (bool, error) {
	keys := []string{r.docKey(key), r.scopeIndex(key.Kind, key.Scope), r.kindIndex(key.Kind)}
	created, err := createScript.Run(ctx, r.client, keys, data, key.ID, key.String()).Int()
	if err != nil {
		return false, err
	}
	return created == 1, nil
}

func (r *RedisStorage) PutDocument(ctx context.Context, key DocKey, data []byte) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.docKey(key), data, 0) // No expiration for documents
		r.index(ctx, pipe, key)
		return nil
	})
	return err
}

func (r *RedisStorage) ListDocuments(ctx context.Context, kind Kind, scope string) ([][]byte, error) {
	ids, err := r.client.SMembers(ctx, r.scopeIndex(kind, scope)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(DocKey{Kind: kind, Scope: scope, ID: id})
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, []byte(s))
	}
	return out, nil
}

func (r *RedisStorage) CountDocuments(ctx context.Context, kind Kind) (int, error) {
	n, err := r.client.SCard(ctx, r.kindIndex(kind)).Result()
	return int(n), err
}

func (r *RedisStorage) AppendWarning(ctx context.Context, w *models.Warning) (int64, error) {
	id, err := r.client.Incr(ctx, r.prefix+":warning:seq").Result()
	if err != nil {
		return 0, err
	}
	stored := *w
	stored.ID = id
	data, err := json.Marshal(&stored)
	if err != nil {
		return 0, err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.warningKey(id), data, 0)
		pipe.LPush(ctx, r.warningList(w.ChatID, w.UserID), id)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *RedisStorage) ListWarnings(ctx context.Context, chatID, userID int64) ([]models.Warning, error) {
	ids, err := r.client.LRange(ctx, r.warningList(chatID, userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Warning{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, &apperrors.CorruptDataError{Kind: "warning", Key: r.warningList(chatID, userID), Err: err}
		}
		keys[i] = r.warningKey(n)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Warning, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var w models.Warning
		if err := json.Unmarshal([]byte(s), &w); err != nil {
			return nil, &apperrors.CorruptDataError{Kind: "warning", Key: keys[i], Err: err}
		}
		out = append(out, w)
	}
	return out, nil
}

func (r *RedisStorage) CountWarnings(ctx context.Context, chatID, userID int64) (int, error) {
	n, err := r.client.LLen(ctx, r.warningList(chatID, userID)).Result()
	return int(n), err
}

func (r *RedisStorage) ClearWarnings(ctx context.Context, chatID, userID int64) (int, error) {
	keys := []string{r.warningList(chatID, userID)}
	n, err := clearScript.Run(ctx, r.client, keys, r.prefix+":warning:").Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *RedisStorage) GetWarning(ctx context.Context, id int64) (*models.Warning, error) {
	data, err := r.client.Get(ctx, r.warningKey(id)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var w models.Warning
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &apperrors.CorruptDataError{Kind: "warning", Key: r.warningKey(id), Err: err}
	}
	return &w, nil
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
