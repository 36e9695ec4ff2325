package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/groupkeeper-tgbot-go/internal/models"
)

// Kind names a document family.
type Kind string

const (
	KindChat   Kind = "chat"
	KindUser   Kind = "user"
	KindRank   Kind = "rank"
	KindGlobal Kind = "global"
)

// DocKey addresses one stored document. Scope groups documents that are
// listed together (ranks are scoped by chat).
type DocKey struct {
	Kind  Kind
	Scope string
	ID    string
}

func (k DocKey) String() string {
	if k.Scope == "" {
		return fmt.Sprintf("%s:%s", k.Kind, k.ID)
	}
	return fmt.Sprintf("%s:%s:%s", k.Kind, k.Scope, k.ID)
}

func chatKey(chatID int64) DocKey {
	return DocKey{Kind: KindChat, ID: strconv.FormatInt(chatID, 10)}
}

func userKey(userID int64) DocKey {
	return DocKey{Kind: KindUser, ID: strconv.FormatInt(userID, 10)}
}

func rankKey(chatID, userID int64) DocKey {
	return DocKey{Kind: KindRank, Scope: strconv.FormatInt(chatID, 10), ID: strconv.FormatInt(userID, 10)}
}

func globalKey(key string) DocKey {
	return DocKey{Kind: KindGlobal, ID: key}
}

// Backend stores encoded documents and the warning log. Implementations hold
// no policy: defaults, decoding and locking live in Manager.
type Backend interface {
	// GetDocument returns apperrors.ErrNotFound when the document is absent.
	GetDocument(ctx context.Context, key DocKey) ([]byte, error)
	// CreateDocument stores data only if the key is absent.
	CreateDocument(ctx context.Context, key DocKey, data []byte) (bool, error)
	PutDocument(ctx context.Context, key DocKey, data []byte) error
	ListDocuments(ctx context.Context, kind Kind, scope string) ([][]byte, error)
	CountDocuments(ctx context.Context, kind Kind) (int, error)

	// AppendWarning assigns the next warning id.
	AppendWarning(ctx context.Context, w *models.Warning) (int64, error)
	// ListWarnings returns most-recent-first.
	ListWarnings(ctx context.Context, chatID, userID int64) ([]models.Warning, error)
	CountWarnings(ctx context.Context, chatID, userID int64) (int, error)
	ClearWarnings(ctx context.Context, chatID, userID int64) (int, error)
	GetWarning(ctx context.Context, id int64) (*models.Warning, error)

	Ping(ctx context.Context) error
	Close() error
}
