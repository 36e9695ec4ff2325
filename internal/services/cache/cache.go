package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// AdminCache remembers whether a user administers a chat so the transport
// does not ask Telegram on every message.
type AdminCache struct {
	enabled bool
	cache   *cache.Cache
	logger  *logrus.Logger
}

// NewAdminCache creates the cache. A non-positive ttl disables it.
func NewAdminCache(ttl time.Duration, logger *logrus.Logger) *AdminCache {
	if ttl <= 0 {
		return &AdminCache{enabled: false, logger: logger}
	}
	return &AdminCache{
		enabled: true,
		cache:   cache.New(ttl, ttl*2),
		logger:  logger,
	}
}

// Get returns the cached admin status and whether it was cached.
func (c *AdminCache) Get(chatID, userID int64) (bool, bool) {
	if !c.enabled {
		return false, false
	}
	val, found := c.cache.Get(c.key(chatID, userID))
	if !found {
		return false, false
	}
	return val.(bool), true
}

// Set stores the admin status of a member.
func (c *AdminCache) Set(chatID, userID int64, admin bool) {
	if !c.enabled {
		return
	}
	c.cache.SetDefault(c.key(chatID, userID), admin)
	c.logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"user_id": userID,
		"admin":   admin,
	}).Debug("Admin status cached")
}

// InvalidateChat drops every entry of a chat.
func (c *AdminCache) InvalidateChat(chatID int64) {
	if !c.enabled {
		return
	}
	prefix := fmt.Sprintf("%d:", chatID)
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}

// Len returns the number of live entries.
func (c *AdminCache) Len() int {
	if !c.enabled {
		return 0
	}
	return c.cache.ItemCount()
}

func (c *AdminCache) key(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}
