package cache

import (
	"testing"
	"time"

	"github.com/groupkeeper-tgbot-go/pkg/logger"
)

func TestAdminCache(t *testing.T) {
	c := NewAdminCache(time.Minute, logger.Discard())

	if _, ok := c.Get(1, 2); ok {
		t.Fatal("empty cache reported a hit")
	}
	c.Set(1, 2, true)
	c.Set(1, 3, false)
	c.Set(9, 2, true)

	if admin, ok := c.Get(1, 2); !ok || !admin {
		t.Errorf("Get(1, 2) = %v, %v", admin, ok)
	}
	if admin, ok := c.Get(1, 3); !ok || admin {
		t.Errorf("Get(1, 3) = %v, %v", admin, ok)
	}

	c.InvalidateChat(1)
	if c.Len() != 1 {
		t.Errorf("Len after invalidate = %d, want 1", c.Len())
	}
	if _, ok := c.Get(9, 2); !ok {
		t.Errorf("other chat was invalidated")
	}
}

func TestAdminCacheExpires(t *testing.T) {
	c := NewAdminCache(20*time.Millisecond, logger.Discard())
	c.Set(1, 2, true)
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get(1, 2); ok {
		t.Error("entry survived its ttl")
	}
}

func TestAdminCacheDisabled(t *testing.T) {
	c := NewAdminCache(0, logger.Discard())
	c.Set(1, 2, true)
	if _, ok := c.Get(1, 2); ok {
		t.Error("disabled cache reported a hit")
	}
}
