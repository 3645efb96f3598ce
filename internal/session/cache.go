// AngelaMos | 2026
// cache.go

package session

import (
	"context"

	"github.com/planejarpatrimonio/backend/internal/core"
	"github.com/planejarpatrimonio/backend/internal/identity"
)

func (f *Facade) session() *identity.Session {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// restore returns the in-memory session, loading the cached one the
// first time through.
func (f *Facade) restore(ctx context.Context) *identity.Session {
	f.mu.RLock()
	if f.loaded {
		s := f.current
		f.mu.RUnlock()
		return s
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loaded {
		return f.current
	}
	f.loaded = true

	if f.cache == nil || f.cacheKey == "" {
		return f.current
	}

	var cached identity.Session
	found, err := core.GetJSON(ctx, f.cache, f.cacheKey, &cached)
	if err != nil {
		f.logger.WarnContext(ctx, "read cached session failed", "error", err)
		return f.current
	}
	if found && f.current == nil {
		f.current = &cached
		f.logger.DebugContext(ctx, "session restored from cache", "user_id", cached.User.ID)
	}

	return f.current
}

func (f *Facade) setSession(ctx context.Context, s *identity.Session) {
	f.mu.Lock()
	f.current = s
	f.loaded = true
	f.mu.Unlock()

	if f.cache == nil || f.cacheKey == "" {
		return
	}

	if err := core.SetJSON(ctx, f.cache, f.cacheKey, s, f.cacheTTL); err != nil {
		f.logger.WarnContext(ctx, "cache session failed", "error", err)
	}
}

func (f *Facade) clearSession(ctx context.Context) {
	f.mu.Lock()
	f.current = nil
	f.loaded = true
	f.mu.Unlock()

	if f.cache == nil || f.cacheKey == "" {
		return
	}

	if err := f.cache.Del(ctx, f.cacheKey).Err(); err != nil {
		f.logger.WarnContext(ctx, "remove cached session failed", "error", err)
	}
}
