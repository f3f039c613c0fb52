package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JanBecker/ClipFox/internal/pkg/cache"
)

const cacheTTL = 5 * time.Minute

// Cache is the optional read-through cache for resolved policies.
type Cache interface {
	Get(ctx context.Context, plan string, workspaceID *uint) (*ResolvedPolicy, bool)
	Set(ctx context.Context, plan string, workspaceID *uint, resolved *ResolvedPolicy)
	Invalidate(ctx context.Context, plan string)
	InvalidateWorkspace(ctx context.Context, workspaceID uint)
}

type redisCache struct{}

// NewRedisCache returns a best-effort redis-backed policy cache. Cache errors
// are treated as misses.
func NewRedisCache() Cache {
	return &redisCache{}
}

func cacheKey(plan string, workspaceID *uint) string {
	if workspaceID == nil {
		return fmt.Sprintf("policy:plan:%s", plan)
	}
	return fmt.Sprintf("policy:plan:%s:ws:%d", plan, *workspaceID)
}

func (c *redisCache) Get(_ context.Context, plan string, workspaceID *uint) (*ResolvedPolicy, bool) {
	val, err := cache.Get(cacheKey(plan, workspaceID))
	if err != nil {
		return nil, false
	}
	var resolved ResolvedPolicy
	if err := json.Unmarshal([]byte(val), &resolved); err != nil {
		return nil, false
	}
	return &resolved, true
}

func (c *redisCache) Set(_ context.Context, plan string, workspaceID *uint, resolved *ResolvedPolicy) {
	raw, err := json.Marshal(resolved)
	if err != nil {
		return
	}
	_ = cache.Set(cacheKey(plan, workspaceID), string(raw), cacheTTL)
}

func (c *redisCache) Invalidate(_ context.Context, plan string) {
	// Workspace-scoped entries expire via TTL; only the plain plan entry is
	// dropped eagerly.
	_ = cache.Delete(cacheKey(plan, nil))
}

func (c *redisCache) InvalidateWorkspace(_ context.Context, workspaceID uint) {
	for _, plan := range []string{"free", "pro", "enterprise"} {
		id := workspaceID
		_ = cache.Delete(cacheKey(plan, &id))
	}
}
