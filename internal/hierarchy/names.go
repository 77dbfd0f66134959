// Package hierarchy maps opaque parent, sequence and episode ids to the
// folder names used for the download tree.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/studiopipe/kitsu-fetch/internal/constants"
	"github.com/studiopipe/kitsu-fetch/internal/logging"
	"github.com/studiopipe/kitsu-fetch/internal/models"
)

// ErrEmptyName is returned by a FetchFunc when the record exists but has no name.
var ErrEmptyName = errors.New("record has no name")

// FetchFunc looks up the display name of a single id.
type FetchFunc func(ctx context.Context, id string) (string, error)

// EntityFetcher is the subset of the tracking-service client used for direct
// id lookups. *api.Client satisfies it.
type EntityFetcher interface {
	GetEntity(ctx context.Context, id string) (*models.NamedRecord, error)
}

// TypeFetcher resolves task and asset type ids.
type TypeFetcher interface {
	GetTaskType(ctx context.Context, id string) (*models.NamedRecord, error)
	GetAssetType(ctx context.Context, id string) (*models.NamedRecord, error)
}

// EntityNames adapts the generic entity-by-id endpoint to a FetchFunc.
func EntityNames(f EntityFetcher) FetchFunc {
	return recordName(f.GetEntity)
}

// TaskTypeNames adapts the task-type endpoint to a FetchFunc.
func TaskTypeNames(f TypeFetcher) FetchFunc {
	return recordName(f.GetTaskType)
}

// AssetTypeNames adapts the asset-type endpoint to a FetchFunc.
func AssetTypeNames(f TypeFetcher) FetchFunc {
	return recordName(f.GetAssetType)
}

func recordName(get func(context.Context, string) (*models.NamedRecord, error)) FetchFunc {
	return func(ctx context.Context, id string) (string, error) {
		rec, err := get(ctx, id)
		if err != nil {
			return "", err
		}
		if rec == nil || rec.Name == "" {
			return "", ErrEmptyName
		}
		return rec.Name, nil
	}
}

// NameCache resolves ids to display names with get-or-populate semantics.
// Concurrent lookups of the same missing id share one fetch. Failed lookups
// are not cached, so a later call may still succeed.
type NameCache struct {
	fetch  FetchFunc
	logger *logging.Logger

	mu    sync.RWMutex
	names map[string]string
	group singleflight.Group
}

// NewNameCache creates a cache backed by fetch.
func NewNameCache(fetch FetchFunc, logger *logging.Logger) *NameCache {
	return &NameCache{
		fetch:  fetch,
		logger: logging.OrNop(logger),
		names:  make(map[string]string),
	}
}

// Seed stores a known name without fetching.
func (c *NameCache) Seed(id, name string) {
	if id == "" || name == "" {
		return
	}
	c.mu.Lock()
	c.names[id] = name
	c.mu.Unlock()
}

// Len reports the number of cached names.
func (c *NameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

func (c *NameCache) cached(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[id]
	return name, ok
}

// Lookup returns the name for id, fetching it on a miss. Errors are
// returned to the caller so it can choose its own fallback.
func (c *NameCache) Lookup(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("empty id")
	}
	if name, ok := c.cached(id); ok {
		return name, nil
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		if name, ok := c.cached(id); ok {
			return name, nil
		}
		name, err := c.fetch(ctx, id)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.names[id] = name
		c.mu.Unlock()
		return name, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Resolve never fails. An empty id yields No_Parent, a record without a
// name yields Unknown_Parent and any other failure yields Parent_<id prefix>.
func (c *NameCache) Resolve(ctx context.Context, id string) string {
	if id == "" {
		return constants.NoParent
	}
	name, err := c.Lookup(ctx, id)
	switch {
	case err == nil:
		return name
	case errors.Is(err, ErrEmptyName):
		return constants.UnknownParent
	default:
		c.logger.Debug().Str("id", id).Err(err).Msg("name lookup failed, using id fallback")
		return FallbackName(id)
	}
}

// FallbackName is the deterministic name used when id cannot be resolved.
func FallbackName(id string) string {
	if len(id) > constants.ParentIDPrefixLen {
		id = id[:constants.ParentIDPrefixLen]
	}
	return constants.ParentFallbackPrefix + id
}
