package oracle

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/gauravpcu/vendor-statements-sub000/internal/similarity"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/services"
)

// CachedOracle memoizes suggestions per (header, current field). Errors are not cached.
type CachedOracle struct {
	next  services.SuggestionOracle
	cache *gocache.Cache
}

var _ services.SuggestionOracle = (*CachedOracle)(nil)

// NewCachedOracle wraps next with a TTL cache.
func NewCachedOracle(next services.SuggestionOracle, ttl time.Duration) *CachedOracle {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedOracle{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedOracle) Suggest(ctx context.Context, originalHeader, currentMappedField string) ([]models.MappingSuggestion, error) {
	key := similarity.Normalize(originalHeader) + "\x00" + currentMappedField
	if v, ok := c.cache.Get(key); ok {
		return append([]models.MappingSuggestion(nil), v.([]models.MappingSuggestion)...), nil
	}

	suggestions, err := c.next.Suggest(ctx, originalHeader, currentMappedField)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, append([]models.MappingSuggestion(nil), suggestions...))
	return suggestions, nil
}
