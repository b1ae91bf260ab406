package overlay

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

// CachedStore fronts a Store with a TTL cache. Misses are cached too, and every
// write invalidates the keys it touches.
type CachedStore struct {
	Store
	cache *gocache.Cache
}

// NewCachedStore wraps store. A non-positive ttl disables expiry.
func NewCachedStore(store Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &CachedStore{
		Store: store,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func preferenceCacheKey(vendorKey, originalHeader string) string {
	return "pref:" + VendorKey(vendorKey) + "\x00" + HeaderKey(originalHeader)
}

func templateCacheKey(templateID string) string {
	return "tpl:" + templateID
}

func (c *CachedStore) Lookup(ctx context.Context, vendorKey, originalHeader string) (*models.Override, error) {
	key := preferenceCacheKey(vendorKey, originalHeader)
	if v, ok := c.cache.Get(key); ok {
		return cloneOverride(v.(*models.Override)), nil
	}

	o, err := c.Store.Lookup(ctx, vendorKey, originalHeader)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, cloneOverride(o))
	return o, nil
}

func (c *CachedStore) LookupTemplate(ctx context.Context, templateID string) (*models.Template, error) {
	key := templateCacheKey(templateID)
	if v, ok := c.cache.Get(key); ok {
		if t := v.(*models.Template); t != nil {
			return cloneTemplate(*t), nil
		}
		return nil, nil
	}

	t, err := c.Store.LookupTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		c.cache.SetDefault(key, (*models.Template)(nil))
		return nil, nil
	}
	c.cache.SetDefault(key, cloneTemplate(*t))
	return t, nil
}

func (c *CachedStore) SavePreference(ctx context.Context, vendorKey, originalHeader, mappedField string) error {
	defer c.cache.Delete(preferenceCacheKey(vendorKey, originalHeader))
	return c.Store.SavePreference(ctx, vendorKey, originalHeader, mappedField)
}

func (c *CachedStore) DeletePreference(ctx context.Context, vendorKey, originalHeader string) error {
	defer c.cache.Delete(preferenceCacheKey(vendorKey, originalHeader))
	return c.Store.DeletePreference(ctx, vendorKey, originalHeader)
}

func (c *CachedStore) SaveTemplate(ctx context.Context, t *models.Template) error {
	if err := c.Store.SaveTemplate(ctx, t); err != nil {
		return err
	}
	c.cache.Delete(templateCacheKey(t.ID))
	return nil
}

func (c *CachedStore) DeleteTemplate(ctx context.Context, templateID string) error {
	defer c.cache.Delete(templateCacheKey(templateID))
	return c.Store.DeleteTemplate(ctx, templateID)
}

func cloneOverride(o *models.Override) *models.Override {
	if o == nil {
		return nil
	}
	cp := *o
	return &cp
}
