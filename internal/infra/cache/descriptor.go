package cache

import (
	"github.com/bradfitz/gomemcache/memcache"
)

const descriptorTTL = 300 // seconds

// DescriptorCache keeps rendered resource descriptors in memcached so
// display names survive process restarts and are shared between instances.
type DescriptorCache struct {
	client *memcache.Client
}

func NewDescriptorCache(client *memcache.Client) *DescriptorCache {
	return &DescriptorCache{client: client}
}

func (c *DescriptorCache) Get(key string) (string, bool) {
	item, err := c.client.Get(key)
	if err != nil {
		return "", false
	}
	return string(item.Value), true
}

func (c *DescriptorCache) Set(key, value string) {
	c.client.Set(&memcache.Item{
		Key:        key,
		Value:      []byte(value),
		Expiration: descriptorTTL,
	})
}

func (c *DescriptorCache) Delete(key string) {
	c.client.Delete(key)
}
