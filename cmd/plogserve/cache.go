package main

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/golang/groupcache/singleflight"

	"github.com/NS2CDT/PerfAnalyzer/internal/plog"
	"github.com/NS2CDT/PerfAnalyzer/internal/storageutil"
)

const defaultCacheSize = 8

// logCache keeps the most recently used decoded logs. Logs are immutable, so
// the same *plog.Log is shared by concurrent requests. Concurrent misses for
// one id share a single decode.
type logCache struct {
	mu      sync.Mutex
	logs    *lru.Cache
	loads   singleflight.Group
	storage storageutil.ObjectHandler
	opts    []plog.Option
}

func newLogCache(storage storageutil.ObjectHandler, size int, opts ...plog.Option) *logCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	return &logCache{
		logs:    lru.New(size),
		storage: storage,
		opts:    opts,
	}
}

// get returns the log stored under id, decoding it on a miss.
func (c *logCache) get(ctx context.Context, id string) (*plog.Log, error) {
	if l, ok := c.cached(id); ok {
		return l, nil
	}

	v, err := c.loads.Do(id, func() (interface{}, error) {
		// A flight that finished between the lookup above and Do has
		// already cached the log.
		if l, ok := c.cached(id); ok {
			return l, nil
		}
		l, err := plog.LoadObject(ctx, c.storage, storageutil.PlogPath(id), c.opts...)
		if err != nil {
			return nil, err
		}
		c.add(id, l)
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*plog.Log), nil
}

func (c *logCache) cached(id string) (*plog.Log, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.logs.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*plog.Log), true
}

func (c *logCache) add(id string, l *plog.Log) {
	c.mu.Lock()
	c.logs.Add(id, l)
	c.mu.Unlock()
}
