package cache

import (
	"container/list"
	"sync"
)

type lruEntry struct {
	key  string
	size int64
}

// LRUEvictionPolicy keeps the cached bytes under a soft limit by dropping
// the least recently used objects first.
type LRUEvictionPolicy struct {
	mu sync.Mutex

	maxSizeBytes int64
	currentSize  int64

	items map[string]*list.Element
	// front is most recently used
	order *list.List
}

// NewLRUEvictionPolicy creates a policy for at most maxSizeBytes of cached
// content. A non-positive limit never evicts.
func NewLRUEvictionPolicy(maxSizeBytes int64) *LRUEvictionPolicy {
	return &LRUEvictionPolicy{
		maxSizeBytes: maxSizeBytes,
		items:        make(map[string]*list.Element),
		order:        list.New(),
	}
}

func (p *LRUEvictionPolicy) OnAccess(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if elem, ok := p.items[key]; ok {
		p.order.MoveToFront(elem)
	}
}

func (p *LRUEvictionPolicy) OnAdd(key string, size int64) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if elem, ok := p.items[key]; ok {
		entry := elem.Value.(*lruEntry)
		p.currentSize += size - entry.size
		entry.size = size
		p.order.MoveToFront(elem)
	} else {
		p.items[key] = p.order.PushFront(&lruEntry{key: key, size: size})
		p.currentSize += size
	}

	return p.evictIfNeeded(key)
}

func (p *LRUEvictionPolicy) OnRemove(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elem, ok := p.items[key]
	if !ok {
		return
	}
	p.currentSize -= elem.Value.(*lruEntry).size
	p.order.Remove(elem)
	delete(p.items, key)
}

// Size reports the bytes currently tracked.
func (p *LRUEvictionPolicy) Size() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentSize
}

// evictIfNeeded never evicts keep, the object that was just added.
func (p *LRUEvictionPolicy) evictIfNeeded(keep string) []string {
	if p.maxSizeBytes <= 0 {
		return nil
	}

	var evicted []string
	for p.currentSize > p.maxSizeBytes && p.order.Len() > 1 {
		back := p.order.Back()
		entry := back.Value.(*lruEntry)
		if entry.key == keep {
			break
		}

		p.order.Remove(back)
		delete(p.items, entry.key)
		p.currentSize -= entry.size
		evicted = append(evicted, entry.key)
	}

	return evicted
}
