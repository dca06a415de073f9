package pdf

// lruCache memoizes resolved objects, so that shared objects (a Resources
// dictionary reused by every page, say) are parsed only once.  The cache is
// not safe for concurrent use; the Reader guards it with a mutex.
type lruCache struct {
	capacity    int
	entries     map[Reference]*cacheEntry
	first, last *cacheEntry
}

type cacheEntry struct {
	prev, next *cacheEntry
	key        Reference
	obj        Object
}

// newCache creates a new LRU cache with the given capacity.
func newCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		entries:  make(map[Reference]*cacheEntry, capacity),
	}
}

// Put adds an object to the cache.
func (l *lruCache) Put(key Reference, obj Object) {
	if l.capacity <= 0 {
		return
	}

	if ent, ok := l.entries[key]; ok {
		ent.obj = obj
		l.moveToFront(ent)
		return
	}

	ent := &cacheEntry{
		key: key,
		obj: obj,
	}
	l.entries[key] = ent
	l.moveToFront(ent)

	if len(l.entries) > l.capacity {
		l.removeLast()
	}
}

// Get returns an object from the cache and marks it as recently used.
func (l *lruCache) Get(key Reference) (Object, bool) {
	ent, ok := l.entries[key]
	if !ok {
		return nil, false
	}

	l.moveToFront(ent)
	return ent.obj, true
}

// Has reports whether the cache contains the given key, without marking
// the object as recently used.
func (l *lruCache) Has(key Reference) bool {
	_, ok := l.entries[key]
	return ok
}

func (l *lruCache) moveToFront(ent *cacheEntry) {
	if ent == l.first {
		return
	}

	if ent.prev != nil {
		ent.prev.next = ent.next
	}
	if ent.next != nil {
		ent.next.prev = ent.prev
	}
	if ent == l.last {
		l.last = ent.prev
	}

	ent.prev = nil
	ent.next = l.first
	if l.first != nil {
		l.first.prev = ent
	}
	l.first = ent
	if l.last == nil {
		l.last = ent
	}
}

func (l *lruCache) removeLast() {
	if l.last == nil {
		return
	}

	delete(l.entries, l.last.key)
	if l.last.prev != nil {
		l.last.prev.next = nil
	}
	l.last = l.last.prev
}
