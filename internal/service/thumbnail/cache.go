package thumbnail

import (
	"container/list"
	"image"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vertextoedge/clipkeep/internal/domain/event"
	"github.com/vertextoedge/clipkeep/internal/domain/vo"
	"github.com/vertextoedge/clipkeep/internal/port"
	"github.com/vertextoedge/clipkeep/internal/util/imaging"
)

// Thumbnail is a decoded preview of an image blob
type Thumbnail struct {
	Image image.Image
	PNG   []byte
	// FromOriginal is set when the sibling was missing and the preview was
	// rendered from the original image
	FromOriginal bool
}

// Cost returns the in-memory byte cost used for the size bound
func (t *Thumbnail) Cost() int64 {
	w, h := imaging.Size(t.Image)
	return int64(w)*int64(h)*4 + int64(len(t.PNG))
}

// CacheConfig bounds the cache. Zero disables a bound.
type CacheConfig struct {
	MaxEntries int
	MaxBytes   int64
	// PixelSize is the edge length used when rendering from an original
	PixelSize int
}

// CacheStats is a point-in-time view of the cache
type CacheStats struct {
	Entries   int   `json:"entries"`
	Bytes     int64 `json:"bytes"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Fallbacks int64 `json:"fallbacks"`
}

type cacheItem struct {
	key   string
	thumb *Thumbnail
	cost  int64
}

// Cache is a recency-ordered thumbnail cache keyed by original path.
// Losing an entry only costs a reload.
type Cache struct {
	blobs     port.BlobStore
	scheduler port.ThumbnailScheduler
	logger    *zap.Logger
	cfg       CacheConfig

	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element
	bytes int64
	epoch uint64
	stats CacheStats

	loads singleflight.Group
}

// Ensure Cache handles store events
var _ event.EventHandler = (*Cache)(nil)

// NewCache creates a new thumbnail cache. scheduler may be nil; when set,
// a missing sibling is queued for regeneration.
func NewCache(blobs port.BlobStore, scheduler port.ThumbnailScheduler, cfg CacheConfig, logger *zap.Logger) *Cache {
	if cfg.PixelSize <= 0 {
		cfg.PixelSize = 160
	}
	return &Cache{
		blobs:     blobs,
		scheduler: scheduler,
		logger:    logger,
		cfg:       cfg,
		ll:        list.New(),
		items:     make(map[string]*list.Element),
	}
}

// Get returns the thumbnail for an original image path, loading it on a miss.
// Concurrent misses for one path share a single load.
func (c *Cache) Get(originalPath string) (*Thumbnail, error) {
	c.mu.Lock()
	if elem, ok := c.items[originalPath]; ok {
		c.ll.MoveToFront(elem)
		c.stats.Hits++
		thumb := elem.Value.(*cacheItem).thumb
		c.mu.Unlock()
		return thumb, nil
	}
	c.stats.Misses++
	epoch := c.epoch
	c.mu.Unlock()

	v, err, _ := c.loads.Do(originalPath, func() (interface{}, error) {
		return c.load(originalPath)
	})
	if err != nil {
		return nil, err
	}
	thumb := v.(*Thumbnail)
	c.add(originalPath, thumb, epoch)
	return thumb, nil
}

func (c *Cache) load(originalPath string) (*Thumbnail, error) {
	if data, err := c.blobs.ReadImage(c.blobs.ThumbnailPath(originalPath)); err == nil {
		img, _, err := imaging.Decode(data)
		if err == nil {
			return &Thumbnail{Image: img, PNG: data}, nil
		}
		c.logger.Debug("thumbnail unreadable, falling back to original",
			zap.String("path", originalPath), zap.Error(err))
	}

	data, err := c.blobs.ReadImage(originalPath)
	if err != nil {
		return nil, err
	}
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	preview := imaging.AspectFill(img, c.cfg.PixelSize, c.cfg.PixelSize)
	encoded, err := imaging.EncodePNG(preview)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.stats.Fallbacks++
	c.mu.Unlock()
	if c.scheduler != nil {
		c.scheduler.Schedule(originalPath)
	}
	return &Thumbnail{Image: preview, PNG: encoded, FromOriginal: true}, nil
}

func (c *Cache) add(key string, thumb *Thumbnail, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// invalidated while loading
	if c.epoch != epoch {
		return
	}

	if elem, ok := c.items[key]; ok {
		old := elem.Value.(*cacheItem)
		c.bytes -= old.cost
		old.thumb = thumb
		old.cost = thumb.Cost()
		c.bytes += old.cost
		c.ll.MoveToFront(elem)
	} else {
		item := &cacheItem{key: key, thumb: thumb, cost: thumb.Cost()}
		c.items[key] = c.ll.PushFront(item)
		c.bytes += item.cost
	}
	c.enforceBounds()
}

// enforceBounds evicts from the least recently used end; caller holds mu
func (c *Cache) enforceBounds() {
	for c.ll.Len() > 0 && c.overBounds() {
		c.removeElement(c.ll.Back())
		c.stats.Evictions++
	}
}

func (c *Cache) overBounds() bool {
	if c.cfg.MaxEntries > 0 && c.ll.Len() > c.cfg.MaxEntries {
		return true
	}
	return c.cfg.MaxBytes > 0 && c.bytes > c.cfg.MaxBytes
}

func (c *Cache) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem)
	c.ll.Remove(elem)
	delete(c.items, item.key)
	c.bytes -= item.cost
}

// Invalidate drops the entries for the given original paths
func (c *Cache) Invalidate(paths ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	for _, p := range paths {
		if elem, ok := c.items[p]; ok {
			c.removeElement(elem)
		}
	}
}

// Purge drops every entry
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	c.bytes = 0
}

// Stats returns current counters
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = c.ll.Len()
	s.Bytes = c.bytes
	return s
}

// Handle keeps the cache consistent with the store and the blob directory
func (c *Cache) Handle(e event.DomainEvent) error {
	switch ev := e.(type) {
	case event.EntriesEvicted:
		c.Invalidate(ev.BlobPaths...)
	case event.EntriesRemoved:
		c.Invalidate(ev.BlobPaths...)
	case event.HistoryCleared:
		c.Purge()
	case event.ThumbnailGenerated:
		// replace a fallback preview with the real sibling on next Get
		c.Invalidate(ev.OriginalPath)
	case event.OrphansReconciled:
		c.Invalidate(originalsOf(ev.Removed)...)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (c *Cache) HandledEvents() []string {
	return []string{
		event.NameEntriesEvicted,
		event.NameEntriesRemoved,
		event.NameHistoryCleared,
		event.NameThumbnailGenerated,
		event.NameOrphansReconciled,
	}
}

func originalsOf(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if orig, ok := vo.OriginalPathFor(f); ok {
			out = append(out, orig)
			continue
		}
		out = append(out, f)
	}
	return out
}
