package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrEmptyImage is returned when an image has zero width or height.
var ErrEmptyImage = errors.New("image has zero width or height")

// ImageCache provides thread-safe caching of decoded photographs keyed by
// file path.
//
// Once an image is loaded, subsequent Load() calls for the same path return the
// cached copy without decoding it again, as long as the file's size and
// modification time are unchanged. A photo rewritten in place is decoded
// afresh. Cached images are treated as read-only by every consumer in this
// module, so sharing them between concurrent grading calls is safe.
//
// # Memory Management
//
// Cached images remain in memory until removed via Evict() or Clear(), or,
// for a cache with a limit, until newer photos push them out. Answer-sheet
// photographs are large; callers that grade a photo once should Evict it
// afterwards.
type ImageCache struct {
	mu     sync.RWMutex
	limit  int
	images map[string]cachedImage
	order  []string // insertion order, oldest first
}

type cachedImage struct {
	img     image.Image
	size    int64
	modTime time.Time
}

// NewImageCache creates and initializes a new empty image cache with no
// size limit.
func NewImageCache() *ImageCache {
	return NewLimitedImageCache(0)
}

// NewLimitedImageCache creates a cache holding at most limit photos. Loading
// one more evicts the oldest. A limit of zero or less means no limit.
func NewLimitedImageCache(limit int) *ImageCache {
	return &ImageCache{
		limit:  limit,
		images: make(map[string]cachedImage),
	}
}

// Load retrieves an image from the cache or loads it from disk if not cached.
//
// Supported formats are PNG, JPEG, GIF and WebP. JPEG photographs are rotated
// according to their EXIF orientation tag, so a phone photo taken in portrait
// mode arrives upright.
//
// The image is cached using the exact path string provided. Different paths to the
// same file (e.g., relative vs absolute) will result in separate cache entries.
func (c *ImageCache) Load(path string) (image.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	c.mu.RLock()
	entry, ok := c.images[path]
	c.mu.RUnlock()
	if ok && entry.size == info.Size() && entry.modTime.Equal(info.ModTime()) {
		return entry.img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, cached := c.images[path]; !cached {
		c.order = append(c.order, path)
	}
	c.images[path] = cachedImage{img: img, size: info.Size(), modTime: info.ModTime()}
	for c.limit > 0 && len(c.order) > c.limit {
		delete(c.images, c.order[0])
		c.order = c.order[1:]
	}

	return img, nil
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]cachedImage)
	c.order = nil
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
//
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.images[path]; !ok {
		return
	}
	delete(c.images, path)
	for i, p := range c.order {
		if p == path {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len reports how many images are currently cached.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Decode decodes an in-memory photograph (an upload body, for instance),
// honouring the EXIF orientation tag.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return img, nil
}
