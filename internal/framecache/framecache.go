// Package framecache holds the latest decoded frame per camera. Acquisition
// threads write into it; the analysis scheduler reads copies out so a writer
// can never tear a frame mid-analysis.
package framecache

import (
	"sync"
	"time"

	"resto-vision/internal/domain/vision"
)

type cachedFrame struct {
	frame      vision.Frame
	capturedAt time.Time
}

type Cache struct {
	mu     sync.RWMutex
	frames map[int64]cachedFrame
}

func New() *Cache {
	return &Cache{frames: make(map[int64]cachedFrame)}
}

// Put stores a copy of the frame for the camera with the given capture time.
func (c *Cache) Put(cameraID int64, frame *vision.Frame, capturedAt time.Time) {
	cp := vision.Frame{Width: frame.Width, Height: frame.Height}
	if frame.Pixels != nil {
		cp.Pixels = make([]byte, len(frame.Pixels))
		copy(cp.Pixels, frame.Pixels)
	}
	c.mu.Lock()
	c.frames[cameraID] = cachedFrame{frame: cp, capturedAt: capturedAt}
	c.mu.Unlock()
}

// Get returns a copy of the freshest frame for the camera, or nil when none
// has been cached yet.
func (c *Cache) Get(cameraID int64) (*vision.Frame, time.Time) {
	c.mu.RLock()
	cached, ok := c.frames[cameraID]
	c.mu.RUnlock()
	if !ok {
		return nil, time.Time{}
	}
	cp := vision.Frame{Width: cached.frame.Width, Height: cached.frame.Height}
	if cached.frame.Pixels != nil {
		cp.Pixels = make([]byte, len(cached.frame.Pixels))
		copy(cp.Pixels, cached.frame.Pixels)
	}
	return &cp, cached.capturedAt
}

// GetFresh returns the cached frame only when it is younger than maxAge;
// stale or missing frames yield nil, which callers treat as "skip tick".
func (c *Cache) GetFresh(cameraID int64, maxAge time.Duration, now time.Time) *vision.Frame {
	frame, capturedAt := c.Get(cameraID)
	if frame == nil || now.Sub(capturedAt) > maxAge {
		return nil
	}
	return frame
}
