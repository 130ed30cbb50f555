// Package shadow implements the shadow-mapping subsystem: a shared depth
// atlas with a guillotine packer, light-space projection math for
// directional, point and spot lights, and a depth-bias policy.
package shadow

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/umbra/internal/gpu"
	"github.com/Faultbox/umbra/pkg/math"
)

// Region is a rectangular area of the shadow atlas assigned to one light
// (or one cascade/face of a light). Regions are owned by the Atlas;
// projectors hold the copy returned at allocation time and must not
// mutate it.
type Region struct {
	ID     int
	X      int
	Y      int
	Width  int
	Height int

	// UVBounds is [minU, minV, maxU, maxV] within the atlas texture,
	// ready for use as a shader uniform.
	UVBounds [4]float32
}

// freeRect is allocator-internal bookkeeping for unoccupied atlas space.
// The union of all freeRects plus all allocated regions exactly tiles the
// atlas with no overlap.
type freeRect struct {
	x, y, w, h int
}

// Stats is a read-only snapshot of atlas occupancy.
type Stats struct {
	Size            int
	AllocatedPixels int
	FreePixels      int
	RegionCount     int
	MemoryBytes     int
}

// bytesPerPixel is the storage cost of one 32-bit depth texel.
const bytesPerPixel = 4

// Atlas manages a single square, power-of-2-sized depth texture shared by
// all shadow-casting lights in a frame. It is not safe for concurrent use;
// the engine serializes all calls on the render thread.
type Atlas struct {
	device  gpu.Device
	log     *zap.Logger
	size    int
	texture gpu.TextureHandle

	regions   map[int]Region
	freeRects []freeRect
	nextID    int
}

// NewAtlas creates an atlas of size x size pixels and allocates the backing
// depth texture through the device. Size must be a positive power of 2.
func NewAtlas(device gpu.Device, log *zap.Logger, size int) (*Atlas, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !isPowerOfTwo(size) {
		return nil, fmt.Errorf("%w: atlas size %d is not a power of 2", ErrInvalidConfig, size)
	}

	texture, err := device.CreateDepthTexture(size)
	if err != nil {
		return nil, fmt.Errorf("creating atlas texture: %w", err)
	}

	a := &Atlas{
		device:  device,
		log:     log,
		size:    size,
		texture: texture,
		regions: map[int]Region{},
		freeRects: []freeRect{
			{x: 0, y: 0, w: size, h: size},
		},
	}

	log.Info("shadow atlas created",
		zap.Int("size", size),
		zap.Int("memoryBytes", size*size*bytesPerPixel))

	return a, nil
}

// Size returns the atlas edge length in pixels.
func (a *Atlas) Size() int {
	return a.size
}

// Texture returns the handle of the backing depth texture.
func (a *Atlas) Texture() gpu.TextureHandle {
	return a.texture
}

// Allocate reserves a width x height region. It returns nil when the
// request cannot be satisfied: non-positive or oversized dimensions, or no
// free rectangle large enough. Allocation failure is routine; callers
// degrade by lowering resolution or skipping the light's shadow this frame.
func (a *Atlas) Allocate(width, height int) *Region {
	if width <= 0 || height <= 0 || width > a.size || height > a.size {
		a.log.Debug("atlas allocation rejected",
			zap.Int("width", width),
			zap.Int("height", height),
			zap.Int("atlasSize", a.size))
		return nil
	}

	// Best fit: the free rect with the smallest area that still holds the
	// request. Keeps big rects intact for future large allocations.
	best := -1
	bestArea := a.size*a.size + 1
	for i, fr := range a.freeRects {
		if fr.w < width || fr.h < height {
			continue
		}
		if area := fr.w * fr.h; area < bestArea {
			best = i
			bestArea = area
		}
	}
	if best == -1 {
		a.log.Debug("atlas full",
			zap.Int("width", width),
			zap.Int("height", height),
			zap.Int("freeRects", len(a.freeRects)))
		return nil
	}

	fr := a.freeRects[best]
	a.freeRects = append(a.freeRects[:best], a.freeRects[best+1:]...)

	// Guillotine split: the space right of the allocation keeps the
	// allocation's height, the space below keeps the full rect width.
	if right := (freeRect{x: fr.x + width, y: fr.y, w: fr.w - width, h: height}); right.w > 0 && right.h > 0 {
		a.freeRects = append(a.freeRects, right)
	}
	if bottom := (freeRect{x: fr.x, y: fr.y + height, w: fr.w, h: fr.h - height}); bottom.w > 0 && bottom.h > 0 {
		a.freeRects = append(a.freeRects, bottom)
	}

	a.nextID++
	s := float32(a.size)
	region := Region{
		ID:     a.nextID,
		X:      fr.x,
		Y:      fr.y,
		Width:  width,
		Height: height,
		UVBounds: [4]float32{
			float32(fr.x) / s,
			float32(fr.y) / s,
			float32(fr.x+width) / s,
			float32(fr.y+height) / s,
		},
	}
	a.regions[region.ID] = region

	out := region
	return &out
}

// Free releases a region by id. It returns false for unknown ids,
// including double frees.
func (a *Atlas) Free(regionID int) bool {
	region, ok := a.regions[regionID]
	if !ok {
		a.log.Debug("free of unknown region", zap.Int("id", regionID))
		return false
	}
	delete(a.regions, regionID)

	a.freeRects = append(a.freeRects, freeRect{
		x: region.X,
		y: region.Y,
		w: region.Width,
		h: region.Height,
	})
	a.mergeFreeRects()
	return true
}

// mergeFreeRects coalesces adjacent free rectangles that share a full edge
// until a complete pass makes no merge. Keeps fragmentation in check after
// frees.
func (a *Atlas) mergeFreeRects() {
	for merged := true; merged; {
		merged = false
	scan:
		for i := 0; i < len(a.freeRects); i++ {
			for j := i + 1; j < len(a.freeRects); j++ {
				ri, rj := a.freeRects[i], a.freeRects[j]

				if m, ok := mergePair(ri, rj); ok {
					a.freeRects[i] = m
					a.freeRects = append(a.freeRects[:j], a.freeRects[j+1:]...)
					merged = true
					break scan
				}
			}
		}
	}
}

// mergePair merges two free rects that are vertical neighbors of equal
// width or horizontal neighbors of equal height.
func mergePair(x, y freeRect) (freeRect, bool) {
	// Vertical neighbors: same column, same width, touching edges.
	if x.x == y.x && x.w == y.w {
		if x.y+x.h == y.y {
			return freeRect{x: x.x, y: x.y, w: x.w, h: x.h + y.h}, true
		}
		if y.y+y.h == x.y {
			return freeRect{x: x.x, y: y.y, w: x.w, h: x.h + y.h}, true
		}
	}
	// Horizontal neighbors: same row, same height, touching edges.
	if x.y == y.y && x.h == y.h {
		if x.x+x.w == y.x {
			return freeRect{x: x.x, y: x.y, w: x.w + y.w, h: x.h}, true
		}
		if y.x+y.w == x.x {
			return freeRect{x: y.x, y: x.y, w: x.w + y.w, h: x.h}, true
		}
	}
	return freeRect{}, false
}

// Resize reinitializes the atlas at a new size, discarding every current
// allocation. The old texture is destroyed only after the new one is
// created; if creation fails the previous state is left untouched.
func (a *Atlas) Resize(newSize int) error {
	if !isPowerOfTwo(newSize) {
		return fmt.Errorf("%w: atlas size %d is not a power of 2", ErrInvalidConfig, newSize)
	}

	texture, err := a.device.CreateDepthTexture(newSize)
	if err != nil {
		a.log.Warn("atlas resize failed, keeping current texture",
			zap.Int("newSize", newSize),
			zap.Error(err))
		return fmt.Errorf("creating resized atlas texture: %w", err)
	}

	a.device.DestroyTexture(a.texture)
	a.texture = texture
	a.size = newSize
	a.regions = map[int]Region{}
	a.freeRects = []freeRect{{x: 0, y: 0, w: newSize, h: newSize}}

	a.log.Info("shadow atlas resized", zap.Int("size", newSize))
	return nil
}

// Clear submits a GPU clear of the whole atlas to maximum depth. The clear
// is fire-and-forget: command-queue ordering ensures later depth writes see
// a cleared texture, but the CPU does not wait for it.
func (a *Atlas) Clear() {
	a.device.ClearDepth(a.texture, a.size)
}

// Destroy releases the backing texture. The atlas must not be used after.
func (a *Atlas) Destroy() {
	if a.texture != gpu.NilTexture {
		a.device.DestroyTexture(a.texture)
		a.texture = gpu.NilTexture
	}
}

// Stats returns an occupancy snapshot.
func (a *Atlas) Stats() Stats {
	allocated := 0
	for _, r := range a.regions {
		allocated += r.Width * r.Height
	}
	free := 0
	for _, fr := range a.freeRects {
		free += fr.w * fr.h
	}
	return Stats{
		Size:            a.size,
		AllocatedPixels: allocated,
		FreePixels:      free,
		RegionCount:     len(a.regions),
		MemoryBytes:     a.size * a.size * bytesPerPixel,
	}
}

// Regions returns a snapshot of all allocated regions, for the debug
// visualizer.
func (a *Atlas) Regions() []Region {
	out := make([]Region, 0, len(a.regions))
	for _, r := range a.regions {
		out = append(out, r)
	}
	return out
}

// UVCenter returns the center of a region in atlas UV space.
func (r *Region) UVCenter() math.Vec2 {
	return math.Vec2{
		X: (r.UVBounds[0] + r.UVBounds[2]) / 2,
		Y: (r.UVBounds[1] + r.UVBounds[3]) / 2,
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
