package shadow

import (
	"fmt"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/umbra/pkg/math"
)

// SpotConfig describes a spot light's shadow projection.
type SpotConfig struct {
	Position  math.Vec3
	Direction math.Vec3 // Need not be normalized, must be non-zero
	ConeAngle float32   // Full cone angle in radians, in (0, pi)
	Range     float32
	NearPlane float32
	Penumbra  float32 // Soft edge fraction, informational for the shading pass
}

// SpotUpdate carries partial changes for SpotShadow.Update. Nil fields
// keep their current value.
type SpotUpdate struct {
	Position  *math.Vec3
	Direction *math.Vec3
	ConeAngle *float32
	Range     *float32
}

// ShadowCoords is a position mapped into a spot light's shadow map: U and
// V in the region's [0,1] space and the normalized depth for comparison.
type ShadowCoords struct {
	U     float32
	V     float32
	Depth float32
}

// wEpsilon rejects perspective divides that would blow up.
const wEpsilon = 1e-6

// SpotShadow computes the single perspective shadow projection of a spot
// light cone. The cone angle maps directly to the vertical field of view.
type SpotShadow struct {
	log        *zap.Logger
	cfg        SpotConfig
	resolution int

	view           math.Mat4
	projection     math.Mat4
	viewProjection math.Mat4

	region    *Region
	atlas     *Atlas
	allocated bool
}

// NewSpotShadow validates the configuration and builds the matrices.
// Resolution must be a power of 2.
func NewSpotShadow(log *zap.Logger, cfg SpotConfig, resolution int) (*SpotShadow, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !isPowerOfTwo(resolution) {
		return nil, fmt.Errorf("%w: spot resolution %d is not a power of 2", ErrInvalidConfig, resolution)
	}
	if err := validateSpotConfig(cfg); err != nil {
		return nil, err
	}

	s := &SpotShadow{
		log:        log,
		cfg:        cfg,
		resolution: resolution,
	}
	s.cfg.Direction = cfg.Direction.Normalize()
	s.rebuildMatrices()

	return s, nil
}

func validateSpotConfig(cfg SpotConfig) error {
	if cfg.ConeAngle <= 0 || cfg.ConeAngle >= float32(gomath.Pi) {
		return fmt.Errorf("%w: cone angle %g outside (0, pi)", ErrInvalidConfig, cfg.ConeAngle)
	}
	if !cfg.Direction.IsFinite() || cfg.Direction.Length() == 0 {
		return fmt.Errorf("%w: spot direction must be a non-zero finite vector", ErrInvalidConfig)
	}
	if cfg.NearPlane <= 0 || cfg.Range <= cfg.NearPlane {
		return fmt.Errorf("%w: spot planes near %g, range %g", ErrInvalidConfig, cfg.NearPlane, cfg.Range)
	}
	return nil
}

// rebuildMatrices recomputes the view, projection and combined matrices.
// The vertical FOV equals the cone angle, so the shadow map exactly covers
// the cone.
func (s *SpotShadow) rebuildMatrices() {
	forward := s.cfg.Direction
	up := faceUp(forward)

	s.view = math.LookAt(s.cfg.Position, s.cfg.Position.Add(forward), up)
	s.projection = math.Perspective(s.cfg.ConeAngle, 1, s.cfg.NearPlane, s.cfg.Range)
	s.viewProjection = s.projection.Mul(s.view)
}

// Config returns the current spot configuration.
func (s *SpotShadow) Config() SpotConfig {
	return s.cfg
}

// ViewProjection returns the combined matrix for the shadow-casting pass.
func (s *SpotShadow) ViewProjection() math.Mat4 {
	return s.viewProjection
}

// Region returns the atlas region, or nil when unallocated.
func (s *SpotShadow) Region() *Region {
	return s.region
}

// Allocated reports whether the spot currently holds an atlas region.
func (s *SpotShadow) Allocated() bool {
	return s.allocated
}

// MemoryBytes returns the depth storage cost of the shadow map.
func (s *SpotShadow) MemoryBytes() int {
	return s.resolution * s.resolution * bytesPerPixel
}

// AllocateFromAtlas reserves a single resolution x resolution region,
// returning false when the atlas cannot satisfy it. Calling while already
// allocated is a programming error and panics.
func (s *SpotShadow) AllocateFromAtlas(atlas *Atlas) bool {
	if s.allocated {
		panic("shadow: spot shadow already allocated")
	}

	region := atlas.Allocate(s.resolution, s.resolution)
	if region == nil {
		s.log.Warn("spot atlas allocation failed",
			zap.Int("resolution", s.resolution))
		return false
	}

	s.region = region
	s.atlas = atlas
	s.allocated = true
	return true
}

// FreeFromAtlas releases the region. Safe to call when not allocated.
func (s *SpotShadow) FreeFromAtlas() {
	if !s.allocated {
		return
	}
	s.atlas.Free(s.region.ID)
	s.region = nil
	s.allocated = false
}

// Update applies a partial configuration change, revalidating the result
// and rebuilding matrices. The atlas region is kept; resolution does not
// change here.
func (s *SpotShadow) Update(update SpotUpdate) error {
	cfg := s.cfg
	if update.Position != nil {
		cfg.Position = *update.Position
	}
	if update.Direction != nil {
		cfg.Direction = *update.Direction
	}
	if update.ConeAngle != nil {
		cfg.ConeAngle = *update.ConeAngle
	}
	if update.Range != nil {
		cfg.Range = *update.Range
	}

	if err := validateSpotConfig(cfg); err != nil {
		return err
	}

	cfg.Direction = cfg.Direction.Normalize()
	s.cfg = cfg
	s.rebuildMatrices()
	return nil
}

// WorldToShadowCoords maps a world-space position into the spot's shadow
// map. It returns nil when the position lies outside the light frustum or
// the perspective divide is degenerate.
func (s *SpotShadow) WorldToShadowCoords(worldPos math.Vec3) *ShadowCoords {
	clip := s.viewProjection.MulVec4(math.Vec4{worldPos.X, worldPos.Y, worldPos.Z, 1})

	w := clip[3]
	if abs32(w) < wEpsilon {
		return nil
	}

	ndcX := clip[0] / w
	ndcY := clip[1] / w
	ndcZ := clip[2] / w

	depth := ndcZ*0.5 + 0.5
	if ndcX < -1 || ndcX > 1 || ndcY < -1 || ndcY > 1 || depth < 0 || depth > 1 {
		return nil
	}

	return &ShadowCoords{
		U:     ndcX*0.5 + 0.5,
		V:     ndcY*0.5 + 0.5,
		Depth: depth,
	}
}
