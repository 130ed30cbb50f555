package shadow

import (
	"fmt"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/umbra/pkg/math"
)

// SplitScheme selects how cascade split distances are distributed between
// the near and far planes.
type SplitScheme int

const (
	// SplitUniform spaces splits linearly.
	SplitUniform SplitScheme = iota
	// SplitLogarithmic spaces splits as near*(far/near)^(i/N), matching
	// perspective depth distribution.
	SplitLogarithmic
	// SplitPractical blends logarithmic and uniform splits by lambda.
	SplitPractical
)

// String returns the scheme name as used in configuration files.
func (s SplitScheme) String() string {
	switch s {
	case SplitUniform:
		return "uniform"
	case SplitLogarithmic:
		return "logarithmic"
	case SplitPractical:
		return "practical"
	default:
		return fmt.Sprintf("SplitScheme(%d)", int(s))
	}
}

// ParseSplitScheme converts a configuration string to a SplitScheme.
func ParseSplitScheme(name string) (SplitScheme, error) {
	switch name {
	case "uniform":
		return SplitUniform, nil
	case "logarithmic":
		return SplitLogarithmic, nil
	case "practical":
		return SplitPractical, nil
	default:
		return 0, fmt.Errorf("%w: unknown split scheme %q", ErrInvalidConfig, name)
	}
}

// Cascade is one depth slice of a directional light's shadow. Near and Far
// bound the slice in camera view depth; contiguous cascades share a
// boundary. Region is nil until the set allocates from an atlas.
type Cascade struct {
	Index          int
	Near           float32
	Far            float32
	ViewProjection math.Mat4
	Region         *Region
}

// lightEyeDistance is how far the light eye sits from the frustum slice
// center along the reverse light direction when building the shadow view.
const lightEyeDistance float32 = 100

// upParallelLimit is the |dot(forward, up)| threshold past which the
// default up vector is replaced to keep the look-at cross product stable.
const upParallelLimit = 0.9999

// CascadeSet splits the camera frustum along depth and computes a tightly
// fitted orthographic shadow projection per cascade.
type CascadeSet struct {
	log        *zap.Logger
	cascades   []Cascade
	resolution int
	near, far  float32
	scheme     SplitScheme
	lambda     float32

	atlas     *Atlas
	allocated bool
}

// NewCascadeSet validates the configuration and eagerly computes split
// distances. Count must be 1-8, resolution a power of 2, and
// 0 < near < far. Lambda blends practical splits and must be in [0, 1];
// it is ignored by the other schemes.
func NewCascadeSet(log *zap.Logger, count, resolution int, near, far float32, scheme SplitScheme, lambda float32) (*CascadeSet, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if count < 1 || count > 8 {
		return nil, fmt.Errorf("%w: cascade count %d outside 1-8", ErrInvalidConfig, count)
	}
	if !isPowerOfTwo(resolution) {
		return nil, fmt.Errorf("%w: cascade resolution %d is not a power of 2", ErrInvalidConfig, resolution)
	}
	if near <= 0 || far <= near {
		return nil, fmt.Errorf("%w: cascade planes near %g, far %g", ErrInvalidConfig, near, far)
	}
	if lambda < 0 || lambda > 1 {
		return nil, fmt.Errorf("%w: lambda %g outside [0,1]", ErrInvalidConfig, lambda)
	}

	cs := &CascadeSet{
		log:        log,
		resolution: resolution,
		near:       near,
		far:        far,
		scheme:     scheme,
		lambda:     lambda,
	}

	splits := cs.computeSplits(count)
	cs.cascades = make([]Cascade, count)
	for i := range cs.cascades {
		cs.cascades[i] = Cascade{
			Index:          i,
			Near:           splits[i],
			Far:            splits[i+1],
			ViewProjection: math.Identity(),
		}
	}

	return cs, nil
}

// computeSplits returns count+1 distances with splits[0] == near and
// splits[count] == far.
func (cs *CascadeSet) computeSplits(count int) []float32 {
	splits := make([]float32, count+1)
	splits[0] = cs.near
	splits[count] = cs.far

	ratio := float64(cs.far / cs.near)
	for i := 1; i < count; i++ {
		t := float64(i) / float64(count)

		uniform := cs.near + (cs.far-cs.near)*float32(t)
		logarithmic := cs.near * float32(gomath.Pow(ratio, t))

		switch cs.scheme {
		case SplitUniform:
			splits[i] = uniform
		case SplitLogarithmic:
			splits[i] = logarithmic
		case SplitPractical:
			splits[i] = cs.lambda*logarithmic + (1-cs.lambda)*uniform
		}
	}
	return splits
}

// Cascades returns the cascade slice. The caller must treat it as
// read-only; the render pass reads regions and matrices from it.
func (cs *CascadeSet) Cascades() []Cascade {
	return cs.cascades
}

// Resolution returns the per-cascade shadow map resolution.
func (cs *CascadeSet) Resolution() int {
	return cs.resolution
}

// Allocated reports whether the set currently holds atlas regions.
func (cs *CascadeSet) Allocated() bool {
	return cs.allocated
}

// AllocateFromAtlas reserves one resolution x resolution region per
// cascade. Allocation is atomic: on any failure all regions granted by
// this call are freed and false is returned. Calling while already
// allocated is a programming error and panics.
func (cs *CascadeSet) AllocateFromAtlas(atlas *Atlas) bool {
	if cs.allocated {
		panic("shadow: cascade set already allocated")
	}

	granted := allocateGroup(atlas, len(cs.cascades), cs.resolution)
	if granted == nil {
		cs.log.Warn("cascade atlas allocation failed",
			zap.Int("cascades", len(cs.cascades)),
			zap.Int("resolution", cs.resolution))
		return false
	}

	for i := range cs.cascades {
		cs.cascades[i].Region = granted[i]
	}
	cs.atlas = atlas
	cs.allocated = true
	return true
}

// FreeFromAtlas releases all cascade regions. Safe to call when not
// allocated.
func (cs *CascadeSet) FreeFromAtlas() {
	if !cs.allocated {
		return
	}
	for i := range cs.cascades {
		if cs.cascades[i].Region != nil {
			cs.atlas.Free(cs.cascades[i].Region.ID)
			cs.cascades[i].Region = nil
		}
	}
	cs.allocated = false
}

// Resize changes the per-cascade resolution and, if the set is allocated,
// re-allocates from the same atlas. Returns false when the re-allocation
// fails; the set is then unallocated and the resolution updated.
func (cs *CascadeSet) Resize(newResolution int) bool {
	if !isPowerOfTwo(newResolution) {
		panic(fmt.Sprintf("shadow: cascade resolution %d is not a power of 2", newResolution))
	}

	wasAllocated := cs.allocated
	atlas := cs.atlas
	cs.FreeFromAtlas()
	cs.resolution = newResolution

	if !wasAllocated {
		return true
	}
	return cs.AllocateFromAtlas(atlas)
}

// Update recomputes every cascade's view-projection matrix for the given
// light direction and camera matrices. A cascade whose slice matrix cannot
// be inverted is skipped, keeping its previous matrix for this frame.
func (cs *CascadeSet) Update(lightDir math.Vec3, cameraView, cameraProjection math.Mat4) {
	forward := lightDir.Normalize()
	if forward == (math.Vec3{}) {
		cs.log.Warn("cascade update skipped: zero light direction")
		return
	}

	for i := range cs.cascades {
		c := &cs.cascades[i]

		corners, ok := cs.sliceCorners(c, cameraView, cameraProjection)
		if !ok {
			cs.log.Warn("cascade update skipped: singular camera matrix",
				zap.Int("cascade", c.Index))
			continue
		}

		// Frustum slice center, light eye behind it along the light ray.
		var center math.Vec3
		for _, p := range corners {
			center = center.Add(p)
		}
		center = center.Scale(1.0 / 8.0)
		eye := center.Sub(forward.Scale(lightEyeDistance))

		up := math.Vec3{X: 0, Y: 1, Z: 0}
		if abs32(forward.Dot(up)) > upParallelLimit {
			up = math.Vec3{X: 1, Y: 0, Z: 0}
		}
		view := math.LookAt(eye, center, up)

		// Tight orthographic bounds around the slice in light space.
		first := view.TransformVec3(corners[0])
		min, max := first, first
		for _, p := range corners[1:] {
			q := view.TransformVec3(p)
			min = vecMin(min, q)
			max = vecMax(max, q)
		}

		// Light space looks down -Z, so depth range is [-max.Z, -min.Z].
		proj := math.Ortho(min.X, max.X, min.Y, max.Y, -max.Z, -min.Z)
		c.ViewProjection = proj.Mul(view)
	}
}

// sliceCorners returns the 8 world-space corners of the camera frustum
// restricted to the cascade's depth range. The second return is false when
// the combined matrix is singular.
func (cs *CascadeSet) sliceCorners(c *Cascade, cameraView, cameraProjection math.Mat4) ([8]math.Vec3, bool) {
	sliceProj := projectionForRange(cameraProjection, c.Near, c.Far)

	invVP, ok := sliceProj.Mul(cameraView).InverseOK()
	if !ok {
		return [8]math.Vec3{}, false
	}

	var corners [8]math.Vec3
	i := 0
	for _, z := range [2]float32{-1, 1} {
		for _, y := range [2]float32{-1, 1} {
			for _, x := range [2]float32{-1, 1} {
				p := invVP.MulVec4(math.Vec4{x, y, z, 1})
				corners[i] = math.Vec3{
					X: p[0] / p[3],
					Y: p[1] / p[3],
					Z: p[2] / p[3],
				}
				i++
			}
		}
	}
	return corners, true
}

// projectionForRange rebuilds the camera's perspective projection with the
// cascade's near/far planes, keeping its field of view and aspect terms.
func projectionForRange(cameraProjection math.Mat4, near, far float32) math.Mat4 {
	proj := cameraProjection
	nf := 1.0 / (near - far)
	proj[10] = (far + near) * nf
	proj[14] = 2 * far * near * nf
	return proj
}

func vecMin(a, b math.Vec3) math.Vec3 {
	return math.Vec3{
		X: min32(a.X, b.X),
		Y: min32(a.Y, b.Y),
		Z: min32(a.Z, b.Z),
	}
}

func vecMax(a, b math.Vec3) math.Vec3 {
	return math.Vec3{
		X: max32(a.X, b.X),
		Y: max32(a.Y, b.Y),
		Z: max32(a.Z, b.Z),
	}
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
