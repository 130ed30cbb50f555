package shadow

import (
	"fmt"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/umbra/pkg/math"
)

// CubeFace identifies one of the 6 canonical view directions of an
// omnidirectional shadow.
type CubeFace int

const (
	FacePosX CubeFace = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

// String returns the face name.
func (f CubeFace) String() string {
	switch f {
	case FacePosX:
		return "+X"
	case FaceNegX:
		return "-X"
	case FacePosY:
		return "+Y"
	case FaceNegY:
		return "-Y"
	case FacePosZ:
		return "+Z"
	case FaceNegZ:
		return "-Z"
	default:
		return fmt.Sprintf("CubeFace(%d)", int(f))
	}
}

// faceDirections are the canonical forward vectors per face.
var faceDirections = [6]math.Vec3{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// CubeFaceData holds one face's atlas region and matrices. All 6 faces of
// a cubemap are allocated and freed together.
type CubeFaceData struct {
	Face           CubeFace
	Region         *Region
	View           math.Mat4
	Projection     math.Mat4
	ViewProjection math.Mat4
}

// CubemapUpdate carries partial changes for CubemapShadow.Update. Nil
// fields keep their current value.
type CubemapUpdate struct {
	Position  *math.Vec3
	Radius    *float32
	NearPlane *float32
}

// CubemapShadow computes the 6 perspective shadow projections of a point
// light, each with a fixed 90 degree field of view covering one face.
type CubemapShadow struct {
	log        *zap.Logger
	position   math.Vec3
	radius     float32
	nearPlane  float32
	resolution int

	faces     [6]CubeFaceData
	atlas     *Atlas
	allocated bool
}

// NewCubemapShadow validates the configuration and builds the face
// matrices. Resolution must be a power of 2 and 0 < nearPlane < radius.
func NewCubemapShadow(log *zap.Logger, position math.Vec3, radius, nearPlane float32, resolution int) (*CubemapShadow, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !isPowerOfTwo(resolution) {
		return nil, fmt.Errorf("%w: cubemap resolution %d is not a power of 2", ErrInvalidConfig, resolution)
	}
	if nearPlane <= 0 || radius <= nearPlane {
		return nil, fmt.Errorf("%w: cubemap planes near %g, radius %g", ErrInvalidConfig, nearPlane, radius)
	}

	cm := &CubemapShadow{
		log:        log,
		position:   position,
		radius:     radius,
		nearPlane:  nearPlane,
		resolution: resolution,
	}
	for i := range cm.faces {
		cm.faces[i].Face = CubeFace(i)
	}
	cm.rebuildMatrices()

	return cm, nil
}

// rebuildMatrices recomputes view, projection and combined matrices for
// all 6 faces.
func (cm *CubemapShadow) rebuildMatrices() {
	proj := math.Perspective(float32(gomath.Pi/2), 1, cm.nearPlane, cm.radius)

	for i := range cm.faces {
		forward := faceDirections[i]
		up := faceUp(forward)

		view := math.LookAt(cm.position, cm.position.Add(forward), up)

		cm.faces[i].View = view
		cm.faces[i].Projection = proj
		cm.faces[i].ViewProjection = proj.Mul(view)
	}
}

// faceUp picks an up vector for a face direction. The default +Y up is
// degenerate for the vertical faces; those use +/-Z, chosen by the
// dominant axis of the forward vector.
func faceUp(forward math.Vec3) math.Vec3 {
	up := math.Vec3{X: 0, Y: 1, Z: 0}
	if abs32(forward.Dot(up)) <= upParallelLimit {
		return up
	}
	switch forward.DominantAxis() {
	case 1:
		if forward.Y > 0 {
			return math.Vec3{Z: 1}
		}
		return math.Vec3{Z: -1}
	default:
		return math.Vec3{X: 1}
	}
}

// Faces returns the face data slice. Read-only for callers.
func (cm *CubemapShadow) Faces() []CubeFaceData {
	return cm.faces[:]
}

// Position returns the light position.
func (cm *CubemapShadow) Position() math.Vec3 {
	return cm.position
}

// Allocated reports whether the cubemap currently holds atlas regions.
func (cm *CubemapShadow) Allocated() bool {
	return cm.allocated
}

// MemoryBytes returns the depth storage cost of all 6 faces.
func (cm *CubemapShadow) MemoryBytes() int {
	return cm.resolution * cm.resolution * bytesPerPixel * 6
}

// AllocateFromAtlas reserves 6 resolution x resolution regions as one
// atomic group; on any failure all granted regions are freed and false is
// returned. Calling while already allocated is a programming error and
// panics.
func (cm *CubemapShadow) AllocateFromAtlas(atlas *Atlas) bool {
	if cm.allocated {
		panic("shadow: cubemap already allocated")
	}

	granted := allocateGroup(atlas, 6, cm.resolution)
	if granted == nil {
		cm.log.Warn("cubemap atlas allocation failed",
			zap.Int("resolution", cm.resolution))
		return false
	}

	for i := range cm.faces {
		cm.faces[i].Region = granted[i]
	}
	cm.atlas = atlas
	cm.allocated = true
	return true
}

// FreeFromAtlas releases all 6 regions. Safe to call when not allocated.
func (cm *CubemapShadow) FreeFromAtlas() {
	if !cm.allocated {
		return
	}
	for i := range cm.faces {
		if cm.faces[i].Region != nil {
			cm.atlas.Free(cm.faces[i].Region.ID)
			cm.faces[i].Region = nil
		}
	}
	cm.allocated = false
}

// Update applies a partial configuration change. Any change frees current
// regions, rebuilds all face matrices, and re-allocates from the same
// atlas. A failed re-allocation leaves the cubemap unallocated and is
// logged, not fatal: the light simply casts no shadow until space frees up.
func (cm *CubemapShadow) Update(update CubemapUpdate) error {
	position := cm.position
	radius := cm.radius
	nearPlane := cm.nearPlane

	if update.Position != nil {
		position = *update.Position
	}
	if update.Radius != nil {
		radius = *update.Radius
	}
	if update.NearPlane != nil {
		nearPlane = *update.NearPlane
	}

	if nearPlane <= 0 || radius <= nearPlane {
		return fmt.Errorf("%w: cubemap planes near %g, radius %g", ErrInvalidConfig, nearPlane, radius)
	}

	if position == cm.position && radius == cm.radius && nearPlane == cm.nearPlane {
		return nil
	}

	wasAllocated := cm.allocated
	atlas := cm.atlas
	cm.FreeFromAtlas()

	cm.position = position
	cm.radius = radius
	cm.nearPlane = nearPlane
	cm.rebuildMatrices()

	if wasAllocated && !cm.AllocateFromAtlas(atlas) {
		cm.log.Warn("cubemap re-allocation failed after update",
			zap.Int("resolution", cm.resolution))
	}
	return nil
}
