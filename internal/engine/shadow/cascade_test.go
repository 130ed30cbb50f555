package shadow

import (
	"errors"
	gomath "math"
	"testing"

	"github.com/Faultbox/umbra/pkg/math"
)

func newTestCascadeSet(t *testing.T, count, resolution int, near, far float32, scheme SplitScheme, lambda float32) *CascadeSet {
	t.Helper()
	cs, err := NewCascadeSet(nil, count, resolution, near, far, scheme, lambda)
	if err != nil {
		t.Fatalf("NewCascadeSet failed: %v", err)
	}
	return cs
}

func TestNewCascadeSetValidation(t *testing.T) {
	tests := []struct {
		name       string
		count, res int
		near, far  float32
		lambda     float32
	}{
		{"zero count", 0, 1024, 0.1, 100, 0.5},
		{"count too high", 9, 1024, 0.1, 100, 0.5},
		{"non-pow2 resolution", 4, 1000, 0.1, 100, 0.5},
		{"zero near", 4, 1024, 0, 100, 0.5},
		{"far before near", 4, 1024, 10, 5, 0.5},
		{"lambda negative", 4, 1024, 0.1, 100, -0.1},
		{"lambda above one", 4, 1024, 0.1, 100, 1.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCascadeSet(nil, tt.count, tt.res, tt.near, tt.far, SplitPractical, tt.lambda)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSplitMonotonicity(t *testing.T) {
	for _, scheme := range []SplitScheme{SplitUniform, SplitLogarithmic, SplitPractical} {
		t.Run(scheme.String(), func(t *testing.T) {
			cs := newTestCascadeSet(t, 5, 512, 0.5, 800, scheme, 0.6)
			cascades := cs.Cascades()

			if cascades[0].Near != 0.5 {
				t.Errorf("first near: got %f, want 0.5", cascades[0].Near)
			}
			if cascades[len(cascades)-1].Far != 800 {
				t.Errorf("last far: got %f, want 800", cascades[len(cascades)-1].Far)
			}
			for i, c := range cascades {
				if c.Near >= c.Far {
					t.Errorf("cascade %d: near %f >= far %f", i, c.Near, c.Far)
				}
				if i > 0 && cascades[i-1].Far != c.Near {
					t.Errorf("cascades %d/%d not contiguous: %f vs %f",
						i-1, i, cascades[i-1].Far, c.Near)
				}
			}
		})
	}
}

func TestLogarithmicSplitDecades(t *testing.T) {
	cs := newTestCascadeSet(t, 3, 512, 1, 1000, SplitLogarithmic, 0)
	cascades := cs.Cascades()

	wantBounds := []float32{1, 10, 100, 1000}
	for i, c := range cascades {
		if relErr(c.Near, wantBounds[i]) > 0.001 {
			t.Errorf("cascade %d near: got %f, want %f", i, c.Near, wantBounds[i])
		}
		if relErr(c.Far, wantBounds[i+1]) > 0.001 {
			t.Errorf("cascade %d far: got %f, want %f", i, c.Far, wantBounds[i+1])
		}
	}
}

func TestPracticalBlendsSchemes(t *testing.T) {
	uniform := newTestCascadeSet(t, 4, 512, 1, 1000, SplitUniform, 0)
	logarithmic := newTestCascadeSet(t, 4, 512, 1, 1000, SplitLogarithmic, 0)
	practical := newTestCascadeSet(t, 4, 512, 1, 1000, SplitPractical, 0.5)

	for i := 1; i < 4; i++ {
		u := uniform.Cascades()[i].Near
		l := logarithmic.Cascades()[i].Near
		p := practical.Cascades()[i].Near
		want := 0.5*l + 0.5*u
		if relErr(p, want) > 0.001 {
			t.Errorf("practical split %d: got %f, want %f", i, p, want)
		}
	}
}

func TestCascadeAllocateAtomic(t *testing.T) {
	// Room for 3 of the 4 requested 512x512 regions only.
	atlas, _ := newTestAtlas(t, 1024)
	if atlas.Allocate(512, 512) == nil {
		t.Fatal("setup allocation failed")
	}
	countBefore := atlas.Stats().RegionCount

	cs := newTestCascadeSet(t, 4, 512, 0.1, 100, SplitUniform, 0)
	if cs.AllocateFromAtlas(atlas) {
		t.Fatal("allocation should fail, atlas holds only 3 more regions")
	}
	if got := atlas.Stats().RegionCount; got != countBefore {
		t.Errorf("partial allocation leaked: %d regions, want %d", got, countBefore)
	}
	if cs.Allocated() {
		t.Error("set should not report allocated after failure")
	}
}

func TestCascadeAllocateAndFree(t *testing.T) {
	atlas, _ := newTestAtlas(t, 2048)
	cs := newTestCascadeSet(t, 4, 512, 0.1, 100, SplitUniform, 0)

	if !cs.AllocateFromAtlas(atlas) {
		t.Fatal("allocation should succeed")
	}
	for i, c := range cs.Cascades() {
		if c.Region == nil {
			t.Errorf("cascade %d missing region", i)
		}
	}
	if atlas.Stats().RegionCount != 4 {
		t.Errorf("expected 4 regions, got %d", atlas.Stats().RegionCount)
	}

	cs.FreeFromAtlas()
	if atlas.Stats().RegionCount != 0 {
		t.Errorf("expected 0 regions after free, got %d", atlas.Stats().RegionCount)
	}
	for i, c := range cs.Cascades() {
		if c.Region != nil {
			t.Errorf("cascade %d region not cleared", i)
		}
	}
}

func TestCascadeDoubleAllocatePanics(t *testing.T) {
	atlas, _ := newTestAtlas(t, 2048)
	cs := newTestCascadeSet(t, 2, 512, 0.1, 100, SplitUniform, 0)
	cs.AllocateFromAtlas(atlas)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on double allocation")
		}
	}()
	cs.AllocateFromAtlas(atlas)
}

func testCamera() (math.Mat4, math.Mat4) {
	view := math.LookAt(math.Vec3{X: 0, Y: 5, Z: 10}, math.Vec3{}, math.Vec3{Y: 1})
	proj := math.Perspective(float32(gomath.Pi/4), 16.0/9.0, 0.1, 100)
	return view, proj
}

func TestCascadeUpdateProducesFiniteMatrices(t *testing.T) {
	cs := newTestCascadeSet(t, 3, 512, 0.1, 100, SplitPractical, 0.75)
	view, proj := testCamera()

	cs.Update(math.Vec3{X: -0.4, Y: -0.8, Z: -0.2}, view, proj)

	for i, c := range cs.Cascades() {
		if c.ViewProjection == math.Identity() {
			t.Errorf("cascade %d matrix not updated", i)
		}
		for e, v := range c.ViewProjection {
			if gomath.IsNaN(float64(v)) || gomath.IsInf(float64(v), 0) {
				t.Errorf("cascade %d element %d not finite: %f", i, e, v)
			}
		}
	}
}

func TestCascadeUpdateVerticalLight(t *testing.T) {
	// Straight-down light triggers the alternate up vector path.
	cs := newTestCascadeSet(t, 2, 512, 0.1, 100, SplitUniform, 0)
	view, proj := testCamera()

	cs.Update(math.Vec3{Y: -1}, view, proj)

	for i, c := range cs.Cascades() {
		for e, v := range c.ViewProjection {
			if gomath.IsNaN(float64(v)) || gomath.IsInf(float64(v), 0) {
				t.Errorf("cascade %d element %d not finite: %f", i, e, v)
			}
		}
	}
}

func TestCascadeUpdateSingularCameraSkips(t *testing.T) {
	cs := newTestCascadeSet(t, 2, 512, 0.1, 100, SplitUniform, 0)
	view, proj := testCamera()
	cs.Update(math.Vec3{X: -0.4, Y: -0.8, Z: -0.2}, view, proj)
	before := make([]math.Mat4, 2)
	for i, c := range cs.Cascades() {
		before[i] = c.ViewProjection
	}

	// A zero view matrix makes the combined matrix singular; every
	// cascade keeps its previous matrix.
	cs.Update(math.Vec3{X: -0.4, Y: -0.8, Z: -0.2}, math.Mat4{}, proj)

	for i, c := range cs.Cascades() {
		if c.ViewProjection != before[i] {
			t.Errorf("cascade %d matrix changed despite singular camera", i)
		}
	}
}

func TestCascadeUpdateZeroLightDirection(t *testing.T) {
	cs := newTestCascadeSet(t, 2, 512, 0.1, 100, SplitUniform, 0)
	view, proj := testCamera()

	cs.Update(math.Vec3{}, view, proj)

	for i, c := range cs.Cascades() {
		if c.ViewProjection != math.Identity() {
			t.Errorf("cascade %d should keep its matrix on zero light direction", i)
		}
	}
}

func TestCascadeSliceCornersCoverDepthRange(t *testing.T) {
	cs := newTestCascadeSet(t, 1, 512, 1, 50, SplitUniform, 0)
	view, proj := testCamera2(1, 50)

	corners, ok := cs.sliceCorners(&cs.cascades[0], view, proj)
	if !ok {
		t.Fatal("sliceCorners reported singular matrix")
	}

	// Camera at origin looking down -Z: near corners at z=-1, far at z=-50.
	for i, c := range corners[:4] {
		if relErr(-c.Z, 1) > 0.01 {
			t.Errorf("near corner %d: z=%f, want -1", i, c.Z)
		}
	}
	for i, c := range corners[4:] {
		if relErr(-c.Z, 50) > 0.01 {
			t.Errorf("far corner %d: z=%f, want -50", i, c.Z)
		}
	}
}

func testCamera2(near, far float32) (math.Mat4, math.Mat4) {
	view := math.LookAt(math.Vec3{}, math.Vec3{Z: -1}, math.Vec3{Y: 1})
	proj := math.Perspective(float32(gomath.Pi/3), 1, near, far)
	return view, proj
}

func TestCascadeResize(t *testing.T) {
	atlas, _ := newTestAtlas(t, 2048)
	cs := newTestCascadeSet(t, 4, 512, 0.1, 100, SplitUniform, 0)
	cs.AllocateFromAtlas(atlas)

	if !cs.Resize(256) {
		t.Fatal("resize to smaller resolution should succeed")
	}
	if cs.Resolution() != 256 {
		t.Errorf("resolution: got %d, want 256", cs.Resolution())
	}
	if !cs.Allocated() {
		t.Error("set should be re-allocated after resize")
	}
	if atlas.Stats().RegionCount != 4 {
		t.Errorf("expected 4 regions after resize, got %d", atlas.Stats().RegionCount)
	}

	// Growing past atlas capacity fails but updates the resolution.
	if cs.Resize(2048) {
		t.Error("resize past capacity should fail")
	}
	if cs.Resolution() != 2048 {
		t.Errorf("resolution should update even on failed re-allocation, got %d", cs.Resolution())
	}
	if cs.Allocated() {
		t.Error("set should be unallocated after failed resize")
	}
}

func TestParseSplitScheme(t *testing.T) {
	for _, name := range []string{"uniform", "logarithmic", "practical"} {
		s, err := ParseSplitScheme(name)
		if err != nil {
			t.Errorf("ParseSplitScheme(%q) failed: %v", name, err)
		}
		if s.String() != name {
			t.Errorf("round trip: got %q, want %q", s.String(), name)
		}
	}
	if _, err := ParseSplitScheme("quadratic"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func relErr(got, want float32) float64 {
	if want == 0 {
		return gomath.Abs(float64(got))
	}
	return gomath.Abs(float64(got-want)) / gomath.Abs(float64(want))
}
