package shadow

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/umbra/pkg/math"
)

// TestFrameScenario walks the subsystem through a typical frame setup:
// a 2048 atlas shared by a 4-cascade sun, a point light cubemap and a
// large spot light.
func TestFrameScenario(t *testing.T) {
	atlas, _ := newTestAtlas(t, 2048)

	// 4 cascades at 512: 4 * 512^2 = 1,048,576 of 4,194,304 pixels.
	sun := newTestCascadeSet(t, 4, 512, 0.1, 500, SplitPractical, 0.75)
	if !sun.AllocateFromAtlas(atlas) {
		t.Fatal("cascade allocation should succeed on an empty 2048 atlas")
	}
	checkInvariants(t, atlas)

	view, proj := testCamera()
	sun.Update(math.Vec3{X: -0.3, Y: -0.9, Z: -0.3}, view, proj)

	// 6 cubemap faces at 256.
	point, err := NewCubemapShadow(nil, math.Vec3{X: 5, Y: 3, Z: -2}, 40, 0.1, 256)
	if err != nil {
		t.Fatalf("NewCubemapShadow failed: %v", err)
	}
	if !point.AllocateFromAtlas(atlas) {
		t.Fatal("cubemap allocation should succeed")
	}
	checkInvariants(t, atlas)

	regionsBefore := atlas.Stats().RegionCount
	if regionsBefore != 10 {
		t.Fatalf("expected 10 regions, got %d", regionsBefore)
	}

	// A 1024 spot map may or may not fit the fragmented remainder; either
	// way it must not disturb existing allocations.
	spot, err := NewSpotShadow(nil, SpotConfig{
		Position:  math.Vec3{Y: 20},
		Direction: math.Vec3{Y: -1},
		ConeAngle: float32(gomath.Pi / 2),
		Range:     60,
		NearPlane: 0.5,
	}, 1024)
	if err != nil {
		t.Fatalf("NewSpotShadow failed: %v", err)
	}

	ok := spot.AllocateFromAtlas(atlas)
	checkInvariants(t, atlas)

	wantRegions := regionsBefore
	if ok {
		wantRegions++
	}
	if got := atlas.Stats().RegionCount; got != wantRegions {
		t.Errorf("region count after spot attempt: got %d, want %d", got, wantRegions)
	}

	// Sun and point light regions are untouched.
	for i, c := range sun.Cascades() {
		if c.Region == nil {
			t.Errorf("cascade %d lost its region", i)
		}
	}
	for _, f := range point.Faces() {
		if f.Region == nil {
			t.Errorf("face %v lost its region", f.Face)
		}
	}

	// Tear down in reverse and verify the atlas drains completely.
	if ok {
		spot.FreeFromAtlas()
	}
	point.FreeFromAtlas()
	sun.FreeFromAtlas()

	stats := atlas.Stats()
	if stats.RegionCount != 0 {
		t.Errorf("expected empty atlas, got %d regions", stats.RegionCount)
	}
	if stats.FreePixels != 2048*2048 {
		t.Errorf("expected %d free pixels, got %d", 2048*2048, stats.FreePixels)
	}
	if atlas.Allocate(2048, 2048) == nil {
		t.Error("drained atlas should satisfy a full-size allocation")
	}
}
