package math

import (
	"math"
	"testing"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	// Diagonal should be 1
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	// Off-diagonal should be 0
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	id := Identity()
	result := m.Mul(id)

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTransformPoint(t *testing.T) {
	// Translate by (10, 20, 30)
	m := Translate(10, 20, 30)
	p := [3]float32{1, 2, 3}
	result := m.TransformPoint(p)

	expected := [3]float32{11, 22, 33}
	if result != expected {
		t.Errorf("TransformPoint: got %v, want %v", result, expected)
	}
}

func TestPerspective(t *testing.T) {
	fov := float32(math.Pi / 4) // 45 degrees
	aspect := float32(1.0)
	near := float32(0.1)
	far := float32(100.0)

	m := Perspective(fov, aspect, near, far)

	// Should be a valid projection matrix (not identity)
	if m[0] == 0 || m[5] == 0 {
		t.Error("Perspective should have non-zero elements")
	}
	// Element [15] should be 0 for perspective projection
	if m[15] != 0 {
		t.Errorf("Perspective [15] should be 0, got %f", m[15])
	}
	// Element [11] should be -1 for perspective projection
	if m[11] != -1 {
		t.Errorf("Perspective [11] should be -1, got %f", m[11])
	}
}

func TestOrthoMapsBoundsToNDC(t *testing.T) {
	m := Ortho(-10, 10, -5, 5, 1, 100)

	// Center of the box maps to NDC origin in X/Y.
	p := m.TransformPoint([3]float32{0, 0, -50.5})
	if absf(p[0]) > 1e-5 || absf(p[1]) > 1e-5 {
		t.Errorf("Ortho center: got (%f, %f), want (0, 0)", p[0], p[1])
	}

	// Right edge maps to +1.
	p = m.TransformPoint([3]float32{10, 0, -50.5})
	if absf(p[0]-1) > 1e-5 {
		t.Errorf("Ortho right edge: got %f, want 1", p[0])
	}
}

func TestLookAt(t *testing.T) {
	eye := Vec3{0, 0, 5}
	center := Vec3{0, 0, 0}
	up := Vec3{0, 1, 0}

	m := LookAt(eye, center, up)

	if m[15] != 1 {
		t.Errorf("LookAt [15] should be 1, got %f", m[15])
	}

	// The eye position should map to the view-space origin.
	p := m.TransformPoint([3]float32{eye.X, eye.Y, eye.Z})
	if absf(p[0]) > 1e-5 || absf(p[1]) > 1e-5 || absf(p[2]) > 1e-5 {
		t.Errorf("LookAt eye should map to origin, got %v", p)
	}
}

func TestInverseOK(t *testing.T) {
	m := Translate(3, -7, 2).Mul(Scale(2, 2, 2))
	inv, ok := m.InverseOK()
	if !ok {
		t.Fatal("InverseOK reported invertible matrix as singular")
	}

	// M * M^-1 should be identity.
	r := m.Mul(inv)
	id := Identity()
	for i := 0; i < 16; i++ {
		if absf(r[i]-id[i]) > 1e-5 {
			t.Errorf("M * M^-1 element %d: got %f, want %f", i, r[i], id[i])
		}
	}
}

func TestInverseOKSingular(t *testing.T) {
	// Zero scale collapses the matrix to rank < 4.
	m := Scale(0, 1, 1)
	if _, ok := m.InverseOK(); ok {
		t.Error("InverseOK should report singular matrix")
	}

	var zero Mat4
	if _, ok := zero.InverseOK(); ok {
		t.Error("InverseOK should report zero matrix as singular")
	}
}

func TestInverseSingularReturnsIdentity(t *testing.T) {
	var zero Mat4
	inv := zero.Inverse()
	if inv != Identity() {
		t.Error("Inverse of singular matrix should be identity")
	}
}

func TestDeterminant(t *testing.T) {
	if d := Identity().Determinant(); absf(d-1) > 1e-6 {
		t.Errorf("Identity determinant: got %f, want 1", d)
	}
	if d := Scale(2, 3, 4).Determinant(); absf(d-24) > 1e-4 {
		t.Errorf("Scale(2,3,4) determinant: got %f, want 24", d)
	}
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
