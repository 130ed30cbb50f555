package shadow

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/umbra/pkg/math"
)

// BiasProfile selects a depth bias preset.
type BiasProfile int

const (
	BiasLow BiasProfile = iota
	BiasMedium
	BiasHigh
	BiasCustom
)

// String returns the profile name as used in configuration files.
func (p BiasProfile) String() string {
	switch p {
	case BiasLow:
		return "low"
	case BiasMedium:
		return "medium"
	case BiasHigh:
		return "high"
	case BiasCustom:
		return "custom"
	default:
		return fmt.Sprintf("BiasProfile(%d)", int(p))
	}
}

// ParseBiasProfile converts a configuration string to a BiasProfile.
func ParseBiasProfile(name string) (BiasProfile, error) {
	switch name {
	case "low":
		return BiasLow, nil
	case "medium":
		return BiasMedium, nil
	case "high":
		return BiasHigh, nil
	case "custom":
		return BiasCustom, nil
	default:
		return 0, fmt.Errorf("%w: unknown bias profile %q", ErrInvalidConfig, name)
	}
}

// BiasSettings are the depth bias scalars fed to the shading pass.
type BiasSettings struct {
	Constant float32
	Slope    float32
	Normal   float32
	Min      float32
	Max      float32
}

// LightLeakSettings control the shadow sample validation heuristics.
type LightLeakSettings struct {
	Enabled             bool
	MaxDiscontinuity    float32
	ReceiverPlaneOffset float32
}

// EdgeCaseSettings enable extra bias handling for problematic geometry.
type EdgeCaseSettings struct {
	HandleLargeObjects    bool
	LargeObjectThreshold  float32
	HandleExtremeAngles   bool
	ExtremeAngleThreshold float32 // Radians, in (0, pi]
	UseAdaptiveBias       bool
}

// BiasPolicy computes per-surface depth bias and validates shadow samples.
// It is pure CPU math consulted by the shading pass each frame; a live
// policy is a mutable copy of a preset, validated on every change.
type BiasPolicy struct {
	Profile   BiasProfile
	Bias      BiasSettings
	LightLeak LightLeakSettings
	EdgeCase  EdgeCaseSettings
}

// presets hold the immutable per-profile defaults. Bias strictly increases
// from low to high; leak detection is off for low and tightens upward.
var presets = map[BiasProfile]BiasPolicy{
	BiasLow: {
		Profile: BiasLow,
		Bias: BiasSettings{
			Constant: 0.0005,
			Slope:    0.001,
			Normal:   0.001,
			Min:      0.0001,
			Max:      0.005,
		},
		LightLeak: LightLeakSettings{
			Enabled:             false,
			MaxDiscontinuity:    1.0,
			ReceiverPlaneOffset: 0.001,
		},
		EdgeCase: EdgeCaseSettings{
			LargeObjectThreshold:  100,
			ExtremeAngleThreshold: 1.3,
		},
	},
	BiasMedium: {
		Profile: BiasMedium,
		Bias: BiasSettings{
			Constant: 0.001,
			Slope:    0.002,
			Normal:   0.002,
			Min:      0.0002,
			Max:      0.01,
		},
		LightLeak: LightLeakSettings{
			Enabled:             true,
			MaxDiscontinuity:    0.5,
			ReceiverPlaneOffset: 0.002,
		},
		EdgeCase: EdgeCaseSettings{
			LargeObjectThreshold:  100,
			HandleExtremeAngles:   true,
			ExtremeAngleThreshold: 1.3,
		},
	},
	BiasHigh: {
		Profile: BiasHigh,
		Bias: BiasSettings{
			Constant: 0.002,
			Slope:    0.004,
			Normal:   0.004,
			Min:      0.0005,
			Max:      0.02,
		},
		LightLeak: LightLeakSettings{
			Enabled:             true,
			MaxDiscontinuity:    0.25,
			ReceiverPlaneOffset: 0.004,
		},
		EdgeCase: EdgeCaseSettings{
			HandleLargeObjects:    true,
			LargeObjectThreshold:  100,
			HandleExtremeAngles:   true,
			ExtremeAngleThreshold: 1.2,
			UseAdaptiveBias:       true,
		},
	},
}

// NewBiasPolicy returns a live copy of the preset for the given profile.
// BiasCustom starts from the medium preset and is meant to be adjusted
// through the Set methods.
func NewBiasPolicy(profile BiasProfile) *BiasPolicy {
	preset, ok := presets[profile]
	if !ok {
		preset = presets[BiasMedium]
		preset.Profile = BiasCustom
	}
	p := preset
	return &p
}

// SetBias validates and commits new bias scalars, marking the policy
// custom. Nothing changes when validation fails.
func (p *BiasPolicy) SetBias(bias BiasSettings) error {
	if bias.Min > bias.Max {
		return fmt.Errorf("%w: minBias %g > maxBias %g", ErrInvalidConfig, bias.Min, bias.Max)
	}
	if bias.Constant < 0 || bias.Slope < 0 || bias.Normal < 0 || bias.Min < 0 {
		return fmt.Errorf("%w: bias values must be non-negative", ErrInvalidConfig)
	}
	p.Bias = bias
	p.Profile = BiasCustom
	return nil
}

// SetLightLeak validates and commits new light leak settings, marking the
// policy custom.
func (p *BiasPolicy) SetLightLeak(leak LightLeakSettings) error {
	if leak.MaxDiscontinuity < 0 {
		return fmt.Errorf("%w: maxDiscontinuity %g is negative", ErrInvalidConfig, leak.MaxDiscontinuity)
	}
	if leak.ReceiverPlaneOffset < 0 {
		return fmt.Errorf("%w: receiverPlaneOffset %g is negative", ErrInvalidConfig, leak.ReceiverPlaneOffset)
	}
	p.LightLeak = leak
	p.Profile = BiasCustom
	return nil
}

// SetEdgeCases validates and commits new edge case settings, marking the
// policy custom.
func (p *BiasPolicy) SetEdgeCases(edge EdgeCaseSettings) error {
	if edge.LargeObjectThreshold <= 0 {
		return fmt.Errorf("%w: largeObjectThreshold %g must be positive", ErrInvalidConfig, edge.LargeObjectThreshold)
	}
	if edge.ExtremeAngleThreshold <= 0 || edge.ExtremeAngleThreshold > float32(gomath.Pi) {
		return fmt.Errorf("%w: extremeAngleThreshold %g outside (0, pi]", ErrInvalidConfig, edge.ExtremeAngleThreshold)
	}
	p.EdgeCase = edge
	p.Profile = BiasCustom
	return nil
}

// CalculateBias computes the depth bias for a surface with the given
// normal, direction to the light, and distance from the camera. Inputs are
// a programmer contract: non-finite vectors, a zero-length normal or light
// direction, or a negative or non-finite distance panic.
func (p *BiasPolicy) CalculateBias(normal, lightDir math.Vec3, distance float32) float32 {
	if !normal.IsFinite() || normal.Length() == 0 {
		panic("shadow: CalculateBias normal must be a non-zero finite vector")
	}
	if !lightDir.IsFinite() || lightDir.Length() == 0 {
		panic("shadow: CalculateBias lightDir must be a non-zero finite vector")
	}
	if distance < 0 || gomath.IsNaN(float64(distance)) || gomath.IsInf(float64(distance), 0) {
		panic("shadow: CalculateBias distance must be non-negative and finite")
	}

	// Clamp before acos: floating point overshoot past 1 would yield NaN.
	cosTheta := clamp32(normal.Normalize().Dot(lightDir.Normalize()), 0, 1)
	angle := float32(gomath.Acos(float64(cosTheta)))
	sinTheta := float32(gomath.Sin(float64(angle)))

	bias := p.Bias.Constant + p.Bias.Slope*sinTheta

	// Surfaces nearly parallel to the light need extra bias, growing with
	// how far past the threshold the angle is, at double weight.
	if p.EdgeCase.HandleExtremeAngles && angle > p.EdgeCase.ExtremeAngleThreshold {
		bias += (angle - p.EdgeCase.ExtremeAngleThreshold) * p.Bias.Slope * 2
	}

	if p.EdgeCase.UseAdaptiveBias {
		factor := 1 + distance/p.EdgeCase.LargeObjectThreshold
		if factor > 2 {
			factor = 2
		}
		bias *= factor
	}

	return clamp32(bias, p.Bias.Min, p.Bias.Max)
}

// distanceEpsilon guards the leak checks against a light coinciding with a
// surface point.
const distanceEpsilon = 1e-6

// ValidateShadow applies the light leak heuristics to one shadow sample.
// It returns true unconditionally when leak detection is disabled;
// otherwise false for degenerate geometry, depth discontinuities past the
// profile limit, occluders behind the receiver, or back-facing receivers.
func (p *BiasPolicy) ValidateShadow(receiverPos, occluderPos, lightPos, normal math.Vec3) bool {
	if !p.LightLeak.Enabled {
		return true
	}

	receiverDist := lightPos.Distance(receiverPos)
	occluderDist := lightPos.Distance(occluderPos)
	if receiverDist < distanceEpsilon || occluderDist < distanceEpsilon {
		return false
	}

	if abs32(receiverDist-occluderDist) > p.LightLeak.MaxDiscontinuity {
		return false
	}

	// An occluder farther from the light than the receiver cannot cast
	// this shadow.
	if occluderDist > receiverDist {
		return false
	}

	lightDir := lightPos.Sub(receiverPos).Normalize()
	return normal.Dot(lightDir) > 0
}

// CalculateReceiverPlaneOffset scales the base receiver plane offset up as
// the surface becomes more parallel to the light direction.
func (p *BiasPolicy) CalculateReceiverPlaneOffset(normal, lightDir math.Vec3) float32 {
	cosTheta := normal.Normalize().Dot(lightDir.Normalize())
	return p.LightLeak.ReceiverPlaneOffset * (1 + 2*(1-abs32(cosTheta)))
}

// AutoTuneShadowBias derives a custom policy from scene characteristics,
// starting from the medium preset. sceneBounds is the scene's bounding
// radius in world units; avgLightDistance the mean light-to-surface
// distance.
func AutoTuneShadowBias(sceneBounds, avgLightDistance float32, hasLargeObjects, hasExtremeAngles bool) *BiasPolicy {
	p := NewBiasPolicy(BiasMedium)

	// Scale every bias field, min/max included, so min <= max survives.
	scale := sceneBounds / 100
	p.Bias.Constant *= scale
	p.Bias.Slope *= scale
	p.Bias.Normal *= scale
	p.Bias.Min *= scale
	p.Bias.Max *= scale

	if hasLargeObjects {
		p.Bias.Max *= 2
		p.EdgeCase.HandleLargeObjects = true
		p.EdgeCase.UseAdaptiveBias = true
	}

	if hasExtremeAngles {
		p.Bias.Slope *= 1.5
		p.EdgeCase.HandleExtremeAngles = true
	}

	if avgLightDistance > 100 {
		p.LightLeak.MaxDiscontinuity = avgLightDistance * 0.05
	}

	p.Profile = BiasCustom
	return p
}

func clamp32(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
