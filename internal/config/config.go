// Package config handles shadow subsystem configuration loading and management.
package config

import "fmt"

// Config holds all shadow subsystem settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Atlas    AtlasConfig    `yaml:"atlas"`
	Cascades CascadeConfig  `yaml:"cascades"`
	Bias     BiasConfig     `yaml:"bias"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display settings for the demo window.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// AtlasConfig holds shadow atlas settings.
type AtlasConfig struct {
	Size int `yaml:"size"` // Texture edge length in pixels, power of 2
}

// CascadeConfig holds cascaded shadow map settings for the directional light.
type CascadeConfig struct {
	Count       int     `yaml:"count"`        // Number of cascades, 1-8
	Resolution  int     `yaml:"resolution"`   // Per-cascade resolution, power of 2
	NearPlane   float32 `yaml:"near_plane"`   //
	FarPlane    float32 `yaml:"far_plane"`    //
	SplitScheme string  `yaml:"split_scheme"` // uniform, logarithmic, practical
	Lambda      float32 `yaml:"lambda"`       // Blend factor for practical splits, 0-1
}

// BiasConfig holds depth bias settings.
type BiasConfig struct {
	Profile string `yaml:"profile"` // low, medium, high
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Atlas: AtlasConfig{
			Size: 4096,
		},
		Cascades: CascadeConfig{
			Count:       4,
			Resolution:  1024,
			NearPlane:   0.1,
			FarPlane:    500,
			SplitScheme: "practical",
			Lambda:      0.75,
		},
		Bias: BiasConfig{
			Profile: "medium",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !isPowerOfTwo(c.Atlas.Size) {
		return fmt.Errorf("atlas size must be a power of 2, got %d", c.Atlas.Size)
	}
	if c.Cascades.Count < 1 || c.Cascades.Count > 8 {
		return fmt.Errorf("cascade count must be 1-8, got %d", c.Cascades.Count)
	}
	if !isPowerOfTwo(c.Cascades.Resolution) {
		return fmt.Errorf("cascade resolution must be a power of 2, got %d", c.Cascades.Resolution)
	}
	if c.Cascades.NearPlane <= 0 || c.Cascades.FarPlane <= c.Cascades.NearPlane {
		return fmt.Errorf("invalid cascade planes: near %f, far %f", c.Cascades.NearPlane, c.Cascades.FarPlane)
	}
	switch c.Cascades.SplitScheme {
	case "uniform", "logarithmic", "practical":
	default:
		return fmt.Errorf("unknown split scheme %q", c.Cascades.SplitScheme)
	}
	if c.Cascades.Lambda < 0 || c.Cascades.Lambda > 1 {
		return fmt.Errorf("lambda must be in [0,1], got %f", c.Cascades.Lambda)
	}
	switch c.Bias.Profile {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("unknown bias profile %q", c.Bias.Profile)
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
