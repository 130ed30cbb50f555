// Package main runs the shadow subsystem against a live OpenGL context:
// it builds a shared atlas, allocates cascaded, cubemap and spot shadows,
// and animates the sun direction while reporting atlas occupancy.
package main

import (
	"fmt"
	gomath "math"
	"os"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/umbra/internal/config"
	"github.com/Faultbox/umbra/internal/engine/shadow"
	"github.com/Faultbox/umbra/internal/engine/window"
	"github.com/Faultbox/umbra/internal/gpu"
	"github.com/Faultbox/umbra/internal/logger"
	"github.com/Faultbox/umbra/pkg/math"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("=== umbra shadow demo ===")

	if err := run(cfg, log); err != nil {
		log.Error("demo error", zap.Error(err))
		os.Exit(1)
	}

	log.Info("demo closed normally")
}

func run(cfg *config.Config, log *zap.Logger) error {
	win, err := window.New(window.Config{
		Title:      "umbra shadow demo",
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return fmt.Errorf("creating window: %w", err)
	}
	defer win.Close()

	if err := gl.Init(); err != nil {
		return fmt.Errorf("initializing OpenGL: %w", err)
	}

	device := gpu.NewGLDevice()
	defer device.Destroy()

	atlas, err := shadow.NewAtlas(device, log, cfg.Atlas.Size)
	if err != nil {
		return fmt.Errorf("creating atlas: %w", err)
	}
	defer atlas.Destroy()

	scheme, err := shadow.ParseSplitScheme(cfg.Cascades.SplitScheme)
	if err != nil {
		return err
	}

	sun, err := shadow.NewCascadeSet(log, cfg.Cascades.Count, cfg.Cascades.Resolution,
		cfg.Cascades.NearPlane, cfg.Cascades.FarPlane, scheme, cfg.Cascades.Lambda)
	if err != nil {
		return fmt.Errorf("creating cascade set: %w", err)
	}
	if !sun.AllocateFromAtlas(atlas) {
		return fmt.Errorf("atlas cannot hold %d cascades at %d", cfg.Cascades.Count, cfg.Cascades.Resolution)
	}

	point, err := shadow.NewCubemapShadow(log, math.Vec3{X: 5, Y: 3, Z: -2}, 40, 0.1, 256)
	if err != nil {
		return fmt.Errorf("creating cubemap shadow: %w", err)
	}
	if !point.AllocateFromAtlas(atlas) {
		log.Warn("point light shadow skipped, atlas full")
	}

	spot, err := shadow.NewSpotShadow(log, shadow.SpotConfig{
		Position:  math.Vec3{Y: 12},
		Direction: math.Vec3{Y: -1},
		ConeAngle: float32(gomath.Pi / 2.5),
		Range:     50,
		NearPlane: 0.2,
		Penumbra:  0.1,
	}, 512)
	if err != nil {
		return fmt.Errorf("creating spot shadow: %w", err)
	}
	if !spot.AllocateFromAtlas(atlas) {
		log.Warn("spot shadow skipped, atlas full")
	}

	profile, err := shadow.ParseBiasProfile(cfg.Bias.Profile)
	if err != nil {
		return err
	}
	bias := shadow.NewBiasPolicy(profile)
	log.Info("bias policy",
		zap.String("profile", bias.Profile.String()),
		zap.Float32("constant", bias.Bias.Constant),
		zap.Float32("slope", bias.Bias.Slope))

	width, height := win.GetSize()
	cameraView := math.LookAt(math.Vec3{X: 0, Y: 8, Z: 20}, math.Vec3{}, math.Vec3{Y: 1})
	cameraProj := math.Perspective(float32(gomath.Pi/4), float32(width)/float32(height),
		cfg.Cascades.NearPlane, cfg.Cascades.FarPlane)

	var frame int
	for !win.PollQuit() {
		atlas.Clear()

		// Sun orbits so every frame exercises the cascade refit.
		angle := float64(frame) * 0.002
		sunDir := math.Vec3{
			X: float32(gomath.Cos(angle)) * 0.5,
			Y: -0.8,
			Z: float32(gomath.Sin(angle)) * 0.5,
		}
		sun.Update(sunDir, cameraView, cameraProj)

		if frame%600 == 0 {
			stats := atlas.Stats()
			log.Info("atlas occupancy",
				zap.Int("regions", stats.RegionCount),
				zap.Int("allocatedPixels", stats.AllocatedPixels),
				zap.Int("freePixels", stats.FreePixels))

			groundBias := bias.CalculateBias(math.Vec3{Y: 1}, sunDir.Neg(), 25)
			log.Debug("ground plane bias", zap.Float32("bias", groundBias))
		}

		gl.ClearColor(0.1, 0.1, 0.12, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
		win.SwapBuffers()
		frame++
	}

	return nil
}
