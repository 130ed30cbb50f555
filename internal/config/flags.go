package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagAtlasSize  = flag.Int("atlas-size", 0, "Shadow atlas size in pixels (power of 2)")
	flagCascades   = flag.Int("cascades", 0, "Number of directional light cascades (1-8)")
	flagResolution = flag.Int("cascade-resolution", 0, "Per-cascade resolution (power of 2)")
	flagProfile    = flag.String("bias-profile", "", "Depth bias profile: low, medium, high")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagAtlasSize > 0 {
		cfg.Atlas.Size = *flagAtlasSize
	}
	if *flagCascades > 0 {
		cfg.Cascades.Count = *flagCascades
	}
	if *flagResolution > 0 {
		cfg.Cascades.Resolution = *flagResolution
	}
	if *flagProfile != "" {
		cfg.Bias.Profile = *flagProfile
	}
}
