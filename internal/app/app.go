package app

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

var Version = "0.1.0"

var ConfigPath string
var Info = map[string]any{
	"version": Version,
}

// Init - load config from paths or inline YAML and setup logs,
// must be called before other modules Init
func Init(confs []string) {
	initConfig(confs)
	initLogger()

	// pkg/bc uses global logger by default
	log.Logger = Logger

	platform := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	Logger.Info().Str("version", Version).Str("platform", platform).Msg("neolink")
	Logger.Debug().Str("version", runtime.Version()).Str("vcs", Revision()).Msg("build")

	if ConfigPath != "" {
		Logger.Info().Str("path", ConfigPath).Msg("config")
	}
}

// Revision - short VCS revision from build info
func Revision() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				if len(setting.Value) > 7 {
					return setting.Value[:7]
				}
				return setting.Value
			}
		}
	}
	return ""
}
