package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/entropin/neolink/pkg/yaml"
)

// LoadConfig - apply all configs to v in order, later values win
func LoadConfig(v any) {
	for _, data := range configs {
		if err := yaml.Unmarshal(data, v); err != nil {
			Logger.Warn().Err(err).Msg("[app] read config")
		}
	}
}

var configs [][]byte

func initConfig(confs []string) {
	configs = nil

	if confs == nil {
		confs = []string{"neolink.yaml"}
	}

	for _, conf := range confs {
		if len(conf) == 0 {
			continue
		}
		if conf[0] == '{' {
			// config as raw YAML or JSON
			configs = append(configs, yaml.ExpandEnv([]byte(conf)))
		} else if data := parseConfString(conf); data != nil {
			configs = append(configs, data)
		} else {
			// config as file
			if ConfigPath == "" {
				ConfigPath = conf
			}

			if data, _ = os.ReadFile(conf); data == nil {
				continue
			}

			configs = append(configs, yaml.ExpandEnv(data))
		}
	}

	if ConfigPath != "" {
		if !filepath.IsAbs(ConfigPath) {
			if cwd, err := os.Getwd(); err == nil {
				ConfigPath = filepath.Join(cwd, ConfigPath)
			}
		}
		Info["config_path"] = ConfigPath
	}
}

func parseConfString(s string) []byte {
	i := strings.IndexByte(s, '=')
	if i < 0 {
		return nil
	}

	items := strings.Split(s[:i], ".")
	if len(items) < 2 {
		return nil
	}

	// `log.level=trace` => `{log: {level: trace}}`
	data := flowMapping(items, s[i+1:])

	// values like `:8080` are not valid inside a flow mapping
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		data = flowMapping(items, strconv.Quote(s[i+1:]))
	}

	return data
}

func flowMapping(items []string, value string) []byte {
	var pre, suf string
	for _, item := range items {
		pre += "{" + item + ": "
		suf += "}"
	}
	return []byte(pre + value + suf)
}
