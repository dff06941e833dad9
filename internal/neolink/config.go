package neolink

import (
	"errors"
	"fmt"
	"time"

	"github.com/entropin/neolink/pkg/bc"
)

const StreamBoth = "both"

type CameraConfig struct {
	Name      string        `yaml:"name" json:"name"`
	Address   string        `yaml:"address" json:"address"`
	Username  string        `yaml:"username" json:"username"`
	Password  string        `yaml:"password" json:"-"`
	ChannelID uint8         `yaml:"channel_id" json:"channel_id"`
	Stream    string        `yaml:"stream" json:"stream"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// Streams - camera stream names for the config value
func (c *CameraConfig) Streams() []string {
	switch c.Stream {
	case bc.StreamMain, bc.StreamSub:
		return []string{c.Stream}
	}
	return []string{bc.StreamMain, bc.StreamSub}
}

// validate - check cameras list and fill defaults
func validate(cameras []*CameraConfig) error {
	names := map[string]bool{}

	for i, cam := range cameras {
		if cam == nil {
			return fmt.Errorf("neolink: camera #%d is empty", i)
		}
		if cam.Name == "" {
			return fmt.Errorf("neolink: camera #%d without name", i)
		}
		if names[cam.Name] {
			return fmt.Errorf("neolink: duplicate camera name %q", cam.Name)
		}
		names[cam.Name] = true

		if cam.Address == "" {
			return fmt.Errorf("neolink: camera %q without address", cam.Name)
		}

		switch cam.Stream {
		case "":
			cam.Stream = StreamBoth
		case bc.StreamMain, bc.StreamSub, StreamBoth:
		default:
			return fmt.Errorf("neolink: camera %q has wrong stream %q", cam.Name, cam.Stream)
		}

		if cam.Username == "" {
			cam.Username = "admin"
		}
		if cam.Timeout <= 0 {
			cam.Timeout = bc.DefaultTimeout
		}
	}

	if len(cameras) == 0 {
		return errors.New("neolink: no cameras in config")
	}

	return nil
}
