package neolink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/entropin/neolink/internal/app"
	"github.com/entropin/neolink/pkg/bc"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func Init() error {
	var cfg struct {
		Cameras []*CameraConfig `yaml:"cameras"`
	}

	app.LoadConfig(&cfg)

	log = app.GetLogger("neolink")

	if err := validate(cfg.Cameras); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	cameras = cfg.Cameras
	streams = nil
	for _, cam := range cameras {
		for _, name := range cam.Streams() {
			streams = append(streams, newStream(cam, name))
		}
	}

	return nil
}

var ErrNotFound = errors.New("neolink: stream not found")

// Run - supervise all camera streams until context cancel
func Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, stream := range Streams() {
		stream := stream // per-iteration copy (go.mod targets go1.21)
		g.Go(func() error {
			log.Debug().Msgf("[neolink] %s: start", stream)
			stream.run(ctx)
			return nil
		})
	}

	return g.Wait()
}

func Streams() []*Stream {
	mu.Lock()
	defer mu.Unlock()
	return append([]*Stream(nil), streams...)
}

func Cameras() []*CameraConfig {
	mu.Lock()
	defer mu.Unlock()
	return append([]*CameraConfig(nil), cameras...)
}

// GetStream - by camera name and stream name, empty stream name means
// the first configured stream of the camera
func GetStream(camera, name string) (*Stream, error) {
	mu.Lock()
	defer mu.Unlock()

	for _, stream := range streams {
		if stream.Camera == camera && (name == "" || stream.Name == name) {
			return stream, nil
		}
	}
	return nil, ErrNotFound
}

var (
	log     zerolog.Logger
	mu      sync.Mutex
	cameras []*CameraConfig
	streams []*Stream
)

// Login - one-shot session with the camera from config, caller must Disconnect
func Login(ctx context.Context, name string) (*bc.Camera, error) {
	var cfg *CameraConfig
	for _, cam := range Cameras() {
		if cam.Name == name {
			cfg = cam
			break
		}
	}
	if cfg == nil {
		return nil, fmt.Errorf("neolink: camera %q not in config", name)
	}

	camera, err := bc.Connect(ctx, cfg.Address, cfg.ChannelID, cfg.Timeout, log)
	if err != nil {
		return nil, err
	}

	if _, err = camera.Login(cfg.Username, cfg.Password); err != nil {
		_ = camera.Disconnect()
		return nil, err
	}

	return camera, nil
}
