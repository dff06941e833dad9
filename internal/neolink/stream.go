package neolink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/entropin/neolink/pkg/bc"
	"github.com/entropin/neolink/pkg/bcmedia"
	"github.com/entropin/neolink/pkg/core"
)

type State string

const (
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateBackoff    State = "backoff"
	StateAuthFailed State = "auth_failed"
	StateStopped    State = "stopped"
)

var (
	minBackoff = time.Second
	maxBackoff = time.Minute
	keepalive  = 10 * time.Second
)

// Stream - supervisor of one camera stream, owns connection lifecycle
// and feeds the Producer across reconnects
type Stream struct {
	Camera string
	Name   string

	cfg      *CameraConfig
	producer *bc.Producer

	mu       sync.Mutex
	state    State
	lastErr  error
	since    time.Time
	device   *bc.DeviceInfo
	connects int
}

func newStream(cfg *CameraConfig, name string) *Stream {
	return &Stream{
		Camera:   cfg.Name,
		Name:     name,
		cfg:      cfg,
		producer: bc.NewProducer(cfg.Name+"/"+name, log),
		state:    StateStopped,
		since:    time.Now(),
	}
}

func (s *Stream) String() string {
	return s.Camera + "/" + s.Name
}

func (s *Stream) Producer() *bc.Producer {
	return s.producer
}

// run - reconnect loop, returns only on context cancel or terminal error
func (s *Stream) run(ctx context.Context) {
	delay := minBackoff

	for {
		s.setState(StateConnecting, nil)

		streamed, err := s.session(ctx)
		if ctx.Err() != nil {
			s.setState(StateStopped, nil)
			return
		}

		if bc.IsTerminal(err) {
			log.Error().Err(err).Msgf("[neolink] %s: stop", s)
			s.setState(StateAuthFailed, err)
			return
		}

		if streamed {
			delay = minBackoff
		}

		log.Warn().Err(err).Msgf("[neolink] %s: retry in %s", s, delay)
		s.setState(StateBackoff, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			s.setState(StateStopped, nil)
			return
		}

		if delay *= 2; delay > maxBackoff {
			delay = maxBackoff
		}
	}
}

// session - connect, login and stream until error
func (s *Stream) session(ctx context.Context) (streamed bool, err error) {
	camera, err := bc.Connect(ctx, s.cfg.Address, s.cfg.ChannelID, s.cfg.Timeout, log)
	if err != nil {
		return false, err
	}
	defer camera.Disconnect()

	connectsTotal.WithLabelValues(s.Camera).Inc()

	info, err := camera.Login(s.cfg.Username, s.cfg.Password)
	if err != nil {
		loginFailures.WithLabelValues(s.Camera, loginReason(err)).Inc()
		return false, err
	}
	defer camera.Logout()

	log.Info().Msgf("[neolink] %s: connected %s", s, camera.Conn().RemoteAddr())

	s.mu.Lock()
	s.device = info
	s.connects++
	s.mu.Unlock()

	s.setState(StateStreaming, nil)

	cameraUp.WithLabelValues(s.Camera).Inc()
	defer cameraUp.WithLabelValues(s.Camera).Dec()

	ping := core.NewWorker(keepalive, func() time.Duration {
		if err := camera.Ping(); err != nil {
			log.Debug().Err(err).Msgf("[neolink] %s: ping", s)
			_ = camera.Disconnect()
			return 0
		}
		return keepalive
	})
	defer ping.Stop()

	units := mediaUnits.MustCurryWith(map[string]string{"camera": s.Camera})
	bytes := mediaBytes.WithLabelValues(s.Camera)

	sink := bcmedia.SinkFunc(func(unit *bcmedia.Unit) error {
		units.WithLabelValues(unit.Kind.String()).Inc()
		if unit.IsVideo() || unit.IsAudio() {
			bytes.Add(float64(len(unit.Payload)))
		}
		return s.producer.Accept(unit)
	})

	err = camera.StreamTo(ctx, s.Name, sink)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return true, err
}

func (s *Stream) setState(state State, err error) {
	s.mu.Lock()
	if s.state != state {
		s.state = state
		s.since = time.Now()
	}
	if err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()
}

func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info - stream state for the API
type Info struct {
	Camera    string             `json:"camera"`
	Stream    string             `json:"stream"`
	Address   string             `json:"address"`
	State     State              `json:"state"`
	Since     time.Time          `json:"since"`
	LastError string             `json:"last_error,omitempty"`
	Connects  int                `json:"connects"`
	Device    *bc.DeviceInfo     `json:"device,omitempty"`
	Width     int                `json:"width,omitempty"`
	Height    int                `json:"height,omitempty"`
	FPS       uint8              `json:"fps,omitempty"`
	Medias    []*core.Media      `json:"medias,omitempty"`
	Consumers []*core.Connection `json:"consumers,omitempty"`
}

func (s *Stream) Info() *Info {
	width, height, fps := s.producer.Resolution()

	s.mu.Lock()
	defer s.mu.Unlock()

	info := &Info{
		Camera:    s.Camera,
		Stream:    s.Name,
		Address:   s.cfg.Address,
		State:     s.state,
		Since:     s.since,
		Connects:  s.connects,
		Device:    s.device,
		Width:     width,
		Height:    height,
		FPS:       fps,
		Medias:    s.producer.MediasInfo(),
		Consumers: s.producer.Consumers(),
	}
	if s.lastErr != nil {
		info.LastError = s.lastErr.Error()
	}
	return info
}
