package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/entropin/neolink/internal/neolink"
	"github.com/entropin/neolink/pkg/core"
	"github.com/entropin/neolink/pkg/h264/annexb"
	"github.com/entropin/neolink/pkg/yaml"
)

// WaitVideo - how long the consumer waits for the first keyframe
var WaitVideo = 10 * time.Second

func camerasHandler(w http.ResponseWriter, r *http.Request) {
	var infos []*neolink.Info
	for _, stream := range neolink.Streams() {
		infos = append(infos, stream.Info())
	}
	ResponsePrettyJSON(w, infos)
}

// configHandler - effective cameras config without passwords
func configHandler(w http.ResponseWriter, r *http.Request) {
	type camera struct {
		Name      string        `yaml:"name"`
		Address   string        `yaml:"address"`
		Username  string        `yaml:"username"`
		Password  string        `yaml:"password,omitempty"`
		ChannelID uint8         `yaml:"channel_id"`
		Stream    string        `yaml:"stream"`
		Timeout   time.Duration `yaml:"timeout"`
	}

	var cfg struct {
		Cameras []camera `yaml:"cameras"`
	}
	for _, cam := range neolink.Cameras() {
		c := camera{
			Name:      cam.Name,
			Address:   cam.Address,
			Username:  cam.Username,
			ChannelID: cam.ChannelID,
			Stream:    cam.Stream,
			Timeout:   cam.Timeout,
		}
		if cam.Password != "" {
			c.Password = "***"
		}
		cfg.Cameras = append(cfg.Cameras, c)
	}

	b, err := yaml.Encode(cfg, 2)
	if err != nil {
		Error(w, err)
		return
	}
	Response(w, b, "application/yaml")
}

// streamH264Handler - raw Annex-B video of the camera stream
func streamH264Handler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	stream, err := neolink.GetStream(query.Get("src"), query.Get("stream"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	prod := stream.Producer()

	ctx, cancel := context.WithTimeout(r.Context(), WaitVideo)
	video, err := prod.Video(ctx)
	cancel()
	if err != nil {
		http.Error(w, "no video: "+err.Error(), http.StatusGatewayTimeout)
		return
	}

	if video.Codec.Name != core.CodecH264 {
		http.Error(w, "wrong codec: "+video.Codec.String(), http.StatusUnsupportedMediaType)
		return
	}

	wb := core.NewWriteBuffer(nil)

	sender := core.NewSender(video.Media, video.Codec)
	sender.Handler = func(packet *core.Packet) {
		// payload shared with other consumers
		_, _ = wb.Write(annexb.DecodeAVCC(packet.Payload, true))
	}
	sender.HandleRTP(video)

	cons := &core.Connection{
		ID:         core.NewID(),
		FormatName: "h264",
		Medias:     []*core.Media{video.Media},
		Senders:    []*core.Sender{sender},
	}
	cons.WithRequest(r)

	prod.AddConsumer(cons)
	defer prod.RemoveConsumer(cons)

	log.Debug().Msgf("[api] h264 consumer %s %s", stream, r.RemoteAddr)

	stop := context.AfterFunc(r.Context(), func() { _ = wb.Close() })
	defer stop()

	go func() {
		// producer stopped
		sender.Wait()
		_ = wb.Close()
	}()

	w.Header().Set("Content-Type", "video/h264")
	if _, err = wb.WriteTo(w); err != nil {
		log.Trace().Err(err).Msg("[api] h264")
	}
}

func Error(w http.ResponseWriter, err error) {
	log.Error().Err(err).Caller(1).Send()

	code := http.StatusInternalServerError
	if errors.Is(err, neolink.ErrNotFound) {
		code = http.StatusNotFound
	}
	http.Error(w, err.Error(), code)
}
