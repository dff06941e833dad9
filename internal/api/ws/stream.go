package ws

import (
	"context"
	"errors"
	"net/url"

	"github.com/entropin/neolink/internal/api"
	"github.com/entropin/neolink/internal/neolink"
	"github.com/entropin/neolink/pkg/core"
	"github.com/entropin/neolink/pkg/h264/annexb"
)

// streamHandler - one binary message per media packet. First byte is
// the track index from the "medias" message, then Annex-B video or raw audio.
func streamHandler(ctx context.Context, tr *Transport, src string, query url.Values) error {
	stream, err := neolink.GetStream(src, query.Get("stream"))
	if err != nil {
		return err
	}

	medias := core.ParseQuery(query)
	if medias == nil {
		medias = []*core.Media{
			{Kind: core.KindVideo, Direction: core.DirectionSendonly, Codecs: []*core.Codec{{Name: core.CodecAny}}},
		}
	}

	prod := stream.Producer()

	var receivers []*core.Receiver
	for _, media := range medias {
		var receiver *core.Receiver

		switch media.Kind {
		case core.KindVideo:
			waitCtx, cancel := context.WithTimeout(ctx, api.WaitVideo)
			receiver, err = prod.Video(waitCtx)
			cancel()
			if err != nil {
				return err
			}
		case core.KindAudio:
			if receiver = prod.Audio(); receiver == nil {
				continue
			}
		}

		if media.MatchCodec(receiver.Codec) != nil {
			receivers = append(receivers, receiver)
		}
	}

	if len(receivers) == 0 {
		return errors.New("no matching tracks")
	}

	var info []string
	for _, receiver := range receivers {
		info = append(info, receiver.Codec.String())
	}
	tr.Write(&Message{Type: "medias", Value: info})

	cons := &core.Connection{
		ID:         core.NewID(),
		FormatName: "ws",
	}
	cons.WithRequest(tr.Request)

	for i, receiver := range receivers {
		track := byte(i)
		video := receiver.Media.Kind == core.KindVideo

		sender := core.NewSender(receiver.Media, receiver.Codec)
		sender.Handler = func(packet *core.Packet) {
			var payload []byte
			if video {
				payload = annexb.DecodeAVCC(packet.Payload, true)
			} else {
				payload = packet.Payload
			}
			tr.Write(append([]byte{track}, payload...))
		}
		sender.HandleRTP(receiver)

		cons.Medias = append(cons.Medias, receiver.Media)
		cons.Senders = append(cons.Senders, sender)
	}

	prod.AddConsumer(cons)

	log.Debug().Msgf("[api] ws consumer %s %s", stream, tr.Request.RemoteAddr)

	<-ctx.Done()

	prod.RemoveConsumer(cons)
	return nil
}
