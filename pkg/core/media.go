package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Media - one direction of one kind with the list of possible codecs
type Media struct {
	Kind      string   `json:"kind,omitempty"`      // video or audio
	Direction string   `json:"direction,omitempty"` // sendonly, recvonly
	Codecs    []*Codec `json:"codecs,omitempty"`

	ID string `json:"id,omitempty"`
}

func (m *Media) String() string {
	s := fmt.Sprintf("%s, %s", m.Kind, m.Direction)
	for _, codec := range m.Codecs {
		name := codec.String()

		if strings.Contains(s, name) {
			continue
		}

		s += ", " + name
	}
	return s
}

func (m *Media) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Media) MatchCodec(remote *Codec) *Codec {
	for _, codec := range m.Codecs {
		if codec.Match(remote) {
			return codec
		}
	}
	return nil
}

// ParseQuery - consumer medias from URL query: video=h264,h265&audio=aac
func ParseQuery(query map[string][]string) (medias []*Media) {
	for _, kind := range []string{KindVideo, KindAudio} {
		for _, value := range query[kind] {
			media := &Media{Kind: kind, Direction: DirectionSendonly}

			for _, name := range strings.Split(value, ",") {
				name = strings.ToUpper(name)

				switch name {
				case "", "COPY":
					name = CodecAny
				case "AAC":
					name = CodecAAC
				case "PCM":
					name = CodecPCML
				}

				media.Codecs = append(media.Codecs, &Codec{Name: name})
			}

			medias = append(medias, media)
		}
	}

	return
}
