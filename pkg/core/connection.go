package core

import (
	"io"
	"net/http"
)

// Connection - common info about producer or consumer
// - FormatName and Protocol used for info about Connection
// - Transport used for auto closing on Stop
type Connection struct {
	ID         uint32 `json:"id,omitempty"`
	FormatName string `json:"format_name,omitempty"` // bc, h264, ws...
	Protocol   string `json:"protocol,omitempty"`    // tcp, http, ws
	RemoteAddr string `json:"remote_addr,omitempty"` // host:port other info
	Source     string `json:"source,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`

	Medias    []*Media    `json:"medias,omitempty"`
	Receivers []*Receiver `json:"receivers,omitempty"`
	Senders   []*Sender   `json:"senders,omitempty"`

	Transport any `json:"-"`
}

// GetTrack - receiver for the codec, created on first call
func (c *Connection) GetTrack(media *Media, codec *Codec) (*Receiver, error) {
	for _, receiver := range c.Receivers {
		if receiver.Codec == codec {
			return receiver, nil
		}
	}
	receiver := NewReceiver(media, codec)
	c.Receivers = append(c.Receivers, receiver)
	return receiver, nil
}

func (c *Connection) Stop() error {
	for _, receiver := range c.Receivers {
		receiver.Close()
	}
	for _, sender := range c.Senders {
		sender.Close()
	}
	if closer, ok := c.Transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Connection) WithRequest(r *http.Request) {
	if r.Header.Get("Upgrade") == "websocket" {
		c.Protocol = "ws"
	} else {
		c.Protocol = "http"
	}

	c.RemoteAddr = r.RemoteAddr
	if remote := r.Header.Get("X-Forwarded-For"); remote != "" {
		c.RemoteAddr += " forwarded " + remote
	}

	c.UserAgent = r.UserAgent()
}
