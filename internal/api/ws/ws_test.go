package ws

import (
	"encoding/hex"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/entropin/neolink/internal/api"
	"github.com/entropin/neolink/internal/app"
	"github.com/entropin/neolink/internal/neolink"
	"github.com/entropin/neolink/pkg/bc"
	"github.com/entropin/neolink/pkg/bcmedia"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var initOnce sync.Once

func newTestServer(t *testing.T) *httptest.Server {
	initOnce.Do(func() {
		app.Init([]string{`{log: {output: ""}, api: {listen: ""}, cameras: [{name: cam, address: "127.0.0.1:1", stream: subStream}]}`})
		require.Nil(t, neolink.Init())
		api.Init()
		Init()
	})

	srv := httptest.NewServer(api.Router)
	t.Cleanup(srv.Close)
	return srv
}

func TestStream(t *testing.T) {
	srv := newTestServer(t)

	stream, err := neolink.GetStream("cam", "")
	require.Nil(t, err)
	require.Equal(t, bc.StreamSub, stream.Name)
	prod := stream.Producer()

	iframe, _ := hex.DecodeString("00000001" + "6764001f" + "00000001" + "68ee3cb0" + "00000001" + "65888840")
	require.Nil(t, prod.Accept(&bcmedia.Unit{Kind: bcmedia.KindIFrame, Codec: bcmedia.CodecH264, Payload: iframe}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?src=cam&video=h264"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.Nil(t, err)
	defer conn.Close()

	require.Nil(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg struct {
		Type  string `json:"type"`
		Value any    `json:"value"`
	}
	require.Nil(t, conn.ReadJSON(&msg))
	require.Equal(t, "medias", msg.Type)

	require.Eventually(t, func() bool {
		return len(prod.Consumers()) == 1
	}, 5*time.Second, 5*time.Millisecond)

	pframe, _ := hex.DecodeString("00000001419a")
	require.Nil(t, prod.Accept(&bcmedia.Unit{Kind: bcmedia.KindPFrame, Codec: bcmedia.CodecH264, Payload: pframe}))

	typ, b, err := conn.ReadMessage()
	require.Nil(t, err)
	require.Equal(t, websocket.BinaryMessage, typ)
	require.Equal(t, "00"+"00000001419a", hex.EncodeToString(b))

	require.Nil(t, conn.WriteJSON(map[string]string{"type": "cameras"}))
	require.Nil(t, conn.ReadJSON(&msg))
	require.Equal(t, "cameras", msg.Type)
	require.Len(t, msg.Value, 1)

	_ = conn.Close()

	require.Eventually(t, func() bool {
		return len(prod.Consumers()) == 0
	}, 5*time.Second, 5*time.Millisecond)
}

func TestStreamNotFound(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?src=unknown"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.Nil(t, err)
	defer conn.Close()

	require.Nil(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}
	require.Nil(t, conn.ReadJSON(&msg))
	require.Equal(t, "error", msg.Type)
	require.Contains(t, msg.Value, "not found")
}
