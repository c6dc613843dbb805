package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"npbc-dashboard/internal/poller"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12
)

type wsEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	// the dashboard is meant for a trusted home network
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConnect pushes the dashboard payload on connect and after every
// published cycle.
func (h *Handler) wsConnect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	views, cancel := h.source.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go h.startReader(conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := h.sendView(c, conn, h.source.View()); err != nil {
		h.logger.Debug().Err(err).Msg("websocket initial write failed")
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		case view, ok := <-views:
			if !ok {
				return
			}
			if err := h.sendView(c, conn, view); err != nil {
				h.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

// startReader drains client frames so control messages are processed and
// disconnects are noticed.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) sendView(c *gin.Context, conn *websocket.Conn, view poller.View) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: "view", Data: h.payload(c.Request.Context(), view)})
}
