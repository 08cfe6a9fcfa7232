// Package signal is the websocket adapter: one controller per process,
// one buffered connection wrapper per socket.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/proctorlab/Proctor/internal/config"
	"github.com/proctorlab/Proctor/internal/core"
	"github.com/proctorlab/Proctor/internal/domain"
	"github.com/proctorlab/Proctor/internal/metrics"
)

var ErrBackpressure = errors.New("backpressure")

// Locator resolves the fallback viewing URL for a stream name; the media
// provisioner implements it.
type Locator interface {
	PlaybackURL(domain.StreamName) string
}

type Controller struct {
	Reg      *core.Registry
	Presence *core.Presence
	Metrics  *metrics.Metrics
	Locator  Locator

	readLimit  int64
	sendBuffer int
	upgrader   websocket.Upgrader
}

func NewController(cfg *config.Config, reg *core.Registry, presence *core.Presence, m *metrics.Metrics, loc Locator) *Controller {
	return &Controller{
		Reg:        reg,
		Presence:   presence,
		Metrics:    m,
		Locator:    loc,
		readLimit:  cfg.ReadLimit,
		sendBuffer: cfg.SendBuffer,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(cfg.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and runs the connection's pumps. Every
// socket gets its own identity: a browser that reconnects (or opens a second
// tab) must not share a binding with its earlier socket, or the old socket's
// close would tear down the new one's state. The client-token cookie only
// ties sockets to a browser session in the logs.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	cid := domain.ConnID(uuid.NewString())
	log.Info().Str("module", "signal").
		Str("conn", string(cid)).
		Str("session", c.GetString("client_token")).
		Msg("new WS connection")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.sendBuffer),
	}
	ctl.Reg.Bind(cid, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, cid, conn)
}
