package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/proctorlab/Proctor/internal/core"
	"github.com/proctorlab/Proctor/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, cid domain.ConnID, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("readPump closing")
		ctl.disconnect(cid)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("readPump read error")
				return
			}
			ctl.handleSignal(cid, c, data)
		}
	}
}

// disconnect is the sole trigger for participant removal; Leave is
// idempotent so a repeated close is harmless.
func (ctl *Controller) disconnect(cid domain.ConnID) {
	if part, ok := ctl.Reg.Leave(cid); ok {
		ctl.Presence.OnDisconnect(part)
	}
}

func (ctl *Controller) handleSignal(cid domain.ConnID, c *WsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}
	if ctl.Metrics != nil {
		ctl.Metrics.IncSignalEvents()
	}

	switch env.Type {
	case "join-as-student":
		ctl.handleJoin(cid, c, data, domain.RoleStudent)
	case "join-as-proctor":
		ctl.handleJoin(cid, c, data, domain.RoleProctor)
	case "update-status":
		ctl.handleUpdateStatus(cid, c, data)
	case "stream-published":
		ctl.handleStreamPublished(cid, c, data)
	case "stream-stopped":
		ctl.handleStreamStopped(cid, c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c *WsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *WsConn, msg string) {
	ctl.sendJSON(c, map[string]any{"type": "error", "error": msg})
}

func (ctl *Controller) sendFrames(c *WsConn, frames []core.Frame) {
	for _, f := range frames {
		if f == nil {
			continue
		}
		_ = c.TrySend(f)
	}
}
