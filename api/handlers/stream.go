package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/swachhsnap-api/api"
	"github.com/linesmerrill/swachhsnap-api/config"
	"github.com/linesmerrill/swachhsnap-api/databases"
	"github.com/linesmerrill/swachhsnap-api/realtime"
	"github.com/linesmerrill/swachhsnap-api/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the token is the credential, not the origin
	},
}

// Stream exported for testing purposes
type Stream struct {
	Dashboard Dashboard
	Auth      *api.Auth
	Registry  *session.Registry
	Notifier  realtime.Notifier
	Metrics   *api.Metrics
}

// streamMessage is the envelope written for every snapshot
type streamMessage struct {
	Event string        `json:"event"`
	Data  DashboardView `json:"data"`
}

// DashboardStreamHandler upgrades to a websocket and pushes the caller's
// full dashboard view on connect and after every change. The stream ends
// when the client goes away or its token is signed out.
func (s Stream) DashboardStreamHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = api.BearerToken(r)
	}
	id, err := s.Auth.Identify(token)
	if err != nil {
		config.ErrorStatus("failed to open dashboard stream", http.StatusUnauthorized, w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade failed", "userId", id.ID, "error", err)
		return
	}
	defer conn.Close()

	s.Metrics.WSConnectionsActive.Inc()
	defer s.Metrics.WSConnectionsActive.Dec()
	zap.S().Infow("dashboard stream opened", "userId", id.ID, "role", id.Role)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readPump(conn, cancel)

	feed := realtime.NewFeed[DashboardView](s.Notifier,
		databases.ComplaintCollection, databases.EventCollection, databases.UserCollection)
	sub := feed.Subscribe(ctx, func(ctx context.Context) (DashboardView, error) {
		qctx, qcancel := api.WithQueryTimeout(ctx)
		defer qcancel()
		return s.Dashboard.View(qctx, id)
	})
	defer sub.Close()

	signedOut := s.Registry.Watch(token)
	defer s.Registry.Unwatch(token, signedOut)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case v, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(streamMessage{Event: "dashboard", Data: v}); err != nil {
				zap.S().Debugw("dashboard stream write failed", "userId", id.ID, "error", err)
				return
			}
			s.Metrics.WSSnapshotsTotal.Inc()
		case <-signedOut:
			msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "signed out")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			zap.S().Infow("dashboard stream closed on sign out", "userId", id.ID)
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readPump drains client frames so pongs and close frames are handled, and
// cancels the stream once the connection is gone
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.S().Debugw("dashboard stream read failed", "error", err)
			}
			return
		}
	}
}
