package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"otp-auth-service/internal/util"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// wsFrame is the wire format for both directions: an event name plus its
// JSON payload.
type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WSPeer is one websocket connection. Writes are serialized with a mutex
// since gorilla connections allow only one concurrent writer.
type WSPeer struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *WSPeer) ID() string { return p.id }

func (p *WSPeer) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame := wsFrame{Event: event, Data: data}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(frame)
}

func (p *WSPeer) ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// WSServer upgrades HTTP requests and pumps frames into the engine.
type WSServer struct {
	engine   *Engine
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSServer(engine *Engine, allowedOrigins []string, logger *zap.Logger) *WSServer {
	originSet := make(map[string]struct{}, len(allowedOrigins))
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		originSet[o] = struct{}{}
	}
	return &WSServer{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := originSet[origin]
				return ok
			},
		},
		logger: logger,
	}
}

// ServeWS handles one websocket session from upgrade to close.
func (s *WSServer) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", util.ErrorField(err))
		return
	}

	peer := &WSPeer{
		id:   uuid.NewString(),
		conn: conn,
	}

	s.logger.Info("Peer connected",
		util.String("peer_id", peer.id),
		util.String("remote_addr", r.RemoteAddr))

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := r.Context()
	s.engine.HandleConnect(ctx, peer)

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := peer.ping(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	defer func() {
		conn.Close()
		s.logger.Info("Peer disconnected", util.String("peer_id", peer.id))
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Websocket read error",
					util.String("peer_id", peer.id),
					util.ErrorField(err))
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
			s.engine.sendError(ctx, peer, "", CodeInvalidFormat, "frames must be {\"event\": ..., \"data\": ...}")
			continue
		}

		s.engine.Dispatch(ctx, peer, frame.Event, frame.Data)
	}
}
