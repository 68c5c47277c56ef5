package onebot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler receives every decoded gateway event.
type Handler func(ev *Event)

// Server accepts the reverse-WebSocket connection from the QQ gateway
// (NapCat) and multiplexes events and action calls over it. The gateway is
// the dialing side; we hold at most one active connection, and a newly
// authenticated connection replaces the previous one.
type Server struct {
	addr    string
	path    string
	token   string
	handler Handler

	upgrader websocket.Upgrader

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan actionResponse

	selfID    atomic.Int64
	echoSeq   atomic.Uint64
	lastBeat  atomic.Int64
	callLimit time.Duration

	httpServer *http.Server
}

type actionResponse struct {
	Status  string
	RetCode int64
	Data    any
	raw     map[string]any
}

// ErrNotConnected is returned by action calls when no gateway is attached.
var ErrNotConnected = errors.New("onebot: gateway not connected")

// NewServer builds a gateway server listening on addr at path, requiring the
// given access token when non-empty.
func NewServer(addr, path, token string, handler Handler) *Server {
	return &Server{
		addr:      addr,
		path:      path,
		token:     token,
		handler:   handler,
		pending:   map[string]chan actionResponse{},
		callLimit: 30 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 16,
		},
	}
}

// SelfID is the bot's own QQ number, learned from the lifecycle connect
// event. Zero until a gateway has connected.
func (s *Server) SelfID() int64 {
	return s.selfID.Load()
}

// Connected reports whether a gateway connection is currently attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleUpgrade)
	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Str("path", s.path).Msg("onebot gateway listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	supplied := ""
	if h := r.Header.Get("Authorization"); h != "" {
		supplied = strings.TrimSpace(strings.TrimPrefix(h, "Bearer"))
	}
	if supplied == "" {
		supplied = r.URL.Query().Get("access_token")
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.token)) == 1
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		log.Warn().Str("remote", r.RemoteAddr).Msg("gateway connection rejected: bad access token")
		http.Error(w, "access token mismatch", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.mu.Lock()
	if s.conn != nil {
		log.Info().Msg("replacing existing gateway connection")
		_ = s.conn.Close()
	}
	s.conn = conn
	s.mu.Unlock()

	log.Info().Str("remote", r.RemoteAddr).Msg("gateway connected")
	go s.readLoop(conn)
}

func (s *Server) readLoop(conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Msg("gateway disconnected")
			return
		}
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			log.Debug().Err(err).Msg("dropping non-JSON gateway frame")
			continue
		}
		if echo, ok := data["echo"]; ok && toString(echo) != "" {
			s.resolve(toString(echo), data)
			continue
		}
		s.dispatch(data)
	}
}

func (s *Server) dispatch(data map[string]any) {
	ev := decodeEvent(data)
	switch ev.PostType {
	case "meta_event":
		switch ev.MetaEventType {
		case "lifecycle":
			if ev.SubType == "connect" && ev.SelfID > 0 {
				s.selfID.Store(ev.SelfID)
				log.Info().Int64("self_id", ev.SelfID).Msg("gateway lifecycle connect")
			}
		case "heartbeat":
			s.lastBeat.Store(time.Now().Unix())
		}
		return
	default:
		if s.handler != nil {
			// Handlers run off the read loop so a slow plugin cannot
			// stall action responses.
			go s.handler(ev)
		}
	}
}

func (s *Server) resolve(echo string, data map[string]any) {
	s.pendingMu.Lock()
	ch, ok := s.pending[echo]
	if ok {
		delete(s.pending, echo)
	}
	s.pendingMu.Unlock()
	if !ok {
		return
	}
	ch <- actionResponse{
		Status:  toString(data["status"]),
		RetCode: toInt64(data["retcode"]),
		Data:    data["data"],
		raw:     data,
	}
}

// Call performs one OneBot action over the attached gateway connection and
// waits for the echo-correlated response. The returned map is the action's
// data payload when it is a JSON object.
func (s *Server) Call(ctx context.Context, action string, params map[string]any) (map[string]any, error) {
	resp, err := s.call(ctx, action, params)
	if err != nil {
		return nil, err
	}
	data, _ := resp.Data.(map[string]any)
	return data, nil
}

// CallList performs an action whose data payload is a JSON array, such as
// get_group_list.
func (s *Server) CallList(ctx context.Context, action string, params map[string]any) ([]any, error) {
	resp, err := s.call(ctx, action, params)
	if err != nil {
		return nil, err
	}
	list, _ := resp.Data.([]any)
	return list, nil
}

func (s *Server) call(ctx context.Context, action string, params map[string]any) (actionResponse, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return actionResponse{}, ErrNotConnected
	}

	echo := fmt.Sprintf("%s_%d_%d", action, s.echoSeq.Add(1), time.Now().UnixNano())
	payload, err := json.Marshal(map[string]any{
		"action": action,
		"params": params,
		"echo":   echo,
	})
	if err != nil {
		return actionResponse{}, err
	}

	ch := make(chan actionResponse, 1)
	s.pendingMu.Lock()
	s.pending[echo] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, echo)
		s.pendingMu.Unlock()
	}()

	s.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	s.writeMu.Unlock()
	if err != nil {
		return actionResponse{}, fmt.Errorf("write action %s: %w", action, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callLimit)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		return actionResponse{}, ctx.Err()
	case resp := <-ch:
		// Async acks report retcode 1; the gateway still executes the action.
		if resp.Status == "failed" || (resp.RetCode != 0 && resp.RetCode != 1) {
			return resp, fmt.Errorf("action %s failed: retcode=%d", action, resp.RetCode)
		}
		return resp, nil
	}
}
