// Package server maintains the WebSocket link between the daemon and the
// browser extension. The extension is the page-integration context: it
// reports navigation and tab lifecycle, and renders whatever the daemon
// sends back.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/lotas/forumhilfe/internal/applog"
	"github.com/lotas/forumhilfe/internal/types"
)

// IncomingMsg is a message from the extension to the daemon.
type IncomingMsg struct {
	Type string `json:"type"`

	// postDetected
	Descriptor json.RawMessage `json:"descriptor,omitempty"`

	// tabNavigated / tabClosed / tabActivated
	TabID int    `json:"tabId,omitempty"`
	URL   string `json:"url,omitempty"`

	// checkForum request / connectionUpdate
	ID          string `json:"id,omitempty"`
	IsConnected *bool  `json:"isConnected,omitempty"`
}

// OutgoingMsg is a message from the daemon to the extension.
type OutgoingMsg struct {
	Type  string `json:"type"`
	TabID int    `json:"tabId,omitempty"`

	// postDataReady
	Data *types.ProcessedResult `json:"data,omitempty"`

	// postDataError
	Error string `json:"error,omitempty"`

	// forumStatus response
	ID        string           `json:"id,omitempty"`
	IsForum   *bool            `json:"isForum,omitempty"`
	ForumInfo *types.ForumInfo `json:"forumInfo,omitempty"`

	// connectionState broadcast
	IsConnected *bool `json:"isConnected,omitempty"`
}

// Message type tags on the wire.
const (
	MsgPostDetected     = "postDetected"
	MsgTabNavigated     = "tabNavigated"
	MsgTabClosed        = "tabClosed"
	MsgTabActivated     = "tabActivated"
	MsgCheckForum       = "checkForum"
	MsgConnectionUpdate = "connectionUpdate"

	MsgPostDataReady   = "postDataReady"
	MsgPostDataError   = "postDataError"
	MsgForumStatus     = "forumStatus"
	MsgConnectionState = "connectionState"
)

// ParseDescriptor decodes the descriptor payload of a postDetected
// message, stamping it with the sending tab's id.
func ParseDescriptor(msg IncomingMsg) (types.PostDescriptor, error) {
	var desc types.PostDescriptor
	if err := json.Unmarshal(msg.Descriptor, &desc); err != nil {
		return desc, fmt.Errorf("parse descriptor: %w", err)
	}
	if desc.TabID == 0 {
		desc.TabID = msg.TabID
	}
	if desc.CurrentURL == "" {
		desc.CurrentURL = msg.URL
	}
	return desc, nil
}

// Server manages the WebSocket connection to the extension. One extension
// at a time; a reconnect replaces the previous connection.
type Server struct {
	port    int
	msgs    chan IncomingMsg
	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port: port,
		msgs: make(chan IncomingMsg, 64),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Messages returns the channel of incoming messages from the extension.
func (s *Server) Messages() <-chan IncomingMsg {
	return s.msgs
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send sends a message to the connected extension. A send with no
// extension connected is silently dropped — the shared store still holds
// the state for whoever connects next.
func (s *Server) Send(msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	applog.Info("ws.send", "type", msg.Type, "tab", msg.TabID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(4 << 20) // 4 MB — descriptors carry full post markup

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			applog.Debug("ws.recv", "type", msg.Type)
			select {
			case s.msgs <- msg:
			default:
			}
		}
	})
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}
