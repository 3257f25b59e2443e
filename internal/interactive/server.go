// Package interactive implements spec §9's "interactive" generalization
// strategy: candidate selection is delegated, over JSON-RPC 2.0 on a
// websocket, to an external client instead of a built-in heuristic.
package interactive

import (
	"context"
	"net/http"
	"sync"

	gorilla "github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	jsonrpc2ws "github.com/sourcegraph/jsonrpc2/websocket"

	"anica/internal/logging"
)

var log = logging.Get("interactive")

var upgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts one interactive-client connection over a websocket and
// hands it off as a jsonrpc2.Conn for RemoteCallback to call into. Only one
// client is expected per `generalize --interactive` run.
type Server struct {
	mu    sync.Mutex
	conn  *jsonrpc2.Conn
	ready chan struct{}
	once  sync.Once
}

// NewServer returns a Server ready to accept its one client connection.
func NewServer() *Server {
	return &Server{ready: make(chan struct{})}
}

// ServeHTTP upgrades the incoming request to a websocket and wraps it as a
// JSON-RPC 2.0 connection. Only the first connecting client is accepted;
// later requests are rejected.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("interactive client websocket upgrade failed: %v", err)
		return
	}

	stream := jsonrpc2ws.NewObjectStream(wsConn)
	conn := jsonrpc2.NewConn(r.Context(), stream, jsonrpc2.HandlerWithError(s.handle))

	accepted := false
	s.once.Do(func() {
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		close(s.ready)
		accepted = true
	})
	if !accepted {
		conn.Close()
	}
}

// WaitForClient blocks until the interactive client has connected, or ctx is
// cancelled first.
func (s *Server) WaitForClient(ctx context.Context) (*jsonrpc2.Conn, error) {
	select {
	case <-s.ready:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handle answers server-bound requests. The interactive strategy only
// calls out to the client today; there is no client-to-server method.
func (s *Server) handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "unknown method " + req.Method}
}
