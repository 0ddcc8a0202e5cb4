package watch

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	pipelineerrors "github.com/dockhand-build/dockhand/internal/errors"
)

// StatusServer manages WebSocket connections for build status updates.
type StatusServer struct {
	connections map[*websocket.Conn]bool
	broadcast   chan *StatusMessage
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	done        chan struct{}
	mutex       sync.RWMutex
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

// StatusMessage is sent to clients as a build progresses.
type StatusMessage struct {
	Type      string     `json:"type"`  // "building", "stage", "success", "error"
	Stage     string     `json:"stage,omitempty"`
	Timestamp int64      `json:"timestamp"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Files     []string   `json:"files,omitempty"`
	Duration  float64    `json:"duration,omitempty"` // Milliseconds
	ImageRef  string     `json:"image_ref,omitempty"`
}

// ErrorInfo carries a build failure to clients.
type ErrorInfo struct {
	Message  string `json:"message"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Code     string `json:"code,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// ErrorInfoFrom converts a pipeline error for broadcast.
func ErrorInfoFrom(e pipelineerrors.PipelineError) *ErrorInfo {
	return &ErrorInfo{
		Message:  e.Message,
		File:     e.Location.File,
		Line:     e.Location.Line,
		Code:     e.Code,
		Stage:    e.Stage,
		Severity: e.Severity.String(),
	}
}

// NewStatusServer creates a status server and starts its broadcast loop.
func NewStatusServer(log *zap.Logger) *StatusServer {
	ss := &StatusServer{
		connections: make(map[*websocket.Conn]bool),
		broadcast:   make(chan *StatusMessage, 256),
		register:    make(chan *websocket.Conn),
		unregister:  make(chan *websocket.Conn),
		done:        make(chan struct{}),
		log:         log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				// Local clients only.
				return strings.HasPrefix(origin, "http://localhost") ||
					strings.HasPrefix(origin, "https://localhost") ||
					strings.HasPrefix(origin, "http://127.0.0.1") ||
					strings.HasPrefix(origin, "https://127.0.0.1")
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	go ss.run()

	return ss
}

func (ss *StatusServer) run() {
	for {
		select {
		case <-ss.done:
			return

		case conn := <-ss.register:
			ss.mutex.Lock()
			ss.connections[conn] = true
			total := len(ss.connections)
			ss.mutex.Unlock()
			ss.log.Debug("status client connected", zap.Int("total", total))

		case conn := <-ss.unregister:
			ss.mutex.Lock()
			if _, ok := ss.connections[conn]; ok {
				delete(ss.connections, conn)
				conn.Close()
			}
			total := len(ss.connections)
			ss.mutex.Unlock()
			ss.log.Debug("status client disconnected", zap.Int("total", total))

		case message := <-ss.broadcast:
			ss.sendToAll(message)
		}
	}
}

func (ss *StatusServer) sendToAll(message *StatusMessage) {
	messageJSON, err := json.Marshal(message)
	if err != nil {
		ss.log.Warn("marshaling status message", zap.Error(err))
		return
	}

	ss.mutex.RLock()
	var failedConns []*websocket.Conn
	for conn := range ss.connections {
		if err := conn.WriteMessage(websocket.TextMessage, messageJSON); err != nil {
			failedConns = append(failedConns, conn)
		}
	}
	ss.mutex.RUnlock()

	if len(failedConns) > 0 {
		ss.mutex.Lock()
		for _, conn := range failedConns {
			if _, ok := ss.connections[conn]; ok {
				conn.Close()
				delete(ss.connections, conn)
			}
		}
		ss.mutex.Unlock()
	}
}

// HandleWebSocket upgrades HTTP connections to WebSocket.
func (ss *StatusServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ss.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ss.log.Warn("upgrading status connection", zap.Error(err))
		return
	}

	// The run loop is gone once Close fires; a bare send here would
	// block forever on that shutdown race.
	select {
	case ss.register <- conn:
	case <-ss.done:
		conn.Close()
		return
	}

	go ss.readMessages(conn)
}

// readMessages drains client messages for keepalive.
func (ss *StatusServer) readMessages(conn *websocket.Conn) {
	defer func() {
		select {
		case ss.unregister <- conn:
		case <-ss.done:
			conn.Close()
		}
	}()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ss.log.Debug("status socket closed", zap.Error(err))
			}
			break
		}
	}
}

// NotifyBuilding announces a rebuild triggered by the given files.
func (ss *StatusServer) NotifyBuilding(files []string) {
	ss.broadcast <- &StatusMessage{
		Type:      "building",
		Timestamp: time.Now().Unix(),
		Files:     files,
	}
}

// NotifyStage announces a pipeline stage starting.
func (ss *StatusServer) NotifyStage(stage string) {
	ss.broadcast <- &StatusMessage{
		Type:      "stage",
		Stage:     stage,
		Timestamp: time.Now().Unix(),
	}
}

// NotifySuccess announces a completed build.
func (ss *StatusServer) NotifySuccess(imageRef string, duration time.Duration) {
	ss.broadcast <- &StatusMessage{
		Type:      "success",
		Timestamp: time.Now().Unix(),
		Duration:  float64(duration.Milliseconds()),
		ImageRef:  imageRef,
	}
}

// NotifyError announces a build failure.
func (ss *StatusServer) NotifyError(errorInfo *ErrorInfo) {
	ss.broadcast <- &StatusMessage{
		Type:      "error",
		Timestamp: time.Now().Unix(),
		Error:     errorInfo,
	}
}

// ConnectionCount returns the number of active connections.
func (ss *StatusServer) ConnectionCount() int {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()
	return len(ss.connections)
}

// Close closes all connections and stops the server.
func (ss *StatusServer) Close() {
	close(ss.done)

	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	for conn := range ss.connections {
		conn.Close()
	}
	ss.connections = make(map[*websocket.Conn]bool)
}
