package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

type WebsocketSettings struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadBufferSize   int
	WriteBufferSize  int
}

func DefaultWebsocketSettings() *WebsocketSettings {
	return &WebsocketSettings{
		HandshakeTimeout: 2 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
}

// WebsocketHandler upgrades HTTP requests and accepts them into a Manager.
type WebsocketHandler struct {
	m        *Manager
	settings *WebsocketSettings
	upgrader websocket.Upgrader
}

func NewWebsocketHandler(m *Manager, settings *WebsocketSettings) *WebsocketHandler {
	if settings == nil {
		settings = DefaultWebsocketSettings()
	}
	return &WebsocketHandler{
		m:        m,
		settings: settings,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: settings.HandshakeTimeout,
			ReadBufferSize:   settings.ReadBufferSize,
			WriteBufferSize:  settings.WriteBufferSize,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	h.m.Accept(newWebsocketConn(ws, h.settings))
}

// DialWebsocket returns a DialFunc for a ws:// or wss:// url.
func DialWebsocket(url string, settings *WebsocketSettings) DialFunc {
	if settings == nil {
		settings = DefaultWebsocketSettings()
	}
	return func(ctx context.Context) (FrameConn, error) {
		dialer := &websocket.Dialer{
			HandshakeTimeout: settings.HandshakeTimeout,
			ReadBufferSize:   settings.ReadBufferSize,
			WriteBufferSize:  settings.WriteBufferSize,
		}
		ws, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("error dialing %s: %w", url, err)
		}
		return newWebsocketConn(ws, settings), nil
	}
}

type websocketConn struct {
	ws       *websocket.Conn
	settings *WebsocketSettings
	once     sync.Once
}

func newWebsocketConn(ws *websocket.Conn, settings *WebsocketSettings) *websocketConn {
	return &websocketConn{ws: ws, settings: settings}
}

func (c *websocketConn) ReadFrame() ([]byte, error) {
	for {
		messageType, frame, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.BinaryMessage {
			return frame, nil
		}
		glog.V(2).Infof("websocket %s: ignoring message of type %d", c.RemoteAddr(), messageType)
	}
}

func (c *websocketConn) WriteFrame(frame []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *websocketConn) Close() error {
	var err error
	c.once.Do(func() {
		err = c.ws.Close()
	})
	return err
}

func (c *websocketConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
