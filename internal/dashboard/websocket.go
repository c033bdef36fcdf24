package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/apperr"
	"github.com/sergeknystautas/diffview/internal/session"
	"github.com/sergeknystautas/diffview/internal/watch"
)

const (
	// wsWriteDeadline bounds a single websocket write.
	wsWriteDeadline = 5 * time.Second
	// wsStaleAfter is how long a connection may stay silent before the
	// sweep drops it. Three missed pings.
	wsStaleAfter = 90 * time.Second
	// wsPingInterval is the server keepalive period.
	wsPingInterval = 30 * time.Second
)

// handleChangesWebSocket handles GET /ws/changes. Only the shared active
// repository has a change channel; overrides for other paths are rejected.
func (s *Server) handleChangesWebSocket(w http.ResponseWriter, r *http.Request) {
	const op = "dashboard.ChangesWebSocket"
	a, ok := s.registry.Snapshot()
	if !ok {
		s.writeError(w, r, apperr.Invalid(op, "no active repository"))
		return
	}
	if repo := r.URL.Query().Get("repo"); repo != "" {
		resolved, release, err := s.registry.Resolve(repo)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		release()
		if resolved.Ephemeral {
			s.writeError(w, r, apperr.Invalid(op, "live updates are only available for the active repository"))
			return
		}
	}
	if a.Channel == nil {
		s.writeError(w, r, apperr.Unavailable(op, nil, "live updates are unavailable for %s", a.RepoPath))
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}

	sub := newWSSubscriber(conn, a.RepoPath, s.registry)
	if s.beforeSubscribe != nil {
		s.beforeSubscribe()
	}
	ch, err := s.subscribeChanges(a, sub)
	if err != nil {
		// The channel went away during the handshake. Closing tells the
		// client where the active repository moved.
		s.logger.Debug("change subscriber rejected", "repo", a.RepoPath, "err", err)
		sub.Close(watch.ReasonClosing)
		return
	}
	s.logger.Debug("change subscriber connected", "repo", a.RepoPath, "subscribers", ch.SubscriberCount())

	go sub.pingLoop()
	sub.readLoop()

	ch.Unsubscribe(sub)
	sub.Close("disconnected")
	s.logger.Debug("change subscriber disconnected", "repo", a.RepoPath)
}

// subscribeChanges registers sub on a's channel. When that channel has been
// closed, the current snapshot is used instead as long as it still serves
// sub's repository.
func (s *Server) subscribeChanges(a session.Active, sub *wsSubscriber) (*watch.Channel, error) {
	for attempt := 0; attempt < 3; attempt++ {
		if a.Channel == nil {
			return nil, watch.ErrClosed
		}
		err := a.Channel.Subscribe(sub)
		if !errors.Is(err, watch.ErrClosed) {
			return a.Channel, err
		}
		cur, ok := s.registry.Snapshot()
		if !ok || cur.RepoPath != sub.repo || cur.Channel == a.Channel {
			return nil, err
		}
		a = cur
	}
	return nil, watch.ErrClosed
}

// wsSubscriber adapts a websocket connection to watch.Subscriber.
type wsSubscriber struct {
	conn     *websocket.Conn
	repo     string
	registry *session.Registry

	// writeMu serializes writes; gorilla connections allow one writer.
	writeMu  sync.Mutex
	lastSeen atomic.Int64 // unix nanos of the last client activity

	closeOnce sync.Once
	done      chan struct{}
}

var _ watch.Subscriber = (*wsSubscriber)(nil)

func newWSSubscriber(conn *websocket.Conn, repo string, registry *session.Registry) *wsSubscriber {
	sub := &wsSubscriber{
		conn:     conn,
		repo:     repo,
		registry: registry,
		done:     make(chan struct{}),
	}
	sub.touch()
	conn.SetReadDeadline(time.Now().Add(wsStaleAfter))
	conn.SetPongHandler(func(string) error {
		sub.touch()
		return conn.SetReadDeadline(time.Now().Add(wsStaleAfter))
	})
	return sub
}

func (c *wsSubscriber) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *wsSubscriber) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// Send implements watch.Subscriber.
func (c *wsSubscriber) Send(ev contracts.ChangeEvent) error {
	return c.writeJSON(ev)
}

// Alive implements watch.Subscriber.
func (c *wsSubscriber) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
	}
	return time.Since(time.Unix(0, c.lastSeen.Load())) < wsStaleAfter
}

// Close implements watch.Subscriber. A channel closed because the active
// repository moved tells the client where it went before disconnecting.
func (c *wsSubscriber) Close(reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		if reason == watch.ReasonClosing {
			msg := contracts.ChangeEvent{Type: contracts.WSTypeClosing, Timestamp: time.Now().UnixMilli()}
			if cur, ok := c.registry.Snapshot(); ok && cur.RepoPath != c.repo {
				msg = contracts.ChangeEvent{
					Type:      contracts.WSTypeRepoSwitched,
					Changed:   true,
					Path:      cur.RepoPath,
					Timestamp: time.Now().UnixMilli(),
				}
			}
			c.writeJSON(msg)
		}
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			time.Now().Add(wsWriteDeadline))
		c.writeMu.Unlock()
		c.conn.Close()
	})
}

// readLoop handles client pings until the connection fails.
func (c *wsSubscriber) readLoop() {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.touch()
		c.conn.SetReadDeadline(time.Now().Add(wsStaleAfter))
		if msgType != websocket.TextMessage {
			continue
		}
		var msg contracts.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == contracts.WSTypePing {
			if err := c.writeJSON(contracts.WSMessage{Type: contracts.WSTypePong}); err != nil {
				return
			}
		}
	}
}

// pingLoop sends keepalive pings until the subscriber closes.
func (c *wsSubscriber) pingLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteDeadline))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
