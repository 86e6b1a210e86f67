package httpapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/amq10717-bit/SkillUp-sub001/internal/directory"
	"github.com/amq10717-bit/SkillUp-sub001/internal/lifecycle"
	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
	"github.com/amq10717-bit/SkillUp-sub001/internal/session"
	"github.com/amq10717-bit/SkillUp-sub001/internal/store"
)

const (
	wsReadLimit     = 64 * 1024
	wsPongWait      = 60 * time.Second
	wsPingInterval  = 30 * time.Second
	wsWriteDeadline = 10 * time.Second
)

// command is an inbound websocket frame. One frame carries one action;
// unknown actions are ignored.
type command struct {
	Action   string   `json:"action"`
	Kind     string   `json:"kind,omitempty"`
	ChatID   string   `json:"chat_id,omitempty"`
	Tab      string   `json:"tab,omitempty"`
	Search   string   `json:"search,omitempty"`
	Text     string   `json:"text,omitempty"`
	Type     string   `json:"type,omitempty"`
	MediaURL string   `json:"media_url,omitempty"`
	OtherID  string   `json:"other_id,omitempty"`
	Name     string   `json:"name,omitempty"`
	Desc     string   `json:"description,omitempty"`
	CourseID string   `json:"course_id,omitempty"`
	Members  []string `json:"members,omitempty"`

	Attachment *models.Attachment `json:"attachment,omitempty"`
}

// frame is an outbound websocket frame.
type frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

type wsClient struct {
	conn    *websocket.Conn
	profile models.Profile
	handle  *directory.Handle
	sess    *session.Session
	mgr     *lifecycle.Manager
	eng     *directory.Engine
	store   store.Store
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	send chan frame
	done chan struct{}
}

// serveWS authenticates the upgrade, subscribes the caller's live
// directory and per-chat session, and bridges both onto the socket.
// Lifecycle commands arrive pre-confirmed by the client, so the
// manager runs ungated.
func (s *Server) serveWS(conn *websocket.Conn) {
	token := conn.Query("token")
	claims, err := ParseToken(s.cfg.JWT.Secret, token)
	if err != nil {
		_ = conn.WriteJSON(frame{Type: "error", Error: "invalid token"})
		_ = conn.Close()
		return
	}

	ctx := context.Background()
	profile := s.resolver.Resolve(ctx, claims.Subject)

	handle, err := s.engine.Subscribe(ctx, profile.ID)
	if err != nil {
		_ = conn.WriteJSON(frame{Type: "error", Error: "subscribe failed"})
		_ = conn.Close()
		return
	}
	sess := session.New(s.store, s.events, profile, s.log)
	mgr := lifecycle.NewManager(s.store, sess, s.events, lifecycle.ConfirmAll, profile.ID, s.log)

	c := &wsClient{
		conn:    conn,
		profile: profile,
		handle:  handle,
		sess:    sess,
		mgr:     mgr,
		eng:     s.engine,
		store:   s.store,
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		log:     s.log,
		send:    make(chan frame, 16),
		done:    make(chan struct{}),
	}

	wsConnections.Inc()
	defer func() {
		close(c.done)
		handle.Release()
		sess.Clear()
		wsConnections.Dec()
		_ = conn.Close()
	}()

	go c.writePump()
	c.readPump(ctx)
}

func (c *wsClient) readPump(ctx context.Context) {
	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			c.offer(frame{Type: "error", Error: "rate limited"})
			continue
		}
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		wsMessagesIn.Inc()
		c.dispatch(ctx, cmd)
	}
}

func (c *wsClient) dispatch(ctx context.Context, cmd command) {
	var err error
	switch cmd.Action {
	case "tab":
		c.handle.SetTab(directory.Tab(cmd.Tab))
	case "search":
		c.handle.SetSearch(cmd.Search)
	case "select":
		err = c.selectChat(ctx, cmd)
	case "deselect":
		c.sess.Clear()
	case "send":
		err = c.sendMessage(ctx, cmd)
	case "create_private":
		var view *directory.ChatView
		view, err = c.eng.CreateOrFindPrivateChat(ctx, c.profile.ID, cmd.OtherID)
		if err == nil {
			c.offer(frame{Type: "chat_created", Payload: view})
		}
	case "create_group":
		var view *directory.ChatView
		view, err = c.eng.CreateGroupChat(ctx, c.profile, cmd.Name, cmd.Desc, cmd.CourseID, cmd.Members)
		if err == nil {
			c.offer(frame{Type: "chat_created", Payload: view})
		}
	case "pin", "unpin", "archive", "unarchive", "delete", "clear_history":
		err = c.lifecycle(ctx, cmd)
	default:
		// ignore unknown actions
	}
	if err != nil {
		c.offer(frame{Type: "error", Error: err.Error()})
	}
}

func (c *wsClient) selectChat(ctx context.Context, cmd command) error {
	kind, err := parseKind(cmd.Kind)
	if err != nil {
		return err
	}
	chat, err := c.store.GetChat(ctx, kind, cmd.ChatID)
	if err != nil {
		return err
	}
	return c.sess.SelectChat(ctx, *chat)
}

func (c *wsClient) sendMessage(ctx context.Context, cmd command) error {
	msg, err := c.sess.SendMessage(ctx, cmd.Text, models.MessageType(cmd.Type), cmd.MediaURL, cmd.Attachment)
	if err != nil {
		return err
	}
	messagesSent.Inc()
	c.offer(frame{Type: "sent", Payload: msg})
	return nil
}

func (c *wsClient) lifecycle(ctx context.Context, cmd command) error {
	kind, err := parseKind(cmd.Kind)
	if err != nil {
		return err
	}
	switch cmd.Action {
	case "pin":
		return c.mgr.Pin(ctx, kind, cmd.ChatID)
	case "unpin":
		return c.mgr.Unpin(ctx, kind, cmd.ChatID)
	case "archive":
		return c.mgr.Archive(ctx, kind, cmd.ChatID)
	case "unarchive":
		return c.mgr.Unarchive(ctx, kind, cmd.ChatID)
	case "delete":
		return c.mgr.Delete(ctx, kind, cmd.ChatID)
	case "clear_history":
		return c.mgr.ClearHistory(ctx, kind, cmd.ChatID)
	}
	return nil
}

// writePump is the only writer on the socket. It merges directory
// views, message snapshots and direct replies, and keeps the
// connection alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case v, ok := <-c.handle.Snapshots():
			if !ok {
				return
			}
			if !c.write(frame{Type: "directory", Payload: map[string]any{
				"view":     v,
				"filtered": c.handle.Filtered(v),
			}}) {
				return
			}
		case snap, ok := <-c.sess.Messages():
			if !ok {
				return
			}
			if !c.write(frame{Type: "messages", Payload: snap}) {
				return
			}
		case f := <-c.send:
			if !c.write(f) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) write(f frame) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
	if err := c.conn.WriteJSON(f); err != nil {
		c.log.Debugw("websocket write failed", "user_id", c.profile.ID, "err", err)
		return false
	}
	return true
}

// offer queues a reply without ever blocking the read loop.
func (c *wsClient) offer(f frame) {
	select {
	case c.send <- f:
	case <-c.done:
	default:
	}
}
