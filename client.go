/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection. Once a create, join or reconnect
// succeeds it is bound to a single player in a single room.
type Client struct {
	cfg    *Config
	reg    *Registry
	conn   *websocket.Conn
	remote string

	send    chan any
	done    chan struct{}
	once    sync.Once
	ctx     context.Context
	cancel  context.CancelFunc
	limiter *rate.Limiter

	// Only touched by readPump.
	room     *Room
	playerID string
}

func newClient(cfg *Config, reg *Registry, conn *websocket.Conn, remote string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		cfg:     cfg,
		reg:     reg,
		conn:    conn,
		remote:  remote,
		send:    make(chan any, sendBuffer),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		limiter: rate.NewLimiter(rate.Limit(cfg.messageRate), cfg.messageBurst),
	}
}

// push queues msg without blocking. A client that can't keep up is shut
// down; its session stays in the room for a later reconnect.
func (c *Client) push(msg any) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- msg:
	default:
		errorf("PROTO: Send buffer full for %s, dropping connection", c.remote)
		c.shutdown()
	}
}

func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
	})
}

func (c *Client) bound() bool {
	return c.room != nil
}

func (c *Client) bind(room *Room, playerID string) {
	c.room = room
	c.playerID = playerID
}

func (c *Client) reject(typ string, err error) {
	logf(c.cfg, "PROTO: Rejected %s from %s: %v", typ, c.remote, err)

	c.push(SimpleMessage{Type: msgError, Message: userMessage(err)})
}

// userMessage turns a sentinel error into text fit for a player.
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found."
	case errors.Is(err, ErrPlayerNotFound):
		return "Session not found."
	case errors.Is(err, ErrNameTaken):
		return "That name is already taken."
	case errors.Is(err, ErrInvalidTransition):
		return "That can't be done right now."
	case errors.Is(err, ErrGameEnded):
		return "The game has ended."
	case errors.Is(err, ErrNoPlayers):
		return "At least one player must join before starting."
	case errors.Is(err, ErrUnauthorized):
		return "Only the host can do that."
	case errors.Is(err, ErrNotRegenerable):
		return "That rule can't be regenerated."
	default:
		return "Something went wrong."
	}
}

// admit applies the connection's rate limit. Progress updates are never
// dropped: they wait for a token, which holds back the read loop and keeps
// them in receipt order. Everything else over the limit is dropped.
func (c *Client) admit(typ string) bool {
	if typ == msgUpdateProgress {
		if err := c.limiter.Wait(c.ctx); err != nil {
			logf(c.cfg, "PROTO: Gave up waiting to apply progress from %s: %v", c.remote, err)
			return false
		}
		return true
	}

	if !c.limiter.Allow() {
		logf(c.cfg, "PROTO: Rate limited %s from %s", typ, c.remote)
		return false
	}
	return true
}

func (c *Client) handle(data []byte) {
	typ, payload, err := decodeClientMessage(data)
	if err != nil {
		if c.limiter.Allow() {
			logf(c.cfg, "PROTO: Dropped message from %s: %v", c.remote, err)
		}
		return
	}

	if !c.admit(typ) {
		return
	}

	switch req := payload.(type) {
	case *CreateRoomRequest:
		c.createRoom(req)
	case *JoinRoomRequest:
		c.joinRoom(req)
	case *ReconnectRequest:
		c.reconnect(req)
	default:
		if !c.bound() {
			logf(c.cfg, "PROTO: Dropped %s from unbound connection %s", typ, c.remote)
			return
		}
		c.dispatch(typ, payload)
	}
}

func (c *Client) createRoom(req *CreateRoomRequest) {
	if c.bound() {
		logf(c.cfg, "PROTO: Dropped create_room from bound connection %s", c.remote)
		return
	}

	// Compare in minutes so a huge request can't overflow the Duration.
	if req.TimeLimit > int(c.cfg.maxTimeLimit/time.Minute) {
		c.push(SimpleMessage{Type: msgError, Message: "Time limit is too long."})
		return
	}

	timeLimit := c.cfg.defaultTimeLimit
	if req.TimeLimit > 0 {
		timeLimit = time.Duration(req.TimeLimit) * time.Minute
	}

	room, id, err := c.reg.CreateRoom(req.PlayerName, timeLimit, c)
	if err != nil {
		c.reject(msgCreateRoom, err)
		return
	}

	c.bind(room, id)
}

func (c *Client) joinRoom(req *JoinRoomRequest) {
	if c.bound() {
		logf(c.cfg, "PROTO: Dropped join_room from bound connection %s", c.remote)
		return
	}

	room, id, err := c.reg.JoinRoom(req.RoomCode, req.PlayerName, c)
	if err != nil {
		logf(c.cfg, "PROTO: Join of %s by %q failed: %v", req.RoomCode, req.PlayerName, err)

		msg := userMessage(err)
		if errors.Is(err, ErrInvalidTransition) {
			msg = "Game already started."
		}
		c.push(SimpleMessage{Type: msgJoinFailed, Message: msg})
		return
	}

	c.bind(room, id)
}

func (c *Client) reconnect(req *ReconnectRequest) {
	if c.bound() && c.playerID != req.PlayerID {
		logf(c.cfg, "PROTO: Dropped reconnect from bound connection %s", c.remote)
		return
	}

	room, err := c.reg.Reconnect(req.PlayerID, c)
	if err != nil {
		c.reject(msgReconnect, err)
		return
	}

	c.bind(room, req.PlayerID)
}

func (c *Client) dispatch(typ string, payload any) {
	var err error

	switch typ {
	case msgUpdateProgress:
		err = c.room.updateProgress(c.playerID, payload.(*UpdateProgressRequest))
	case msgRegenerateRule:
		err = c.room.regenerate(c.playerID, payload.(*RegenerateRuleRequest).Num)
	case msgStartGame:
		err = c.room.start(c.playerID)
	case msgStopGame:
		err = c.room.stop(c.playerID)
	case msgGetStats:
		err = c.room.sendStats(c.playerID)
	case msgDestroyRoom:
		if err = c.room.requireHost(c.playerID); err == nil {
			err = c.reg.DestroyRoom(c.room.code, "The host closed the room.")
		}
	}

	if err != nil {
		c.reject(typ, err)
	}
}

func (c *Client) readPump() {
	defer func() {
		if c.room != nil {
			c.room.disconnect(c.playerID, c)
		}
		c.shutdown()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logf(c.cfg, "PROTO: Connection from %s closed: %v", c.remote, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		c.handle(data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			c.drain()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain flushes whatever was queued before shutdown, such as room_closed.
func (c *Client) drain() {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func serveWebsocket(cfg *Config, reg *Registry) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SERVE: Websocket upgrade from %s failed: %v", realIP(r), err)
			return
		}

		c := newClient(cfg, reg, conn, realIP(r))

		logf(cfg, "SERVE: Websocket connection from %s", c.remote)

		go c.writePump()
		c.readPump()
	}
}
