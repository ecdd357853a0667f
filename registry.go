/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/passwordgame/rules"
)

const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
)

// Registry maps room codes to rooms and player IDs to the room they
// belong to. The lock only guards the two maps; room state lives inside
// each room's own goroutine.
type Registry struct {
	cfg *Config

	mu      sync.Mutex
	rooms   map[string]*Room
	players map[string]string // playerID -> room code

	newRules func() []rules.Rule
	onEnded  func(GameResult)
}

func newRegistry(cfg *Config, newRules func() []rules.Rule, onEnded func(GameResult)) *Registry {
	return &Registry{
		cfg:      cfg,
		rooms:    make(map[string]*Room),
		players:  make(map[string]string),
		newRules: newRules,
		onEnded:  onEnded,
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// newRoomCodeLocked generates a crypto-random room code that doesn't
// collide with a live room.
func (reg *Registry) newRoomCodeLocked() string {
	for {
		buf := make([]byte, roomCodeLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, roomCodeLength)
		for i := range out {
			out[i] = roomCodeAlphabet[int(buf[i])%len(roomCodeAlphabet)]
		}
		code := string(out)

		if _, exists := reg.rooms[code]; !exists {
			return code
		}
	}
}

// CreateRoom starts a new room hosted by hostName and binds c as the host
// connection.
func (reg *Registry) CreateRoom(hostName string, timeLimit time.Duration, c *Client) (*Room, string, error) {
	hostID := newPlayerID()

	reg.mu.Lock()
	code := reg.newRoomCodeLocked()
	room := newRoom(reg.cfg, code, hostID, hostName, timeLimit, reg.newRules)
	room.onEnded = reg.onEnded
	reg.rooms[code] = room
	reg.players[hostID] = code
	reg.mu.Unlock()

	go room.run()

	if err := room.attachHost(c); err != nil {
		return nil, "", err
	}

	logf(reg.cfg, "ROOMS: Created room %s for host %q (limit %s)", code, hostName, timeLimit)

	return room, hostID, nil
}

// Room looks up a live room by code, case-insensitively.
func (reg *Registry) Room(code string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[normalizeCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// JoinRoom adds a new player to the room with the given code.
func (reg *Registry) JoinRoom(code, name string, c *Client) (*Room, string, error) {
	room, err := reg.Room(code)
	if err != nil {
		return nil, "", err
	}

	id := newPlayerID()

	reg.mu.Lock()
	reg.players[id] = room.code
	reg.mu.Unlock()

	if err := room.join(id, name, c); err != nil {
		reg.mu.Lock()
		delete(reg.players, id)
		reg.mu.Unlock()

		return nil, "", err
	}

	return room, id, nil
}

// Reconnect rebinds an existing player to c.
func (reg *Registry) Reconnect(playerID string, c *Client) (*Room, error) {
	reg.mu.Lock()
	code, ok := reg.players[playerID]
	var room *Room
	if ok {
		room, ok = reg.rooms[code]
	}
	reg.mu.Unlock()

	if !ok {
		return nil, ErrPlayerNotFound
	}

	if err := room.reconnect(playerID, c); err != nil {
		return nil, err
	}

	return room, nil
}

// DestroyRoom removes a room and every player mapping that points at it,
// then closes the room.
func (reg *Registry) DestroyRoom(code, reason string) error {
	code = normalizeCode(code)

	reg.mu.Lock()
	room, ok := reg.rooms[code]
	if !ok {
		reg.mu.Unlock()
		return ErrRoomNotFound
	}
	delete(reg.rooms, code)
	for id, c := range reg.players {
		if c == code {
			delete(reg.players, id)
		}
	}
	reg.mu.Unlock()

	room.close(reason)

	logf(reg.cfg, "ROOMS: Destroyed room %s (%s)", code, reason)

	return nil
}

// Len reports the number of live rooms.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.rooms)
}

// reap destroys every room idle since before cutoff. A room whose timed
// game hasn't run out yet is left alone, however quiet it is.
func (reg *Registry) reap(cutoff time.Time) int {
	now := time.Now()

	var stale []string

	reg.mu.Lock()
	for code, room := range reg.rooms {
		if room.playingUntil().After(now) {
			continue
		}
		if room.idleSince().Before(cutoff) {
			stale = append(stale, code)
		}
	}
	reg.mu.Unlock()

	for _, code := range stale {
		_ = reg.DestroyRoom(code, "Room closed after being idle.")
	}

	return len(stale)
}

// reaperLoop periodically removes rooms that have been idle longer than
// the session timeout.
func (reg *Registry) reaperLoop(ctx context.Context) {
	if reg.cfg.sessionTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(reg.cfg.sessionTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := reg.reap(time.Now().Add(-reg.cfg.sessionTimeout)); n > 0 {
				logf(reg.cfg, "ROOMS: Reaped %d idle rooms", n)
			}
		}
	}
}

// Close destroys every room.
func (reg *Registry) Close() {
	reg.mu.Lock()
	codes := make([]string, 0, len(reg.rooms))
	for code := range reg.rooms {
		codes = append(codes, code)
	}
	reg.mu.Unlock()

	for _, code := range codes {
		_ = reg.DestroyRoom(code, "Server is shutting down.")
	}
}
