/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Seednode/passwordgame/rules"
)

type roomState int

const (
	stateWaiting roomState = iota
	stateStarted
	stateEnded
)

func (s roomState) String() string {
	switch s {
	case stateWaiting:
		return "waiting"
	case stateStarted:
		return "started"
	case stateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Room owns its players and game state. Everything below the
// communication fields is only read or written from run, which executes
// submitted closures one at a time.
type Room struct {
	cfg  *Config
	code string

	hostID     string
	players    map[string]*PlayerSession
	state      roomState
	createdAt  time.Time
	startedAt  time.Time
	endedAt    time.Time
	timeLimit  time.Duration
	endReason  string
	finalStats []PlayerStats
	timer      *time.Timer
	closed     bool

	newRules func() []rules.Rule
	now      func() time.Time
	onEnded  func(GameResult)

	// Communication
	inbox      chan func()
	quit       chan struct{}
	quitOnce   sync.Once
	lastActive atomic.Int64
	deadline   atomic.Int64
}

func newRoom(cfg *Config, code, hostID, hostName string, timeLimit time.Duration, newRules func() []rules.Rule) *Room {
	now := time.Now()

	r := &Room{
		cfg:       cfg,
		code:      code,
		hostID:    hostID,
		players:   make(map[string]*PlayerSession),
		state:     stateWaiting,
		createdAt: now,
		timeLimit: timeLimit,
		newRules:  newRules,
		now:       time.Now,
		inbox:     make(chan func(), 64),
		quit:      make(chan struct{}),
	}
	r.players[hostID] = newPlayerSession(hostID, hostName, true, newRules(), now)
	r.lastActive.Store(now.UnixNano())

	return r
}

func (r *Room) run() {
	defer r.stopTimer()

	for {
		var timeUp <-chan time.Time
		if r.timer != nil {
			timeUp = r.timer.C
		}

		select {
		case <-r.quit:
			return
		case fn := <-r.inbox:
			r.expire()
			fn()
			r.lastActive.Store(r.now().UnixNano())
			if r.closed {
				r.shutdown()
				return
			}
		case <-timeUp:
			r.timer = nil
			r.endGame(reasonTimeUp)
		}
	}
}

// do runs fn on the room's goroutine and waits for it to finish.
func (r *Room) do(fn func()) error {
	done := make(chan struct{})

	select {
	case r.inbox <- func() { fn(); close(done) }:
	case <-r.quit:
		return ErrRoomNotFound
	}

	select {
	case <-done:
		return nil
	case <-r.quit:
		select {
		case <-done:
			return nil
		default:
			return ErrRoomNotFound
		}
	}
}

// doErr is do for closures that fail.
func (r *Room) doErr(fn func() error) error {
	var err error
	if derr := r.do(func() { err = fn() }); derr != nil {
		return derr
	}
	return err
}

func (r *Room) shutdown() {
	r.quitOnce.Do(func() { close(r.quit) })
}

func (r *Room) idleSince() time.Time {
	return time.Unix(0, r.lastActive.Load())
}

// playingUntil returns when a running timed game runs out, or the zero
// time if no game is running against a clock.
func (r *Room) playingUntil() time.Time {
	if ns := r.deadline.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

func (r *Room) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// expire ends a started game whose time limit has passed, covering the
// window before the timer goroutine gets scheduled.
func (r *Room) expire() {
	if r.state != stateStarted || r.timeLimit <= 0 {
		return
	}
	if !r.now().Before(r.startedAt.Add(r.timeLimit)) {
		r.endGame(reasonTimeUp)
	}
}

func (r *Room) contestants() []*PlayerSession {
	out := make([]*PlayerSession, 0, len(r.players))
	for _, p := range r.players {
		if !p.host {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) broadcast(msg any) {
	for _, p := range r.players {
		p.push(msg)
	}
}

func (r *Room) notifyHost(msg any) {
	if host, ok := r.players[r.hostID]; ok {
		host.push(msg)
	}
}

func (r *Room) pushStatsToHost() {
	r.notifyHost(RoomStatsMessage{
		Type:  msgRoomStats,
		Stats: r.buildStats(),
	})
}

func (r *Room) lookup(playerID string) (*PlayerSession, error) {
	p, ok := r.players[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return p, nil
}

func (r *Room) requireHostLocked(playerID string) error {
	if _, err := r.lookup(playerID); err != nil {
		return err
	}
	if playerID != r.hostID {
		return ErrUnauthorized
	}
	return nil
}

func unixMilli(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func (r *Room) playerStats(p *PlayerSession, now time.Time, final bool) PlayerStats {
	ps := PlayerStats{
		ID:             p.id,
		Name:           p.name,
		RulesCompleted: p.solved,
		TotalRules:     len(p.rules),
		AllSolved:      p.allSolved,
		RuleStates:     p.statesCopy(),
		FinishedAt:     unixMilli(p.finishedAt),
		Connected:      p.connected(),
	}
	if final {
		taken := r.timeTaken(p, now).Milliseconds()
		ps.TimeTaken = &taken
	}
	return ps
}

func (r *Room) timeTaken(p *PlayerSession, now time.Time) time.Duration {
	if r.startedAt.IsZero() {
		return 0
	}
	end := now
	if !p.finishedAt.IsZero() {
		end = p.finishedAt
	}
	if end.Before(r.startedAt) {
		return 0
	}
	return end.Sub(r.startedAt)
}

// rankedPlayers orders contestants by completion, then rules solved, then
// time taken.
func (r *Room) rankedPlayers(now time.Time, final bool) []PlayerStats {
	players := r.contestants()

	slices.SortFunc(players, func(a, b *PlayerSession) int {
		if a.allSolved != b.allSolved {
			if a.allSolved {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.solved, a.solved); c != 0 {
			return c
		}
		if c := cmp.Compare(r.timeTaken(a, now), r.timeTaken(b, now)); c != 0 {
			return c
		}
		if c := a.joinedAt.Compare(b.joinedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	out := make([]PlayerStats, 0, len(players))
	for _, p := range players {
		out = append(out, r.playerStats(p, now, final))
	}
	return out
}

func (r *Room) buildStats() RoomStats {
	var players []PlayerStats
	if r.state == stateEnded {
		players = r.finalStats
	} else {
		players = r.rankedPlayers(r.now(), false)
	}

	return RoomStats{
		TotalPlayers: len(players),
		Players:      players,
		GameStarted:  r.state != stateWaiting,
		GameEnded:    r.state == stateEnded,
		StartedAt:    unixMilli(r.startedAt),
		TimeLimit:    r.timeLimit.Milliseconds(),
		EndReason:    r.endReason,
	}
}

func (r *Room) allCompleted() bool {
	players := r.contestants()
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if !p.allSolved {
			return false
		}
	}
	return true
}

// endGame performs the single started -> ended transition. Whichever
// cause gets here first is recorded; later calls are no-ops.
func (r *Room) endGame(reason string) bool {
	if r.state != stateStarted {
		return false
	}

	now := r.now()

	r.state = stateEnded
	r.endReason = reason
	r.endedAt = now
	r.stopTimer()
	r.deadline.Store(0)
	r.finalStats = r.rankedPlayers(now, true)

	for _, p := range r.players {
		p.frozen = true
	}

	logf(r.cfg, "ROOMS: Game in %s ended (%s) with %d players", r.code, reason, len(r.finalStats))

	r.broadcast(GameEndedMessage{
		Type:       msgGameEnded,
		FinalStats: r.finalStats,
		Reason:     reason,
	})
	r.pushStatsToHost()

	if r.onEnded != nil {
		result := GameResult{
			RoomCode:   r.code,
			Reason:     reason,
			StartedAt:  r.startedAt.UnixMilli(),
			EndedAt:    now.UnixMilli(),
			TimeLimit:  r.timeLimit.Milliseconds(),
			FinalStats: r.finalStats,
		}
		go r.onEnded(result)
	}

	return true
}

// join adds a new contestant with id and binds c to it.
func (r *Room) join(id, name string, c *Client) error {
	return r.doErr(func() error {
		if r.state != stateWaiting {
			return ErrInvalidTransition
		}
		for _, p := range r.players {
			if p.name == name {
				return ErrNameTaken
			}
		}

		now := r.now()
		p := newPlayerSession(id, name, false, r.newRules(), now)
		p.attach(c, now)
		r.players[id] = p

		logf(r.cfg, "ROOMS: Player %q joined %s", name, r.code)

		p.push(RoomJoinedMessage{
			Type:       msgRoomJoined,
			PlayerID:   id,
			RoomCode:   r.code,
			TotalRules: len(p.rules),
			Rules:      rules.Messages(p.rules),
		})
		r.notifyHost(SimpleMessage{Type: msgPlayerJoined})

		return nil
	})
}

// attachHost binds the creating connection to the host session.
func (r *Room) attachHost(c *Client) error {
	return r.doErr(func() error {
		host, err := r.lookup(r.hostID)
		if err != nil {
			return err
		}
		host.attach(c, r.now())
		host.push(RoomCreatedMessage{
			Type:       msgRoomCreated,
			RoomCode:   r.code,
			PlayerID:   r.hostID,
			TotalRules: len(host.rules),
			Rules:      rules.Messages(host.rules),
		})
		return nil
	})
}

// reconnect rebinds playerID to c and sends it everything needed to
// resynchronize. A previous live connection for the player is shut down.
func (r *Room) reconnect(playerID string, c *Client) error {
	return r.doErr(func() error {
		p, err := r.lookup(playerID)
		if err != nil {
			return err
		}

		if prev := p.attach(c, r.now()); prev != nil {
			prev.shutdown()
		}

		var timeLimit *int64
		if !r.startedAt.IsZero() {
			ms := r.timeLimit.Milliseconds()
			timeLimit = &ms
		}

		logf(r.cfg, "ROOMS: Player %q reconnected to %s", p.name, r.code)

		p.push(ReconnectedMessage{
			Type:           msgReconnected,
			RoomCode:       r.code,
			PlayerName:     p.name,
			IsHost:         p.host,
			StartedAt:      unixMilli(r.startedAt),
			TimeLimit:      timeLimit,
			GameStarted:    r.state != stateWaiting,
			GameEnded:      r.state == stateEnded,
			Password:       p.password,
			RuleStates:     p.statesCopy(),
			RulesCompleted: p.solved,
			TotalRules:     len(p.rules),
			AllSolved:      p.allSolved,
			Rules:          rules.Messages(p.rules),
		})

		if r.state == stateEnded {
			p.push(GameEndedMessage{
				Type:       msgGameEnded,
				FinalStats: r.finalStats,
				Reason:     r.endReason,
			})
		}
		if !p.host {
			r.notifyHost(SimpleMessage{Type: msgPlayerJoined})
		}

		return nil
	})
}

// disconnect detaches c from playerID without discarding any progress.
func (r *Room) disconnect(playerID string, c *Client) {
	_ = r.do(func() {
		p, ok := r.players[playerID]
		if !ok || !p.detach(c, r.now()) {
			return
		}

		logf(r.cfg, "ROOMS: Player %q disconnected from %s", p.name, r.code)

		if !p.host {
			r.notifyHost(SimpleMessage{Type: msgPlayerLeft})
		}
	})
}

func (r *Room) start(playerID string) error {
	return r.doErr(func() error {
		if err := r.requireHostLocked(playerID); err != nil {
			return err
		}
		if r.state != stateWaiting {
			return ErrInvalidTransition
		}
		if len(r.contestants()) == 0 {
			return ErrNoPlayers
		}

		r.state = stateStarted
		r.startedAt = r.now()
		if r.timeLimit > 0 {
			r.timer = time.NewTimer(r.timeLimit)
			r.deadline.Store(r.startedAt.Add(r.timeLimit).UnixNano())
		}

		logf(r.cfg, "ROOMS: Game in %s started with %d players, limit %s", r.code, len(r.contestants()), r.timeLimit)

		r.broadcast(GameStartedMessage{
			Type:      msgGameStarted,
			StartedAt: r.startedAt.UnixMilli(),
			TimeLimit: r.timeLimit.Milliseconds(),
		})
		r.pushStatsToHost()

		return nil
	})
}

func (r *Room) stop(playerID string) error {
	return r.doErr(func() error {
		if err := r.requireHostLocked(playerID); err != nil {
			return err
		}
		if r.state != stateStarted {
			return ErrInvalidTransition
		}
		r.endGame(reasonStopped)
		return nil
	})
}

func (r *Room) updateProgress(playerID string, req *UpdateProgressRequest) error {
	return r.doErr(func() error {
		p, err := r.lookup(playerID)
		if err != nil {
			return err
		}
		if p.host {
			return ErrUnauthorized
		}
		switch r.state {
		case stateWaiting:
			return ErrInvalidTransition
		case stateEnded:
			return ErrGameEnded
		}

		res, finished, err := p.applyProgress(*req.Password, r.now())
		if err != nil {
			return err
		}

		if req.RulesCompleted != res.Solved || req.AllSolved != res.AllSolved {
			logf(r.cfg, "PROTO: Player %q in %s reported %d rules, validated %d", p.name, r.code, req.RulesCompleted, res.Solved)
		}

		r.afterProgress(p, res, finished)

		return nil
	})
}

func (r *Room) regenerate(playerID string, num int) error {
	return r.doErr(func() error {
		p, err := r.lookup(playerID)
		if err != nil {
			return err
		}
		if p.host {
			return ErrUnauthorized
		}
		if r.state == stateEnded {
			return ErrGameEnded
		}

		res, finished, err := p.regenerate(num, r.now())
		if err != nil {
			return err
		}

		p.push(RuleRegeneratedMessage{
			Type:    msgRuleRegenerated,
			Num:     num,
			Message: p.rules[num-1].Message(),
		})

		r.afterProgress(p, res, finished)

		return nil
	})
}

func (r *Room) afterProgress(p *PlayerSession, res rules.Result, finished bool) {
	p.push(ProgressMessage{
		Type:           msgProgress,
		RulesCompleted: res.Solved,
		TotalRules:     len(res.States),
		RuleStates:     p.statesCopy(),
		AllSolved:      res.AllSolved,
	})

	if finished {
		logf(r.cfg, "ROOMS: Player %q in %s solved every rule", p.name, r.code)
	}

	if r.state == stateStarted && r.allCompleted() {
		r.endGame(reasonAllCompleted)
		return
	}

	r.pushStatsToHost()
}

// sendStats pushes the current standings to playerID.
func (r *Room) sendStats(playerID string) error {
	return r.doErr(func() error {
		p, err := r.lookup(playerID)
		if err != nil {
			return err
		}
		p.push(RoomStatsMessage{
			Type:  msgRoomStats,
			Stats: r.buildStats(),
		})
		return nil
	})
}

// stats is a read-only snapshot of the room.
func (r *Room) stats() (RoomStats, error) {
	var stats RoomStats
	err := r.do(func() { stats = r.buildStats() })
	return stats, err
}

func (r *Room) requireHost(playerID string) error {
	return r.doErr(func() error {
		return r.requireHostLocked(playerID)
	})
}

// close tells every connection the room is gone and stops the room.
func (r *Room) close(reason string) {
	err := r.do(func() {
		r.broadcast(SimpleMessage{Type: msgRoomClosed, Message: reason})
		for _, p := range r.players {
			p.frozen = true
		}
		r.closed = true
	})
	if err != nil {
		r.shutdown()
	}
}
