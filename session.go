/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Seednode/passwordgame/rules"
)

// PlayerSession is one participant of a room. It is only ever touched from
// its room's run loop. The connection may come and go; identity and
// progress stay.
type PlayerSession struct {
	id   string
	name string
	host bool

	client *Client

	password    string
	rules       []rules.Rule
	ruleStates  []rules.State
	maxUnlocked int
	solved      int
	allSolved   bool
	frozen      bool

	joinedAt   time.Time
	finishedAt time.Time
	lastSeenAt time.Time
}

func newPlayerID() string {
	return uuid.NewString()
}

func newPlayerSession(id, name string, host bool, ruleSet []rules.Rule, now time.Time) *PlayerSession {
	return &PlayerSession{
		id:         id,
		name:       name,
		host:       host,
		rules:      ruleSet,
		ruleStates: rules.NewStates(len(ruleSet)),
		joinedAt:   now,
		lastSeenAt: now,
	}
}

// attach binds c as the live connection and returns the one it replaced,
// if any.
func (p *PlayerSession) attach(c *Client, now time.Time) *Client {
	prev := p.client
	p.client = c
	p.lastSeenAt = now
	if prev == c {
		return nil
	}
	return prev
}

// detach clears the connection only if it is still c, so a stale
// connection closing after a reconnect leaves the newer one alone.
func (p *PlayerSession) detach(c *Client, now time.Time) bool {
	if p.client == nil || p.client != c {
		return false
	}
	p.client = nil
	p.lastSeenAt = now
	return true
}

func (p *PlayerSession) connected() bool {
	return p.client != nil
}

// push sends msg to the live connection, if there is one.
func (p *PlayerSession) push(msg any) {
	if p.client != nil {
		p.client.push(msg)
	}
}

// applyProgress re-validates password against this player's rules. It
// reports whether this call completed every rule for the first time.
func (p *PlayerSession) applyProgress(password string, now time.Time) (rules.Result, bool, error) {
	if p.frozen {
		return rules.Result{}, false, ErrGameEnded
	}

	res := rules.Evaluate(password, p.rules, p.ruleStates)

	return res, p.record(password, res, now), nil
}

// regenerate re-rolls rule num and rechecks only that rule.
func (p *PlayerSession) regenerate(num int, now time.Time) (rules.Result, bool, error) {
	if p.frozen {
		return rules.Result{}, false, ErrGameEnded
	}
	if num < 1 || num > len(p.rules) {
		return rules.Result{}, false, fmt.Errorf("rule %d: %w", num, ErrNotRegenerable)
	}

	r, ok := p.rules[num-1].(rules.Regenerator)
	if !ok {
		return rules.Result{}, false, fmt.Errorf("rule %d: %w", num, ErrNotRegenerable)
	}
	r.Regenerate()

	res := rules.Recheck(p.password, p.rules, p.ruleStates, num)

	return res, p.record(p.password, res, now), nil
}

func (p *PlayerSession) record(password string, res rules.Result, now time.Time) bool {
	p.password = password
	p.ruleStates = res.States
	if res.MaxUnlocked > p.maxUnlocked {
		p.maxUnlocked = res.MaxUnlocked
	}
	p.solved = res.Solved
	p.allSolved = res.AllSolved
	p.lastSeenAt = now

	if p.allSolved && p.finishedAt.IsZero() {
		p.finishedAt = now
		return true
	}
	return false
}

func (p *PlayerSession) statesCopy() []rules.State {
	out := make([]rules.State, len(p.ruleStates))
	copy(out, p.ruleStates)
	return out
}
