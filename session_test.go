/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/passwordgame/rules"
)

func TestApplyProgressStampsFinishOnce(t *testing.T) {
	start := time.Now()
	p := newPlayerSession(newPlayerID(), "Alice", false, twoRules(), start)

	res, finished, err := p.applyProgress("abc", start.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Equal(t, 1, res.Solved)
	assert.True(t, p.finishedAt.IsZero())

	_, finished, err = p.applyProgress("abc1", start.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, finished)
	assert.Equal(t, start.Add(2*time.Second), p.finishedAt)

	_, _, err = p.applyProgress("ab", start.Add(3*time.Second))
	require.NoError(t, err)
	assert.False(t, p.allSolved)
	assert.Equal(t, 2, p.maxUnlocked)

	_, finished, err = p.applyProgress("abc1", start.Add(4*time.Second))
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Equal(t, start.Add(2*time.Second), p.finishedAt)
	assert.Equal(t, start.Add(4*time.Second), p.lastSeenAt)
}

func TestFrozenSessionRejectsChanges(t *testing.T) {
	p := newPlayerSession(newPlayerID(), "Alice", false, twoRules(), time.Now())
	p.frozen = true

	_, _, err := p.applyProgress("abc1", time.Now())
	assert.ErrorIs(t, err, ErrGameEnded)

	_, _, err = p.regenerate(1, time.Now())
	assert.ErrorIs(t, err, ErrGameEnded)
	assert.Empty(t, p.password)
}

func TestAttachDetach(t *testing.T) {
	cfg := testConfig()
	p := newPlayerSession(newPlayerID(), "Alice", false, twoRules(), time.Now())
	a, b := newTestClient(cfg), newTestClient(cfg)

	assert.Nil(t, p.attach(a, time.Now()))
	assert.True(t, p.connected())
	assert.Nil(t, p.attach(a, time.Now()))

	assert.Same(t, a, p.attach(b, time.Now()))
	assert.False(t, p.detach(a, time.Now()))
	assert.True(t, p.connected())

	assert.True(t, p.detach(b, time.Now()))
	assert.False(t, p.connected())
	assert.False(t, p.detach(b, time.Now()))

	// Pushing to a detached session is a no-op.
	p.push(SimpleMessage{Type: msgPlayerJoined})
	assert.Empty(t, b.send)
}

func TestStatesCopyIsIndependent(t *testing.T) {
	p := newPlayerSession(newPlayerID(), "Alice", false, twoRules(), time.Now())
	_, _, err := p.applyProgress("abc", time.Now())
	require.NoError(t, err)

	states := p.statesCopy()
	states[0].Correct = false

	assert.True(t, p.ruleStates[0].Correct)
}

func TestRegenerateUnlocksNothingNew(t *testing.T) {
	p := newPlayerSession(newPlayerID(), "Alice", false, []rules.Rule{
		rules.MinLength(3),
		rules.NewRomanSum(35),
		rules.ContainsDigit(),
	}, time.Now())

	_, _, err := p.applyProgress("XXXV", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, rules.Unlocked(p.ruleStates))

	res, finished, err := p.regenerate(2, time.Now())
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Equal(t, 1, res.Solved)
	assert.True(t, res.States[2].Unlocked)
	assert.False(t, res.States[1].Correct)
}
