/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newHandlerClient(reg *Registry) *Client {
	c := newTestClient(reg.cfg)
	c.reg = reg
	return c
}

func TestPushShutsDownSlowClient(t *testing.T) {
	c := newTestClient(testConfig())
	c.send = make(chan any, 1)

	c.push(SimpleMessage{Type: msgPlayerJoined})
	c.push(SimpleMessage{Type: msgPlayerLeft})

	select {
	case <-c.done:
	default:
		t.Fatal("client was not shut down")
	}

	// Further pushes are dropped quietly.
	c.push(SimpleMessage{Type: msgPlayerJoined})
	assert.Len(t, c.send, 1)
}

func TestHandleCreateAndJoin(t *testing.T) {
	reg := newRegistry(testConfig(), twoRules, nil)
	t.Cleanup(reg.Close)

	host := newHandlerClient(reg)
	host.handle([]byte(`{"type":"create_room","playerName":"Host","timeLimit":5}`))

	created := expectMessage[RoomCreatedMessage](t, host)
	require.True(t, host.bound())
	assert.Equal(t, created.PlayerID, host.playerID)
	assert.Equal(t, 5*time.Minute, host.room.timeLimit)

	player := newHandlerClient(reg)
	player.handle(fmt.Appendf(nil, `{"type":"join_room","roomCode":"%s","playerName":"Alice"}`, created.RoomCode))

	joined := expectMessage[RoomJoinedMessage](t, player)
	assert.Equal(t, joined.PlayerID, player.playerID)
	assert.Same(t, host.room, player.room)

	// A bound connection can't start over.
	player.handle([]byte(`{"type":"create_room","playerName":"Again"}`))
	assert.Equal(t, 1, reg.Len())

	player.handle([]byte(`{"type":"start_game"}`))
	msg := expectSimple(t, player, msgError)
	assert.Equal(t, "Only the host can do that.", msg.Message)

	host.handle([]byte(`{"type":"start_game"}`))
	expectMessage[GameStartedMessage](t, player)

	player.handle([]byte(`{"type":"update_progress","rulesCompleted":2,"totalRules":2,"password":"abc1","ruleStates":[],"allSolved":true}`))
	ended := expectMessage[GameEndedMessage](t, host)
	assert.Equal(t, reasonAllCompleted, ended.Reason)

	late := newHandlerClient(reg)
	late.handle(fmt.Appendf(nil, `{"type":"join_room","roomCode":"%s","playerName":"Bob"}`, created.RoomCode))
	failed := expectSimple(t, late, msgJoinFailed)
	assert.Equal(t, "Game already started.", failed.Message)
	assert.False(t, late.bound())
}

func TestHandleDefaultTimeLimitAndMaximum(t *testing.T) {
	cfg := testConfig()
	cfg.maxTimeLimit = 2 * time.Hour
	reg := newRegistry(cfg, twoRules, nil)
	t.Cleanup(reg.Close)

	c := newHandlerClient(reg)
	c.handle([]byte(`{"type":"create_room","playerName":"Host","timeLimit":600}`))
	expectSimple(t, c, msgError)
	assert.False(t, c.bound())

	c.handle([]byte(`{"type":"create_room","playerName":"Host"}`))
	expectMessage[RoomCreatedMessage](t, c)
	assert.Equal(t, cfg.defaultTimeLimit, c.room.timeLimit)
}

func TestHandleDropsMalformedAndUnboundMessages(t *testing.T) {
	reg := newRegistry(testConfig(), twoRules, nil)
	t.Cleanup(reg.Close)

	c := newHandlerClient(reg)
	for _, data := range []string{
		`not json`,
		`{"type":"mystery"}`,
		`{"type":"join_room","roomCode":"ABC"}`,
		`{"type":"start_game"}`,
		`{"type":"update_progress","password":"abc"}`,
	} {
		c.handle([]byte(data))
	}

	assert.False(t, c.bound())
	assert.Empty(t, c.send)
	assert.Zero(t, reg.Len())

	select {
	case <-c.done:
		t.Fatal("malformed input closed the connection")
	default:
	}
}

func TestHandleReconnectAndDestroy(t *testing.T) {
	reg := newRegistry(testConfig(), twoRules, nil)
	t.Cleanup(reg.Close)

	host := newHandlerClient(reg)
	host.handle([]byte(`{"type":"create_room","playerName":"Host"}`))
	created := expectMessage[RoomCreatedMessage](t, host)

	unknown := newHandlerClient(reg)
	unknown.handle([]byte(`{"type":"reconnect","playerId":"00000000-0000-0000-0000-000000000000"}`))
	msg := expectSimple(t, unknown, msgError)
	assert.Equal(t, "Session not found.", msg.Message)

	again := newHandlerClient(reg)
	again.handle(fmt.Appendf(nil, `{"type":"reconnect","playerId":"%s"}`, created.PlayerID))
	snap := expectMessage[ReconnectedMessage](t, again)
	assert.True(t, snap.IsHost)
	assert.Equal(t, created.RoomCode, snap.RoomCode)

	again.handle([]byte(`{"type":"get_stats"}`))
	stats := expectMessage[RoomStatsMessage](t, again)
	assert.Zero(t, stats.Stats.TotalPlayers)

	again.handle([]byte(`{"type":"destroy_room"}`))
	expectSimple(t, again, msgRoomClosed)
	assert.Zero(t, reg.Len())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Room not found.", userMessage(fmt.Errorf("lookup: %w", ErrRoomNotFound)))
	assert.Equal(t, "That rule can't be regenerated.", userMessage(ErrNotRegenerable))
	assert.Equal(t, "Something went wrong.", userMessage(errors.New("boom")))
}

func TestHandleRejectsOverflowingTimeLimit(t *testing.T) {
	reg := newRegistry(testConfig(), twoRules, nil)
	t.Cleanup(reg.Close)

	c := newHandlerClient(reg)
	for _, limit := range []int{200000000, 24*60 + 1} {
		c.handle(fmt.Appendf(nil, `{"type":"create_room","playerName":"Host","timeLimit":%d}`, limit))
	}
	assert.False(t, c.bound())
	assert.Zero(t, reg.Len())

	c.handle([]byte(`{"type":"create_room","playerName":"Host","timeLimit":1440}`))
	expectMessage[RoomCreatedMessage](t, c)
	require.True(t, c.bound())
	assert.Equal(t, 24*time.Hour, c.room.timeLimit)
}

func TestRateLimitNeverDropsProgress(t *testing.T) {
	reg := newRegistry(testConfig(), twoRules, nil)
	t.Cleanup(reg.Close)

	host := newHandlerClient(reg)
	host.handle([]byte(`{"type":"create_room","playerName":"Host"}`))
	created := expectMessage[RoomCreatedMessage](t, host)

	player := newHandlerClient(reg)
	player.handle(fmt.Appendf(nil, `{"type":"join_room","roomCode":"%s","playerName":"Alice"}`, created.RoomCode))
	expectMessage[RoomJoinedMessage](t, player)

	host.handle([]byte(`{"type":"start_game"}`))
	expectMessage[GameStartedMessage](t, player)

	player.limiter = rate.NewLimiter(rate.Limit(200), 5)

	for range 20 {
		player.handle([]byte(`{"type":"update_progress","password":"ab"}`))
	}
	player.handle([]byte(`{"type":"update_progress","password":"abc1"}`))

	ended := expectMessage[GameEndedMessage](t, host)
	assert.Equal(t, reasonAllCompleted, ended.Reason)
	require.Len(t, ended.FinalStats, 1)
	assert.True(t, ended.FinalStats[0].AllSolved)
}

func TestRateLimitDropsOtherMessages(t *testing.T) {
	reg := newRegistry(testConfig(), twoRules, nil)
	t.Cleanup(reg.Close)

	host := newHandlerClient(reg)
	host.handle([]byte(`{"type":"create_room","playerName":"Host"}`))
	expectMessage[RoomCreatedMessage](t, host)
	drain(host)

	host.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	host.handle([]byte(`{"type":"get_stats"}`))
	expectMessage[RoomStatsMessage](t, host)

	host.handle([]byte(`{"type":"get_stats"}`))
	assert.Empty(t, host.send)
}

func TestShutdownCancelsProgressWait(t *testing.T) {
	reg := newRegistry(testConfig(), twoRules, nil)
	t.Cleanup(reg.Close)

	c := newHandlerClient(reg)
	c.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, c.admit(msgUpdateProgress))

	done := make(chan bool)
	go func() { done <- c.admit(msgUpdateProgress) }()

	c.shutdown()

	select {
	case admitted := <-done:
		assert.False(t, admitted)
	case <-time.After(2 * time.Second):
		t.Fatal("progress wait was not cancelled")
	}
}
