/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/Seednode/passwordgame/rules"
)

// Inbound message types
const (
	msgCreateRoom     = "create_room"
	msgJoinRoom       = "join_room"
	msgReconnect      = "reconnect"
	msgUpdateProgress = "update_progress"
	msgStartGame      = "start_game"
	msgStopGame       = "stop_game"
	msgGetStats       = "get_stats"
	msgRegenerateRule = "regenerate_rule"
	msgDestroyRoom    = "destroy_room"
)

// Outbound message types
const (
	msgRoomCreated     = "room_created"
	msgRoomJoined      = "room_joined"
	msgJoinFailed      = "join_failed"
	msgReconnected     = "reconnected"
	msgGameStarted     = "game_started"
	msgGameEnded       = "game_ended"
	msgRoomStats       = "room_stats"
	msgPlayerJoined    = "player_joined"
	msgPlayerLeft      = "player_left"
	msgProgress        = "progress"
	msgRuleRegenerated = "rule_regenerated"
	msgRoomClosed      = "room_closed"
	msgError           = "error"
)

// Reasons carried by game_ended
const (
	reasonAllCompleted = "all_completed"
	reasonTimeUp       = "time_up"
	reasonStopped      = "stopped"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type envelope struct {
	Type string `json:"type" validate:"required"`
}

type CreateRoomRequest struct {
	PlayerName string `json:"playerName" validate:"required,max=32"`
	TimeLimit  int    `json:"timeLimit" validate:"omitempty,min=1,max=525600"` // minutes
}

type JoinRoomRequest struct {
	RoomCode   string `json:"roomCode" validate:"required,len=6,alphanum"`
	PlayerName string `json:"playerName" validate:"required,max=32"`
}

type ReconnectRequest struct {
	PlayerID string `json:"playerId" validate:"required,uuid"`
}

// UpdateProgressRequest mirrors what the client computed locally. Only the
// password is trusted; the rest is compared against the server's own
// evaluation.
type UpdateProgressRequest struct {
	RulesCompleted int           `json:"rulesCompleted" validate:"min=0"`
	TotalRules     int           `json:"totalRules" validate:"min=0"`
	Password       *string       `json:"password" validate:"required,max=512"`
	RuleStates     []rules.State `json:"ruleStates" validate:"dive"`
	AllSolved      bool          `json:"allSolved"`
}

type RegenerateRuleRequest struct {
	Num int `json:"num" validate:"required,min=1"`
}

// bare is used for messages that carry no fields.
type bare struct{}

// decodeClientMessage returns the message type and its validated payload.
func decodeClientMessage(data []byte) (string, any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errMalformedMessage, err)
	}
	if err := validate.Struct(env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errMalformedMessage, err)
	}

	var payload any
	switch env.Type {
	case msgCreateRoom:
		payload = &CreateRoomRequest{}
	case msgJoinRoom:
		payload = &JoinRoomRequest{}
	case msgReconnect:
		payload = &ReconnectRequest{}
	case msgUpdateProgress:
		payload = &UpdateProgressRequest{}
	case msgRegenerateRule:
		payload = &RegenerateRuleRequest{}
	case msgStartGame, msgStopGame, msgGetStats, msgDestroyRoom:
		return env.Type, bare{}, nil
	default:
		return env.Type, nil, fmt.Errorf("%w: unknown type %q", errMalformedMessage, env.Type)
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return env.Type, nil, fmt.Errorf("%w: %s: %v", errMalformedMessage, env.Type, err)
	}
	if err := validate.Struct(payload); err != nil {
		return env.Type, nil, fmt.Errorf("%w: %s: %v", errMalformedMessage, env.Type, err)
	}

	return env.Type, payload, nil
}

type RoomCreatedMessage struct {
	Type       string   `json:"type"` // "room_created"
	RoomCode   string   `json:"roomCode"`
	PlayerID   string   `json:"playerId"`
	TotalRules int      `json:"totalRules"`
	Rules      []string `json:"rules"`
}

type RoomJoinedMessage struct {
	Type       string   `json:"type"` // "room_joined"
	PlayerID   string   `json:"playerId"`
	RoomCode   string   `json:"roomCode"`
	TotalRules int      `json:"totalRules"`
	Rules      []string `json:"rules"`
}

// SimpleMessage is for join_failed, player_joined, player_left, room_closed
// and error.
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// ReconnectedMessage lets a client resynchronize without replaying history.
type ReconnectedMessage struct {
	Type           string        `json:"type"` // "reconnected"
	RoomCode       string        `json:"roomCode"`
	PlayerName     string        `json:"playerName"`
	IsHost         bool          `json:"isHost"`
	StartedAt      *int64        `json:"startedAt,omitempty"`
	TimeLimit      *int64        `json:"timeLimit,omitempty"`
	GameStarted    bool          `json:"gameStarted"`
	GameEnded      bool          `json:"gameEnded"`
	Password       string        `json:"password"`
	RuleStates     []rules.State `json:"ruleStates"`
	RulesCompleted int           `json:"rulesCompleted"`
	TotalRules     int           `json:"totalRules"`
	AllSolved      bool          `json:"allSolved"`
	Rules          []string      `json:"rules"`
}

type GameStartedMessage struct {
	Type      string `json:"type"` // "game_started"
	StartedAt int64  `json:"startedAt"`
	TimeLimit int64  `json:"timeLimit"`
}

type GameEndedMessage struct {
	Type       string        `json:"type"` // "game_ended"
	FinalStats []PlayerStats `json:"finalStats"`
	Reason     string        `json:"reason"`
}

// PlayerStats is one leaderboard row. TimeTaken is only set in final
// standings.
type PlayerStats struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	RulesCompleted int           `json:"rulesCompleted"`
	TotalRules     int           `json:"totalRules"`
	AllSolved      bool          `json:"allSolved"`
	RuleStates     []rules.State `json:"ruleStates"`
	FinishedAt     *int64        `json:"finishedAt,omitempty"`
	Connected      bool          `json:"connected"`
	TimeTaken      *int64        `json:"timeTaken,omitempty"`
}

type RoomStats struct {
	TotalPlayers int           `json:"totalPlayers"`
	Players      []PlayerStats `json:"players"`
	GameStarted  bool          `json:"gameStarted"`
	GameEnded    bool          `json:"gameEnded"`
	StartedAt    *int64        `json:"startedAt"`
	TimeLimit    int64         `json:"timeLimit"`
	EndReason    string        `json:"endReason,omitempty"`
}

type RoomStatsMessage struct {
	Type  string    `json:"type"` // "room_stats"
	Stats RoomStats `json:"stats"`
}

// ProgressMessage acknowledges the sender with the server's evaluation.
type ProgressMessage struct {
	Type           string        `json:"type"` // "progress"
	RulesCompleted int           `json:"rulesCompleted"`
	TotalRules     int           `json:"totalRules"`
	RuleStates     []rules.State `json:"ruleStates"`
	AllSolved      bool          `json:"allSolved"`
}

type RuleRegeneratedMessage struct {
	Type    string `json:"type"` // "rule_regenerated"
	Num     int    `json:"num"`
	Message string `json:"message"`
}
