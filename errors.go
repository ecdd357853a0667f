/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrInvalidTransition = errors.New("action not allowed in current game state")
	ErrGameEnded         = errors.New("game has ended")
	ErrNoPlayers         = errors.New("at least one player must join before starting")
	ErrNameTaken         = errors.New("that name is already taken")
	ErrUnauthorized      = errors.New("only the host may do that")
	ErrNotRegenerable    = errors.New("rule cannot be regenerated")
	ErrResultsNotFound   = errors.New("no results stored for room")

	errMalformedMessage = errors.New("malformed message")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// errorf is logged regardless of verbosity.
func errorf(format string, args ...any) {
	log.Printf("%s | ERROR: "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// humanReadableSize formats n in SI units, e.g. 1.5 kB.
func humanReadableSize(n int64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	exp := 0
	value := float64(n) / unit
	for value >= unit && exp < 5 {
		value /= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", value, "kMGTPE"[exp])
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>html,body{height:100%;margin:0;display:flex;align-items:center;justify-content:center;font-family:monospace;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><p>%s</p></body></html>", body))

	return htmlBody.String()
}
