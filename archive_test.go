/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(code string) GameResult {
	taken := int64(90000)
	return GameResult{
		RoomCode:  code,
		Reason:    reasonAllCompleted,
		StartedAt: 1700000000000,
		EndedAt:   1700000090000,
		TimeLimit: time.Hour.Milliseconds(),
		FinalStats: []PlayerStats{
			{ID: "p1", Name: "Alice", RulesCompleted: 2, TotalRules: 2, AllSolved: true, TimeTaken: &taken},
		},
	}
}

func TestMemoryArchiveExpires(t *testing.T) {
	clock := newFakeClock()
	a := newMemoryArchive(time.Minute)
	a.now = clock.Now
	ctx := context.Background()

	_, err := a.Load(ctx, "ABC234")
	assert.ErrorIs(t, err, ErrResultsNotFound)

	want := sampleResult("ABC234")
	require.NoError(t, a.Save(ctx, want))

	got, err := a.Load(ctx, "ABC234")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	clock.Advance(2 * time.Minute)
	_, err = a.Load(ctx, "ABC234")
	assert.ErrorIs(t, err, ErrResultsNotFound)

	require.NoError(t, a.Save(ctx, sampleResult("XYZ789")))
	assert.Len(t, a.results, 1)
}

func TestServeResults(t *testing.T) {
	cfg := testConfig()
	a := newMemoryArchive(time.Hour)
	require.NoError(t, a.Save(context.Background(), sampleResult("ABC234")))

	mux := httprouter.New()
	mux.GET("/results/:code", serveResults(cfg, a))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results/abc234", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got GameResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ABC234", got.RoomCode)
	require.Len(t, got.FinalStats, 1)
	assert.Equal(t, "Alice", got.FinalStats[0].Name)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results/NOPE23", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArchiveResultsHook(t *testing.T) {
	a := newMemoryArchive(time.Hour)
	archiveResults(testConfig(), a)(sampleResult("HOOK23"))

	_, err := a.Load(context.Background(), "HOOK23")
	assert.NoError(t, err)
}

func TestRedisArchive(t *testing.T) {
	addr := os.Getenv("PASSWORDGAME_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PASSWORDGAME_TEST_REDIS_ADDR not set")
	}

	cfg := testConfig()
	cfg.redisAddr = addr
	cfg.resultsTTL = time.Minute

	ctx := context.Background()
	archive, err := newArchive(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })

	code := uuid.NewString()[:6]

	_, err = archive.Load(ctx, code)
	assert.ErrorIs(t, err, ErrResultsNotFound)

	want := sampleResult(code)
	require.NoError(t, archive.Save(ctx, want))

	got, err := archive.Load(ctx, code)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}
