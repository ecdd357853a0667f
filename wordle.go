/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/valyala/fasthttp"
)

const wordleDate = "2006-01-02"

var errNoAnswer = errors.New("no daily answer available")

type wordleResponse struct {
	Solution string `json:"solution"`
}

// WordleFetcher keeps today's daily word answer cached. Answer never
// blocks; it returns the last value fetched.
type WordleFetcher struct {
	cfg    *Config
	client *fasthttp.Client
	now    func() time.Time

	mu       sync.RWMutex
	date     string
	solution string
	raw      []byte
}

func newWordleFetcher(cfg *Config) *WordleFetcher {
	return &WordleFetcher{
		cfg: cfg,
		client: &fasthttp.Client{
			Name:         "passwordgame/" + releaseVersion,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		now: time.Now,
	}
}

func (w *WordleFetcher) Answer() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.solution
}

func (w *WordleFetcher) cached() (string, []byte) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.date, w.raw
}

// refresh fetches the answer for today. On failure the previous answer is
// kept.
func (w *WordleFetcher) refresh() error {
	today := w.now().Format(wordleDate)
	url := fmt.Sprintf(w.cfg.wordleURL, today)

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	if err := w.client.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode())
	}

	raw := append([]byte(nil), resp.Body()...)

	var parsed wordleResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parse %s: %w", url, err)
	}
	if parsed.Solution == "" {
		return fmt.Errorf("parse %s: %w", url, errNoAnswer)
	}

	w.mu.Lock()
	w.date = today
	w.solution = strings.ToLower(parsed.Solution)
	w.raw = raw
	w.mu.Unlock()

	logf(w.cfg, "WORDLE: Cached answer for %s", today)

	return nil
}

// stale reports whether the cached answer is missing or from another day.
func (w *WordleFetcher) stale() bool {
	date, _ := w.cached()

	return date != w.now().Format(wordleDate)
}

func (w *WordleFetcher) run(ctx context.Context) {
	if err := w.refresh(); err != nil {
		errorf("WORDLE: %v", err)
	}

	refresh := time.NewTicker(w.cfg.wordleRefresh)
	defer refresh.Stop()

	rollover := time.NewTicker(time.Minute)
	defer rollover.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
		case <-rollover.C:
			if !w.stale() {
				continue
			}
		}

		if err := w.refresh(); err != nil {
			errorf("WORDLE: %v", err)
		}
	}
}

type wordleProxyResponse struct {
	Contents string `json:"contents"`
}

// serveWordle returns the cached upstream body wrapped the way a CORS
// proxy would, so browsers can read it without talking to upstream.
func serveWordle(cfg *Config, w *WordleFetcher) httprouter.Handle {
	return func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		_, raw := w.cached()
		if raw == nil {
			http.Error(rw, errNoAnswer.Error(), http.StatusServiceUnavailable)
			return
		}

		body, err := json.Marshal(wordleProxyResponse{Contents: string(raw)})
		if err != nil {
			http.Error(rw, "encoding failed", http.StatusInternalServerError)
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.Header().Set("Cache-Control", "no-cache")
		rw.Header().Set("Access-Control-Allow-Origin", "*")
		securityHeaders(cfg, rw)

		written, err := rw.Write(body)
		if err != nil {
			errorf("SERVE: %v", err)
			return
		}

		logf(cfg, "SERVE: Daily answer (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
