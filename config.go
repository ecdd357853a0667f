/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind             string
	defaultTimeLimit time.Duration
	joinURL          string
	maxTimeLimit     time.Duration
	messageBurst     int
	messageRate      float64
	port             int
	prefix           string
	profile          bool
	redisAddr        string
	redisDB          int
	redisPassword    string
	resultsTTL       time.Duration
	sessionTimeout   time.Duration
	tlsCert          string
	tlsKey           string
	verbose          bool
	version          bool
	wordleRefresh    time.Duration
	wordleURL        string
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.defaultTimeLimit < time.Minute {
		return fmt.Errorf("invalid default time limit (must be at least 1m): %s", c.defaultTimeLimit)
	}
	if c.maxTimeLimit < c.defaultTimeLimit {
		return fmt.Errorf("max time limit %s is below default time limit %s", c.maxTimeLimit, c.defaultTimeLimit)
	}
	if c.messageRate <= 0 || c.messageBurst < 1 {
		return errors.New("--message-rate and --message-burst must be positive")
	}
	if c.wordleURL != "" && !strings.Contains(c.wordleURL, "%s") {
		return errors.New("--wordle-url must contain a %s placeholder for the date")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PASSWORDGAME")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "passwordgame",
		Short:         "A multiplayer race to build a password that satisfies an ever-growing list of rules.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PASSWORDGAME_BIND)")
	fs.DurationVar(&cfg.defaultTimeLimit, "default-time-limit", 60*time.Minute, "game length used when the host does not choose one (env: PASSWORDGAME_DEFAULT_TIME_LIMIT)")
	fs.StringVar(&cfg.joinURL, "join-url", "", "join page URL encoded into room QR codes, %s is replaced by the room code (env: PASSWORDGAME_JOIN_URL)")
	fs.DurationVar(&cfg.maxTimeLimit, "max-time-limit", 24*time.Hour, "longest game a host may request (env: PASSWORDGAME_MAX_TIME_LIMIT)")
	fs.IntVar(&cfg.messageBurst, "message-burst", 60, "inbound websocket messages allowed in a burst (env: PASSWORDGAME_MESSAGE_BURST)")
	fs.Float64Var(&cfg.messageRate, "message-rate", 30, "sustained inbound websocket messages per second per connection (env: PASSWORDGAME_MESSAGE_RATE)")
	fs.IntVarP(&cfg.port, "port", "p", 3001, "port to listen on (env: PASSWORDGAME_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PASSWORDGAME_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PASSWORDGAME_PROFILE)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "", "redis address for the results archive, in-memory if unset (env: PASSWORDGAME_REDIS_ADDR)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "redis database number (env: PASSWORDGAME_REDIS_DB)")
	fs.StringVar(&cfg.redisPassword, "redis-password", "", "redis password (env: PASSWORDGAME_REDIS_PASSWORD)")
	fs.DurationVar(&cfg.resultsTTL, "results-ttl", 24*time.Hour, "how long final standings stay retrievable (env: PASSWORDGAME_RESULTS_TTL)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 2*time.Hour, "time before idle rooms are closed, 0 to disable (env: PASSWORDGAME_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PASSWORDGAME_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PASSWORDGAME_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PASSWORDGAME_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PASSWORDGAME_VERSION)")
	fs.DurationVar(&cfg.wordleRefresh, "wordle-refresh", time.Hour, "how often to refresh the daily word answer (env: PASSWORDGAME_WORDLE_REFRESH)")
	fs.StringVar(&cfg.wordleURL, "wordle-url", "https://www.nytimes.com/svc/wordle/v2/%s.json", "daily word answer endpoint, %s is replaced by YYYY-MM-DD, empty to disable (env: PASSWORDGAME_WORDLE_URL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("passwordgame v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
