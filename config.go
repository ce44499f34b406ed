package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/askbox/store"
)

const (
	envPrefix       = "ASKBOX"
	minSecretLength = 32
)

type Config struct {
	bind          string
	databaseType  string
	databaseURL   string
	feedback      bool
	messageBurst  int
	messageRate   float64
	port          int
	prefix        string
	profile       bool
	roomTimeout   time.Duration
	sessionSecret string
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.databaseType != store.DriverSQLite && c.databaseType != store.DriverPostgres {
		return fmt.Errorf("invalid database type (must be %q or %q): %q", store.DriverSQLite, store.DriverPostgres, c.databaseType)
	}
	if c.databaseURL == "" {
		return errors.New("--database-url must not be empty")
	}
	if c.sessionSecret != "" && len(c.sessionSecret) < minSecretLength {
		return fmt.Errorf("session secret must be at least %d bytes", minSecretLength)
	}
	if c.roomTimeout < 0 {
		return fmt.Errorf("invalid room timeout: %s", c.roomTimeout)
	}
	if c.messageRate <= 0 || c.messageBurst < 1 {
		return errors.New("--message-rate must be positive and --message-burst at least 1")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// loadDotEnv reads ASKBOX_ENV_FILE, or .env when present, into the
// environment without overriding variables that are already set.
func loadDotEnv() error {
	path, explicit := os.LookupEnv(envPrefix + "_ENV_FILE")
	if !explicit {
		path = ".env"
	}

	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}

	return err
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "askbox",
		Short:         "A turn-based question party game, served over websockets.",
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

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: ASKBOX_BIND)")
	fs.StringVar(&cfg.databaseType, "database-type", store.DriverSQLite, "database driver, sqlite or postgres (env: ASKBOX_DATABASE_TYPE)")
	fs.StringVar(&cfg.databaseURL, "database-url", "askbox.db", "database path or connection string (env: ASKBOX_DATABASE_URL)")
	fs.BoolVar(&cfg.feedback, "feedback", false, "tell players privately when an action is refused (env: ASKBOX_FEEDBACK)")
	fs.IntVar(&cfg.messageBurst, "message-burst", 10, "websocket messages a client may send in a burst (env: ASKBOX_MESSAGE_BURST)")
	fs.Float64Var(&cfg.messageRate, "message-rate", 5, "sustained websocket messages per second per client (env: ASKBOX_MESSAGE_RATE)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: ASKBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: ASKBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: ASKBOX_PROFILE)")
	fs.DurationVar(&cfg.roomTimeout, "room-timeout", 0, "time before idle rooms are dropped from memory, 0 to keep them forever (env: ASKBOX_ROOM_TIMEOUT)")
	fs.StringVar(&cfg.sessionSecret, "session-secret", "", "key for signing session cookies, random per run if unset (env: ASKBOX_SESSION_SECRET)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: ASKBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: ASKBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: ASKBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: ASKBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("askbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
