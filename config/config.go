// Package config loads the process configuration of an apireg server from
// TOML, an optional .env file and APIREG_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
)

// Config is the root of apireg.toml.
type Config struct {
	Server  Server  `toml:"server"`
	Log     Log     `toml:"log"`
	CORS    CORS    `toml:"cors"`
	Metrics Metrics `toml:"metrics"`
	Client  Client  `toml:"client"`
}

type Server struct {
	Listen             string   `toml:"listen"`
	TLSCert            string   `toml:"tls_cert"`
	TLSKey             string   `toml:"tls_key"`
	ReadTimeout        Duration `toml:"read_timeout"`
	WriteTimeout       Duration `toml:"write_timeout"`
	IdleTimeout        Duration `toml:"idle_timeout"`
	ShutdownTimeout    Duration `toml:"shutdown_timeout"`
	MaxBodyBytes       int64    `toml:"max_body_bytes"`
	MaskInternalErrors bool     `toml:"mask_internal_errors"`
	// Language is the fallback for validation messages.
	Language string `toml:"language"`
}

type Log struct {
	Dir        string `toml:"dir"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Console    bool   `toml:"console"`
}

type CORS struct {
	Enabled          bool     `toml:"enabled"`
	AllowOrigins     []string `toml:"allow_origins"`
	AllowMethods     []string `toml:"allow_methods"`
	AllowHeaders     []string `toml:"allow_headers"`
	ExposeHeaders    []string `toml:"expose_headers"`
	AllowCredentials bool     `toml:"allow_credentials"`
	MaxAge           int      `toml:"max_age"`
}

type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Client configures where the endpoint bundle is served.
type Client struct {
	Path string `toml:"path"`
}

// Duration is a time.Duration written as a Go duration string ("15s").
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used for every key the file leaves out.
func Default() Config {
	return Config{
		Server: Server{
			Listen:          ":4000",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
			MaxBodyBytes:    1 << 20,
			Language:        "en",
		},
		Log: Log{
			Dir:        "log",
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Console:    true,
		},
		Metrics: Metrics{Enabled: true, Path: "/metrics"},
		Client:  Client{Path: "/api/endpoints.js"},
	}
}

// Load reads path on top of Default, then applies environment overrides.
// An empty path skips the file. dotenv files are loaded first when present;
// variables already set in the environment win over them.
func Load(path string, dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := Decode(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode strictly decodes TOML into cfg. Unknown keys are an error.
func Decode(b []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	return toml.Marshal(cfg)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("APIREG_LISTEN", &c.Server.Listen)
	str("SERVER_LISTEN_ADDRESS", &c.Server.Listen)
	str("SSL_SERVER_CERTIFICATE", &c.Server.TLSCert)
	str("SSL_SERVER_KEY", &c.Server.TLSKey)
	str("APIREG_LANGUAGE", &c.Server.Language)
	str("APIREG_LOG_DIR", &c.Log.Dir)
	str("APIREG_LOG_LEVEL", &c.Log.Level)
	if v, ok := lookup("APIREG_CORS_ORIGINS"); ok && v != "" {
		c.CORS.Enabled = true
		c.CORS.AllowOrigins = splitList(v)
	}
	return errors.Join(
		boolean("APIREG_MASK_INTERNAL_ERRORS", &c.Server.MaskInternalErrors),
		boolean("APIREG_METRICS", &c.Metrics.Enabled),
		boolean("APIREG_LOG_CONSOLE", &c.Log.Console),
	)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen must be set"))
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, errors.New("server.tls_cert and server.tls_key must be set together"))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("server.max_body_bytes must not be negative"))
	}
	if _, err := language.Parse(c.Server.Language); err != nil {
		errs = append(errs, fmt.Errorf("server.language: %w", err))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, errors.New("metrics.path must start with /"))
	}
	if !strings.HasPrefix(c.Client.Path, "/") {
		errs = append(errs, errors.New("client.path must start with /"))
	}
	return errors.Join(errs...)
}

// LanguageTag returns the parsed fallback language.
func (s Server) LanguageTag() language.Tag {
	tag, err := language.Parse(s.Language)
	if err != nil {
		return language.English
	}
	return tag
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
