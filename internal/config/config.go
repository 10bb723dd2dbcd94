// Package config loads knoldeck settings from defaults, a YAML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultFile is read when no --config flag is given. It may be absent.
const DefaultFile = "knoldeck.yaml"

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore, e.g. KNOLDECK_STORAGE__PATH.
const EnvPrefix = "KNOLDECK_"

type Config struct {
	Storage  StorageConfig  `koanf:"storage"`
	Log      LogConfig      `koanf:"log"`
	Server   ServerConfig   `koanf:"server"`
	Generate GenerateConfig `koanf:"generate"`
}

type StorageConfig struct {
	Backend string        `koanf:"backend" validate:"oneof=sqlite bolt"`
	Path    string        `koanf:"path" validate:"required"`
	Timeout time.Duration `koanf:"timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

type GenerateConfig struct {
	Timeout  time.Duration  `koanf:"timeout"`
	Gemini   GeminiConfig   `koanf:"gemini"`
	Trivia   TriviaConfig   `koanf:"trivia"`
	Geo      GeoConfig      `koanf:"geo"`
	Git      GitConfig      `koanf:"git"`
	Markdown MarkdownConfig `koanf:"markdown"`
}

type GeminiConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model" validate:"required"`
	Count  int    `koanf:"count" validate:"min=1,max=50"`
}

type TriviaConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`
	Amount  int    `koanf:"amount" validate:"min=1,max=50"`
}

type GeoConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`
	Count   int    `koanf:"count" validate:"min=1,max=250"`
}

type GitConfig struct {
	CacheDir string `koanf:"cache_dir" validate:"required"`
}

// MarkdownConfig limits which files the server may import. The CLI reads
// any path it is given.
type MarkdownConfig struct {
	Root string `koanf:"root" validate:"required"`
}

var defaults = map[string]any{
	"storage.backend":          "sqlite",
	"storage.path":             "knoldeck.db",
	"storage.timeout":          5 * time.Second,
	"log.level":                "info",
	"log.format":               "text",
	"server.addr":              "127.0.0.1:8080",
	"generate.timeout":         60 * time.Second,
	"generate.gemini.model":    "gemini-1.5-flash",
	"generate.gemini.count":    7,
	"generate.trivia.base_url": "https://opentdb.com/api.php",
	"generate.trivia.amount":   10,
	"generate.geo.base_url":    "https://restcountries.com/v3.1/all",
	"generate.geo.count":       10,
	"generate.git.cache_dir":   ".knoldeck/repos",
	"generate.markdown.root":   ".",
}

// flagKeys maps command-line flag names onto config keys. Flags not listed
// here are command options, not settings.
var flagKeys = map[string]string{
	"backend":    "storage.backend",
	"db":         "storage.path",
	"log-level":  "log.level",
	"log-format": "log.format",
	"addr":       "server.addr",
}

// Load builds the configuration. path names the YAML file; an empty path
// means DefaultFile, which is skipped when missing. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if flags != nil {
		err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("reading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Generate.Gemini.APIKey == "" {
		cfg.Generate.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// NewLogger builds the process logger described by c.
func NewLogger(c LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
