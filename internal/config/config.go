// Package config loads the run configuration.
//
// Sources, lowest to highest precedence:
//  1. built-in defaults (they reproduce the reference setup: a local
//     Postgres "sparkifydb" and the data/ directory)
//  2. an optional YAML file (-config flag, or SPARKIFY_CONFIG)
//  3. environment variables prefixed SPARKIFY_ (SPARKIFY_STORAGE_DSN -> storage.dsn)
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"sparkify/internal/storage"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SPARKIFY_"
	// PathEnvVar names the config file when -config is not given.
	PathEnvVar = "SPARKIFY_CONFIG"
)

// Config is the full run configuration.
type Config struct {
	Storage Storage `koanf:"storage"`
	Paths   Paths   `koanf:"paths"`
	Match   Match   `koanf:"match"`
	Users   Users   `koanf:"users"`
	Logging Logging `koanf:"logging"`
	Metrics Metrics `koanf:"metrics"`

	// AutoCreateTables runs the backend DDL before loading. Off by default:
	// the schema is normally created out of band.
	AutoCreateTables bool `koanf:"auto_create_tables"`
}

type Storage struct {
	Kind string `koanf:"kind" validate:"required,storage_kind"`
	DSN  string `koanf:"dsn" validate:"required_unless=Kind duckdb"`
}

type Paths struct {
	SongData string `koanf:"song_data" validate:"required"`
	LogData  string `koanf:"log_data" validate:"required"`
}

// Match tunes the songplay lookup.
type Match struct {
	// DurationTolerance is the absolute difference in seconds allowed between
	// an event's length and a catalog duration. 0 means exact equality.
	DurationTolerance float64 `koanf:"duration_tolerance" validate:"gte=0,lte=60"`
	// NormalizeUnicode applies NFC to titles and artist names on both sides.
	NormalizeUnicode bool `koanf:"normalize_unicode"`
}

type Users struct {
	// SkipBlankUserID drops events without a userId from the users table.
	SkipBlankUserID bool `koanf:"skip_blank_user_id"`
}

type Logging struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type Metrics struct {
	Backend        string        `koanf:"backend" validate:"oneof=none datadog pushgateway"`
	Job            string        `koanf:"job" validate:"required"`
	PushgatewayURL string        `koanf:"pushgateway_url" validate:"required_if=Backend pushgateway,omitempty,url"`
	Tags           []string      `koanf:"tags"`
	FlushEvery     time.Duration `koanf:"flush_every" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: Storage{
			Kind: "postgres",
			DSN:  "host=127.0.0.1 dbname=sparkifydb user=student password=student",
		},
		Paths: Paths{
			SongData: "data/song_data",
			LogData:  "data/log_data",
		},
		Match: Match{
			DurationTolerance: 1e-6,
			NormalizeUnicode:  true,
		},
		Logging: Logging{Level: "info", Format: "console"},
		Metrics: Metrics{
			Backend:    "none",
			Job:        "sparkify_etl",
			FlushEvery: time.Minute,
		},
	}
}

// Load layers defaults, the YAML file at path (or $SPARKIFY_CONFIG when path
// is empty) and SPARKIFY_ environment variables, then validates the result.
// An explicitly named file that does not exist is an error.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var sections = map[string]bool{
	"storage": true,
	"paths":   true,
	"match":   true,
	"users":   true,
	"logging": true,
	"metrics": true,
}

// envKey maps SPARKIFY_MATCH_DURATION_TOLERANCE to match.duration_tolerance.
// Only the first underscore after a known section separates levels. Keys
// outside a section stay top-level (SPARKIFY_AUTO_CREATE_TABLES). The config
// file variable itself is not a setting and maps to "".
func envKey(s string) string {
	if s == PathEnvVar {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if ok && sections[section] {
		return section + "." + rest
	}
	return key
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("storage_kind", func(fl validator.FieldLevel) bool {
		return storage.Registered(fl.Field().String())
	})
	return v
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks field constraints and that storage.kind names a linked
// backend. The error lists every failing field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "storage_kind":
		return fmt.Sprintf("%s: unsupported storage kind %q (have %v)", field, fe.Value(), storage.Kinds())
	case "oneof":
		return fmt.Sprintf("%s: %v must be one of [%s]", field, fe.Value(), fe.Param())
	case "required", "required_if", "required_unless":
		return fmt.Sprintf("%s: required", field)
	default:
		return fmt.Sprintf("%s: failed %s=%s (value %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
}
