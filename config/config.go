// Package config loads ecgstudio settings from YAML, ECG_ environment
// variables and built-in defaults, in increasing order of precedence.
package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/YuminosukeSato/ecgstudio/analysis"
	"github.com/YuminosukeSato/ecgstudio/client"
	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/YuminosukeSato/ecgstudio/pkg/log"
	"github.com/YuminosukeSato/ecgstudio/training"
	"github.com/YuminosukeSato/ecgstudio/upload"
	"github.com/YuminosukeSato/ecgstudio/workspace"
)

const (
	// EnvPrefix marks environment overrides. A double underscore separates
	// key levels: ECG_SERVER__BASE_URL sets server.base_url.
	EnvPrefix = "ECG_"

	// PathEnv names the config file used when none is given.
	PathEnv = "ECG_CONFIG_PATH"

	DefaultPath = "ecgstudio.yaml"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Polling  PollingConfig  `koanf:"polling"`
	Upload   UploadConfig   `koanf:"upload"`
	Analysis AnalysisConfig `koanf:"analysis"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	BaseURL        string        `koanf:"base_url"`
	CSRFToken      string        `koanf:"csrf_token"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type PollingConfig struct {
	Interval time.Duration `koanf:"interval"`
}

type UploadConfig struct {
	MaxSizeBytes int64    `koanf:"max_size_bytes"`
	Extensions   []string `koanf:"extensions"`
}

type AnalysisConfig struct {
	DefaultSamplingFrequency int `koanf:"default_sampling_frequency"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Server:   ServerConfig{BaseURL: "http://localhost:8000"},
		Polling:  PollingConfig{Interval: training.DefaultPollInterval},
		Upload:   UploadConfig{MaxSizeBytes: upload.DefaultMaxSize, Extensions: []string{"csv", "xlsx"}},
		Analysis: AnalysisConfig{DefaultSamplingFrequency: analysis.DefaultSamplingFrequency},
		Log:      LogConfig{Level: "info", Format: log.FormatConsole},
	}
}

// Load reads provider as YAML on top of the defaults, then applies
// environment overrides. A nil provider skips the file layer.
func Load(provider koanf.Provider) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, errors.Wrap(err, "config: load defaults")
	}
	if provider != nil {
		if err := k.Load(provider, yaml.Parser()); err != nil {
			return Config{}, errors.Wrap(err, "config: load file")
		}
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil)
	if err != nil {
		return Config{}, errors.Wrap(err, "config: load env")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile loads path, or PathEnv, or DefaultPath. A missing file is only an
// error when path was given explicitly.
func LoadFile(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(PathEnv)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err != nil {
		if explicit || !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "config: %s", path)
		}
		return Load(nil)
	}
	return Load(file.Provider(path))
}

// Write emits cfg as YAML.
func Write(cfg Config, w io.Writer) error {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return errors.Wrap(err, "config: load")
	}
	out, err := k.Marshal(yaml.Parser())
	if err != nil {
		return errors.Wrap(err, "config: marshal")
	}
	_, err = w.Write(out)
	return err
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	fields := errors.FieldErrors{}
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		fields.Add("server.base_url", errors.MsgRequired)
	}
	if c.Server.RequestTimeout < 0 {
		fields.Add("server.request_timeout", "must not be negative")
	}
	if c.Polling.Interval <= 0 {
		fields.Add("polling.interval", "must be positive")
	}
	if c.Upload.MaxSizeBytes <= 0 {
		fields.Add("upload.max_size_bytes", "must be positive")
	}
	if c.Analysis.DefaultSamplingFrequency <= 0 {
		fields.Add("analysis.default_sampling_frequency", "must be positive")
	}
	if _, err := log.ToLogLevel(c.Log.Level); err != nil {
		fields.Add("log.level", err.Error())
	}
	switch c.Log.Format {
	case log.FormatJSON, log.FormatConsole:
	default:
		fields.Add("log.format", errors.MsgInvalidChoice)
	}
	if len(fields) > 0 {
		return errors.NewValidationError(fields)
	}
	return nil
}

// SetupLogger installs the configured process-wide logger.
func (c Config) SetupLogger() error {
	return log.SetupLogger(c.Log.Level, c.Log.Format)
}

// NewClient returns a session client for the configured service.
func (c Config) NewClient(opts ...client.Option) (*client.Client, error) {
	base := []client.Option{client.WithTimeout(c.Server.RequestTimeout)}
	if c.Server.CSRFToken != "" {
		base = append(base, client.WithCSRFToken(c.Server.CSRFToken))
	}
	return client.New(c.Server.BaseURL, append(base, opts...)...)
}

// WorkspaceOptions maps the settings onto a workspace.
func (c Config) WorkspaceOptions() workspace.Options {
	return workspace.Options{
		TrainingOptions: []training.Option{training.WithPollInterval(c.Polling.Interval)},
		AnalysisOptions: []analysis.Option{analysis.WithDefaultSamplingFrequency(c.Analysis.DefaultSamplingFrequency)},
		UploadOptions: []upload.Option{
			upload.WithMaxSize(c.Upload.MaxSizeBytes),
			upload.WithExtensions(c.Upload.Extensions...),
		},
	}
}
