package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/ytget/yt-fetcher/internal/download"
	"github.com/ytget/yt-fetcher/internal/model"
	"github.com/ytget/yt-fetcher/internal/platform"
)

// Application identity
const (
	AppName        = "yt-fetcher"
	EnvPrefix      = "YTFETCH"
	ConfigFileName = "config.yaml"
	HistoryDBName  = "history.db"
)

// Settings keys
const (
	KeyOutDir           = "download.out_dir"
	KeyKind             = "download.kind"
	KeyAudioQuality     = "download.audio_quality"
	KeyVideoQuality     = "download.video_quality"
	KeyAudioFormat      = "download.audio_format"
	KeyVideoFormat      = "download.video_format"
	KeyFilenameTemplate = "download.filename_template"
	KeyBackend          = "download.backend"
	KeyEventBuffer      = "download.event_buffer"
	KeyProgressInterval = "download.progress_interval"
	KeyFFmpeg           = "tools.ffmpeg"
	KeyFFprobe          = "tools.ffprobe"
	KeyYTDLP            = "tools.ytdlp"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyHistoryEnabled   = "history.enabled"
	KeyHistoryDriver    = "history.driver"
	KeyHistoryDSN       = "history.dsn"
	KeyServerAddr       = "server.addr"
	KeyShutdownTimeout  = "server.shutdown_timeout"
)

// Download backends
const (
	BackendLibrary = "library"
	BackendExec    = "exec"
)

// History drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Default values
const (
	DefaultKind             = model.KindVideo
	DefaultAudioQuality     = "192"
	DefaultVideoQuality     = "1080"
	DefaultAudioFormat      = "mp3"
	DefaultVideoFormat      = "mp4"
	DefaultFilenameTemplate = download.DefaultFilenameTemplate
	DefaultBackend          = BackendLibrary
	DefaultEventBuffer      = download.DefaultEventBuffer
	DefaultProgressInterval = download.DefaultProgressInterval
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultHistoryEnabled   = true
	DefaultHistoryDriver    = DriverSQLite
	DefaultServerAddr       = ":8080"
	DefaultShutdownTimeout  = 15 * time.Second
)

type Config struct {
	Download DownloadConfig  `mapstructure:"download" yaml:"download"`
	Tools    model.ToolPaths `mapstructure:"tools" yaml:"tools"`
	Log      LogConfig       `mapstructure:"log" yaml:"log"`
	History  HistoryConfig   `mapstructure:"history" yaml:"history"`
	Server   ServerConfig    `mapstructure:"server" yaml:"server"`

	// File is the config file that was read, empty when running on defaults
	File string `mapstructure:"-" yaml:"-"`
}

type DownloadConfig struct {
	OutDir           string        `mapstructure:"out_dir" yaml:"out_dir"`
	Kind             model.Kind    `mapstructure:"kind" yaml:"kind"`
	AudioQuality     string        `mapstructure:"audio_quality" yaml:"audio_quality"`
	VideoQuality     string        `mapstructure:"video_quality" yaml:"video_quality"`
	AudioFormat      string        `mapstructure:"audio_format" yaml:"audio_format"`
	VideoFormat      string        `mapstructure:"video_format" yaml:"video_format"`
	FilenameTemplate string        `mapstructure:"filename_template" yaml:"filename_template"`
	Backend          string        `mapstructure:"backend" yaml:"backend"`
	EventBuffer      int           `mapstructure:"event_buffer" yaml:"event_buffer"`
	ProgressInterval time.Duration `mapstructure:"progress_interval" yaml:"progress_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Driver  string `mapstructure:"driver" yaml:"driver"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Load reads defaults, an optional YAML file, .env and YTFETCH_* variables.
// An explicit path must exist; without one, ./config.yaml and then the user
// config directory are tried and a missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	file, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", file, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	cfg.File = file

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.resolveTools()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	outDir, err := platform.GetHomeDownloadsDir()
	if err != nil {
		outDir = filepath.Join(os.TempDir(), "downloads")
	}

	v.SetDefault(KeyOutDir, outDir)
	v.SetDefault(KeyKind, string(DefaultKind))
	v.SetDefault(KeyAudioQuality, DefaultAudioQuality)
	v.SetDefault(KeyVideoQuality, DefaultVideoQuality)
	v.SetDefault(KeyAudioFormat, DefaultAudioFormat)
	v.SetDefault(KeyVideoFormat, DefaultVideoFormat)
	v.SetDefault(KeyFilenameTemplate, DefaultFilenameTemplate)
	v.SetDefault(KeyBackend, DefaultBackend)
	v.SetDefault(KeyEventBuffer, DefaultEventBuffer)
	v.SetDefault(KeyProgressInterval, DefaultProgressInterval)
	v.SetDefault(KeyFFmpeg, "")
	v.SetDefault(KeyFFprobe, "")
	v.SetDefault(KeyYTDLP, "")
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyHistoryEnabled, DefaultHistoryEnabled)
	v.SetDefault(KeyHistoryDriver, DefaultHistoryDriver)
	v.SetDefault(KeyHistoryDSN, "")
	v.SetDefault(KeyServerAddr, DefaultServerAddr)
	v.SetDefault(KeyShutdownTimeout, DefaultShutdownTimeout)
}

func findConfigFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file not found: %s", path)
		}
		return path, nil
	}

	candidates := []string{ConfigFileName}
	if dir, err := platform.GetAppConfigDir(AppName); err == nil {
		candidates = append(candidates, filepath.Join(dir, ConfigFileName))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func (c *Config) validate() error {
	d := &c.Download

	switch d.Kind {
	case model.KindAudio, model.KindVideo:
	case "":
		d.Kind = DefaultKind
	default:
		return fmt.Errorf("%s: unknown kind %q", KeyKind, d.Kind)
	}

	d.AudioQuality = model.NormalizeQuality(d.AudioQuality)
	d.VideoQuality = model.NormalizeQuality(d.VideoQuality)
	if !model.HasQuality(model.KindAudio, d.AudioQuality) {
		return fmt.Errorf("%s: %q is not one of %v", KeyAudioQuality, d.AudioQuality, model.AudioQualities)
	}
	if !model.HasQuality(model.KindVideo, d.VideoQuality) {
		return fmt.Errorf("%s: %q is not one of %v", KeyVideoQuality, d.VideoQuality, model.VideoQualities)
	}
	if !model.HasFormat(model.KindAudio, d.AudioFormat) {
		return fmt.Errorf("%s: %q is not one of %v", KeyAudioFormat, d.AudioFormat, model.AudioFormats)
	}
	if !model.HasFormat(model.KindVideo, d.VideoFormat) {
		return fmt.Errorf("%s: %q is not one of %v", KeyVideoFormat, d.VideoFormat, model.VideoFormats)
	}

	if d.OutDir == "" {
		return fmt.Errorf("%s is required", KeyOutDir)
	}
	if d.FilenameTemplate == "" {
		d.FilenameTemplate = DefaultFilenameTemplate
	}

	switch d.Backend {
	case BackendLibrary, BackendExec:
	default:
		return fmt.Errorf("%s: unknown backend %q", KeyBackend, d.Backend)
	}

	if d.EventBuffer < download.MinEventBuffer {
		d.EventBuffer = download.MinEventBuffer
	}
	if d.EventBuffer > download.MaxEventBuffer {
		d.EventBuffer = download.MaxEventBuffer
	}
	if d.ProgressInterval <= 0 {
		d.ProgressInterval = DefaultProgressInterval
	}

	switch c.History.Driver {
	case DriverSQLite:
		if c.History.DSN == "" {
			dir, err := platform.GetAppConfigDir(AppName)
			if err != nil {
				return err
			}
			c.History.DSN = filepath.Join(dir, HistoryDBName)
		}
	case DriverPostgres:
		if c.History.Enabled && c.History.DSN == "" {
			return fmt.Errorf("%s is required for driver %s", KeyHistoryDSN, DriverPostgres)
		}
	default:
		return fmt.Errorf("%s: unknown driver %q", KeyHistoryDriver, c.History.Driver)
	}

	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	return nil
}

// resolveTools fills in tool paths that were left empty
func (c *Config) resolveTools() {
	if c.Tools.FFmpeg == "" || c.Tools.FFprobe == "" {
		ffmpeg, ffprobe := platform.DetectFFmpeg()
		if c.Tools.FFmpeg == "" {
			c.Tools.FFmpeg = ffmpeg
		}
		if c.Tools.FFprobe == "" {
			c.Tools.FFprobe = ffprobe
		}
	}
	c.Tools.YTDLP = platform.ResolveTool(c.Tools.YTDLP, platform.YTDLPBinary)
}

// Request builds a download request for url from the current settings.
// An empty kind uses the configured default.
func (c *Config) Request(url string, kind model.Kind) model.Request {
	if kind == "" {
		kind = c.Download.Kind
	}

	req := model.Request{
		URL:              strings.TrimSpace(url),
		Kind:             kind,
		OutputDir:        c.Download.OutDir,
		FilenameTemplate: c.Download.FilenameTemplate,
		Tools:            c.Tools,
	}
	if kind == model.KindAudio {
		req.Quality = c.Download.AudioQuality
		req.Format = c.Download.AudioFormat
	} else {
		req.Quality = c.Download.VideoQuality
		req.Format = c.Download.VideoFormat
	}
	return req
}

// Save writes the settings as YAML to path
func (c *Config) Save(path string) error {
	v := viper.New()
	v.Set(KeyOutDir, c.Download.OutDir)
	v.Set(KeyKind, string(c.Download.Kind))
	v.Set(KeyAudioQuality, c.Download.AudioQuality)
	v.Set(KeyVideoQuality, c.Download.VideoQuality)
	v.Set(KeyAudioFormat, c.Download.AudioFormat)
	v.Set(KeyVideoFormat, c.Download.VideoFormat)
	v.Set(KeyFilenameTemplate, c.Download.FilenameTemplate)
	v.Set(KeyBackend, c.Download.Backend)
	v.Set(KeyEventBuffer, c.Download.EventBuffer)
	v.Set(KeyProgressInterval, c.Download.ProgressInterval.String())
	v.Set(KeyFFmpeg, c.Tools.FFmpeg)
	v.Set(KeyFFprobe, c.Tools.FFprobe)
	v.Set(KeyYTDLP, c.Tools.YTDLP)
	v.Set(KeyLogLevel, c.Log.Level)
	v.Set(KeyLogFormat, c.Log.Format)
	v.Set(KeyHistoryEnabled, c.History.Enabled)
	v.Set(KeyHistoryDriver, c.History.Driver)
	v.Set(KeyHistoryDSN, c.History.DSN)
	v.Set(KeyServerAddr, c.Server.Addr)
	v.Set(KeyShutdownTimeout, c.Server.ShutdownTimeout.String())

	if err := platform.CreateDirectoryIfNotExists(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	v.SetConfigType("yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// DefaultConfigPath returns the config file location in the user config directory
func DefaultConfigPath() (string, error) {
	dir, err := platform.GetAppConfigDir(AppName)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}
