package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FTP defines the file-transfer endpoint.
type FTP struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	OutboundDir     string `yaml:"outbound_dir"`
	InboundDir      string `yaml:"inbound_dir"`
	ProcessedSubdir string `yaml:"processed_subdir"`
}

// Addr returns the host:port dial address.
func (f FTP) Addr() string {
	return fmt.Sprintf("%s:%d", f.Host, f.Port)
}

// Local defines local staging directories.
type Local struct {
	OutboundDir string `yaml:"outbound_dir"`
	StagingDir  string `yaml:"staging_dir"`
	ArchiveDir  string `yaml:"archive_dir"`
}

// Outbound defines the export file naming contract.
type Outbound struct {
	FilePrefix      string `yaml:"file_prefix"`
	DataExtension   string `yaml:"data_extension"`
	MarkerExtension string `yaml:"marker_extension"`
	NoPeriodOperand string `yaml:"no_period_operand"`
}

// Inbound defines inbound file discovery.
type Inbound struct {
	FilePattern string `yaml:"file_pattern"`
}

// Retry defines the transfer retry policy.
type Retry struct {
	MaxAttempts int `yaml:"max_attempts"`
	WaitSeconds int `yaml:"wait_seconds"`
}

// Wait returns the inter-attempt delay.
func (r Retry) Wait() time.Duration {
	return time.Duration(r.WaitSeconds) * time.Second
}

// Schedule defines the daemon-mode schedule.
type Schedule struct {
	DailyAt string `yaml:"daily_at"`
}

// Config bundles the full engine configuration.
type Config struct {
	DatabaseURL string   `yaml:"database_url"`
	FTP         FTP      `yaml:"ftp"`
	Local       Local    `yaml:"local"`
	Outbound    Outbound `yaml:"outbound"`
	Inbound     Inbound  `yaml:"inbound"`
	Retry       Retry    `yaml:"retry"`
	Schedule    Schedule `yaml:"schedule"`
	HTTPAddr    string   `yaml:"http_addr"`
}

// Load builds configuration from defaults, an optional yaml file named by
// METERLINK_CONFIG, and environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("METERLINK_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		FTP: FTP{
			Port:            21,
			ProcessedSubdir: "processed",
		},
		Local: Local{
			OutboundDir: filepath.FromSlash("var/outbound"),
			StagingDir:  filepath.FromSlash("var/staging"),
			ArchiveDir:  filepath.FromSlash("var/archive"),
		},
		Outbound: Outbound{
			FilePrefix:      "EXP",
			DataExtension:   "txt",
			MarkerExtension: "sem",
			NoPeriodOperand: "EABL",
		},
		Inbound: Inbound{
			FilePattern: "MRD_*.txt",
		},
		Retry: Retry{
			MaxAttempts: 3,
			WaitSeconds: 5,
		},
		Schedule: Schedule{
			DailyAt: "02:00",
		},
		HTTPAddr: ":8080",
	}
}

func applyEnv(cfg *Config) {
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.DatabaseURL))
	cfg.FTP.Host = getenvDefault("FTP_HOST", cfg.FTP.Host)
	cfg.FTP.Port = getenvIntDefault("FTP_PORT", cfg.FTP.Port)
	cfg.FTP.Username = getenvDefault("FTP_USERNAME", cfg.FTP.Username)
	cfg.FTP.Password = getenvDefault("FTP_PASSWORD", cfg.FTP.Password)
	cfg.FTP.OutboundDir = getenvDefault("FTP_OUTBOUND_DIR", cfg.FTP.OutboundDir)
	cfg.FTP.InboundDir = getenvDefault("FTP_INBOUND_DIR", cfg.FTP.InboundDir)
	cfg.FTP.ProcessedSubdir = getenvDefault("FTP_PROCESSED_SUBDIR", cfg.FTP.ProcessedSubdir)
	cfg.Local.OutboundDir = getenvDefault("LOCAL_OUTBOUND_DIR", cfg.Local.OutboundDir)
	cfg.Local.StagingDir = getenvDefault("LOCAL_STAGING_DIR", cfg.Local.StagingDir)
	cfg.Local.ArchiveDir = getenvDefault("LOCAL_ARCHIVE_DIR", cfg.Local.ArchiveDir)
	cfg.Outbound.FilePrefix = getenvDefault("OUTBOUND_FILE_PREFIX", cfg.Outbound.FilePrefix)
	cfg.Outbound.DataExtension = getenvDefault("OUTBOUND_DATA_EXTENSION", cfg.Outbound.DataExtension)
	cfg.Outbound.MarkerExtension = getenvDefault("OUTBOUND_MARKER_EXTENSION", cfg.Outbound.MarkerExtension)
	cfg.Outbound.NoPeriodOperand = getenvDefault("OUTBOUND_NO_PERIOD_OPERAND", cfg.Outbound.NoPeriodOperand)
	cfg.Inbound.FilePattern = getenvDefault("INBOUND_FILE_PATTERN", cfg.Inbound.FilePattern)
	cfg.Retry.MaxAttempts = getenvIntDefault("TRANSFER_RETRY_ATTEMPTS", cfg.Retry.MaxAttempts)
	cfg.Retry.WaitSeconds = getenvIntDefault("TRANSFER_RETRY_WAIT_SECONDS", cfg.Retry.WaitSeconds)
	cfg.Schedule.DailyAt = getenvDefault("SCHEDULE_DAILY_AT", cfg.Schedule.DailyAt)
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
}

// Validate checks fields the engine cannot run without.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if c.FTP.Host == "" {
		return errors.New("config: ftp host is required")
	}
	if c.FTP.Port <= 0 {
		return errors.New("config: ftp port must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		return errors.New("config: retry max_attempts must be positive")
	}
	if c.Retry.WaitSeconds < 0 {
		return errors.New("config: retry wait_seconds must not be negative")
	}
	if c.Outbound.DataExtension == c.Outbound.MarkerExtension {
		return errors.New("config: data and marker extensions must differ")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
