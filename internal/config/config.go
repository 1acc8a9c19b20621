package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/screa/powminer/pkg/solver"
	"github.com/screa/powminer/pkg/types"
)

// AppName is the name of the application
const AppName = "powminer"

// EnvPrefix is the prefix of environment variables read into the config
const EnvPrefix = "POWMINER"

// Errors
var (
	ErrNoWorkers           = errors.New("workers must be at least 1")
	ErrInvalidPowHash      = errors.New("pow hash must be 32 bytes of hex")
	ErrTargetAndDifficulty = errors.New("specify either --target or --difficulty, not both")
	ErrNoTarget            = errors.New("--pow-hash requires --target or --difficulty")
	ErrInvalidInterval     = errors.New("intervals must be positive")
	ErrInvalidBuffer       = errors.New("buffer sizes must be positive")
	ErrBatchTooLarge       = fmt.Errorf("batch size must be at most %d", uint64(solver.MaxBatchSize))
)

// Keys lists the configuration keys, as used in files, flags and
// (upper-cased, with _ for -) environment variables
var Keys = []string{
	"workers", "arch", "pow-hash", "target", "difficulty", "batch-size",
	"report-interval", "idle-interval", "seal-buffer", "inbox-size",
	"dedupe-size", "verbose", "log-file", "no-progress", "stdin-control",
}

// Config holds the application configuration
type Config struct {
	Workers        int           `mapstructure:"workers"`
	Arch           string        `mapstructure:"arch"`
	PowHash        string        `mapstructure:"pow-hash"`
	Target         string        `mapstructure:"target"`
	Difficulty     uint64        `mapstructure:"difficulty"`
	BatchSize      int           `mapstructure:"batch-size"`
	ReportInterval time.Duration `mapstructure:"report-interval"`
	IdleInterval   time.Duration `mapstructure:"idle-interval"`
	SealBuffer     int           `mapstructure:"seal-buffer"`
	InboxSize      int           `mapstructure:"inbox-size"`
	DedupeSize     int           `mapstructure:"dedupe-size"`
	Verbose        bool          `mapstructure:"verbose"`
	LogFile        string        `mapstructure:"log-file"`
	NoProgress     bool          `mapstructure:"no-progress"`
	StdinControl   bool          `mapstructure:"stdin-control"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Workers:        runtime.NumCPU(),
		Arch:           "auto",
		BatchSize:      1 << 12,
		ReportInterval: 300 * time.Millisecond,
		IdleInterval:   100 * time.Millisecond,
		SealBuffer:     64,
		InboxSize:      16,
		DedupeSize:     1024,
	}
}

// Load populates cfg from v. Values come from, in increasing priority,
// the config file named by the "config" key, POWMINER_* environment
// variables and flags bound to v. Keys v does not know keep cfg's
// current value.
func Load(v *viper.Viper, cfg *Config) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range Keys {
		if err := v.BindEnv(key); err != nil {
			return pkgerrors.Wrapf(err, "failed to bind env for %s", key)
		}
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return pkgerrors.Wrapf(err, "failed to read config file %s", file)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return pkgerrors.Wrap(err, "failed to decode configuration")
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return ErrNoWorkers
	}
	if c.ReportInterval <= 0 || c.IdleInterval <= 0 {
		return ErrInvalidInterval
	}
	if c.SealBuffer <= 0 || c.InboxSize <= 0 || c.DedupeSize <= 0 || c.BatchSize <= 0 {
		return ErrInvalidBuffer
	}
	if uint64(c.BatchSize) > solver.MaxBatchSize {
		return ErrBatchTooLarge
	}
	if c.Target != "" && c.Difficulty != 0 {
		return ErrTargetAndDifficulty
	}
	if c.PowHash != "" {
		if c.Target == "" && c.Difficulty == 0 {
			return ErrNoTarget
		}
		if _, err := c.GetWorkItem(); err != nil {
			return err
		}
	}
	return nil
}

// HasWork returns true if initial work was configured
func (c *Config) HasWork() bool {
	return c.PowHash != ""
}

// GetWorkItem returns the configured initial work
func (c *Config) GetWorkItem() (*types.WorkItem, error) {
	powHash, err := ParsePowHash(c.PowHash)
	if err != nil {
		return nil, err
	}

	var target types.Target
	if c.Target != "" {
		target, err = types.TargetFromHex(c.Target)
		if err != nil {
			return nil, err
		}
		if target.IsZero() {
			return nil, types.ErrTargetZero
		}
	} else {
		target = types.TargetFromDifficulty(c.Difficulty)
	}

	return types.NewWorkItem(powHash, target), nil
}

// GetTargetDescription returns a human-readable description of the target
func (c *Config) GetTargetDescription() string {
	if c.Target != "" {
		return "target: " + c.Target
	}
	if c.Difficulty != 0 {
		return fmt.Sprintf("difficulty: %d", c.Difficulty)
	}
	return "none (waiting for work)"
}

// ParsePowHash decodes a 32-byte hex digest, with or without 0x
func ParsePowHash(s string) (common.Hash, error) {
	h := strings.TrimSpace(s)
	if len(h) >= 2 && (h[0:2] == "0x" || h[0:2] == "0X") {
		h = h[2:]
	}
	if len(h) != 2*common.HashLength {
		return common.Hash{}, ErrInvalidPowHash
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(ErrInvalidPowHash, err.Error())
	}
	return common.BytesToHash(b), nil
}
