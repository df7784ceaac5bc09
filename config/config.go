// Package config loads evmgas settings from TOML files.
//
// Keys are the exact Go field names, as in geth's config files:
//
//	Fork = "Cancun"
//
//	[Log]
//	Level = "info"
//	Format = "color"
//
//	[Context]
//	GasRemaining = 1000000
//	WarmAddresses = ["0x000000000000000000000000000000000000dead"]
//
//	[Analysis]
//	EnforceBudget = true
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/naoina/toml"

	"github.com/eth2030/evmgas/core/forks"
	"github.com/eth2030/evmgas/core/vm"
	"github.com/eth2030/evmgas/log"
)

var (
	ErrInvalidValue = errors.New("config: invalid call value")
	ErrInvalidFork  = errors.New("config: fork is not set")
	ErrGasLimit     = errors.New("config: gas remaining exceeds gas limit")
)

// tomlSettings makes field names case-sensitive and rejects unknown keys.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// Config is the top-level evmgas configuration.
type Config struct {
	Fork     forks.Fork
	Log      LogConfig
	Context  ContextConfig
	Analysis AnalysisConfig
	Schedule vm.GasSchedule
}

// LogConfig selects the log level and the line format.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json, color
}

// ContextConfig seeds the execution context analyses start from.
type ContextConfig struct {
	GasRemaining uint64
	GasPrice     uint64
	GasLimit     uint64
	Address      common.Address
	Caller       common.Address
	Value        string `toml:",omitempty"` // decimal, or hex with 0x prefix
	Static       bool

	WarmAddresses []common.Address `toml:",omitempty"`
	WarmStorage   []StorageKeys    `toml:",omitempty"`
}

// StorageKeys lists the pre-warmed slots of one contract.
type StorageKeys struct {
	Address common.Address
	Keys    []common.Hash
}

// AnalysisConfig tunes the sequence analyzer.
type AnalysisConfig struct {
	EnforceBudget    bool
	WarningThreshold uint64

	// AssumeColdIsEmpty charges the new-account surcharge when value is sent
	// to an address that is still cold.
	AssumeColdIsEmpty bool
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{
		Fork: forks.Latest(),
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Context: ContextConfig{
			GasRemaining: vm.DefaultGasRemaining,
			GasPrice:     vm.DefaultGasPrice,
			GasLimit:     vm.DefaultGasLimit,
		},
		Analysis: AnalysisConfig{
			WarningThreshold:  vm.DefaultWarningThreshold,
			AssumeColdIsEmpty: true,
		},
		Schedule: vm.DefaultGasSchedule(),
	}
}

// Load reads file on top of the defaults. Keys missing from the file keep
// their default value.
func Load(file string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(file)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := Decode(f, &cfg); err != nil {
		// Add file name to errors that have a line number.
		var lerr *toml.LineError
		if errors.As(err, &lerr) {
			err = errors.New(file + ", " + err.Error())
		}
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Decode parses TOML from r into cfg.
func Decode(r io.Reader, cfg *Config) error {
	return tomlSettings.NewDecoder(bufio.NewReader(r)).Decode(cfg)
}

// Dump writes cfg as TOML.
func Dump(w io.Writer, cfg Config) error {
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// Validate checks the values a TOML decoder cannot.
func (c *Config) Validate() error {
	if c.Fork == forks.Unknown {
		return ErrInvalidFork
	}
	if !c.Fork.Valid() {
		return fmt.Errorf("%w: epoch %d", forks.ErrUnknownFork, c.Fork.Epoch())
	}
	if _, err := log.FormatterByName(c.Log.Format); err != nil {
		return err
	}
	if c.Context.GasLimit != 0 && c.Context.GasRemaining > c.Context.GasLimit {
		return fmt.Errorf("%w: %d > %d", ErrGasLimit, c.Context.GasRemaining, c.Context.GasLimit)
	}
	if _, err := c.Context.CallValue(); err != nil {
		return err
	}
	return nil
}

// CallValue parses Value. An empty value is zero.
func (c *ContextConfig) CallValue() (*uint256.Int, error) {
	s := strings.TrimSpace(c.Value)
	if s == "" {
		return new(uint256.Int), nil
	}
	var (
		v   *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = uint256.FromHex(s)
	} else {
		v, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidValue, c.Value, err)
	}
	return v, nil
}

// NewContext builds a fresh execution context from the settings. Every
// analysis needs its own context, so callers invoke this once per run.
func (c *ContextConfig) NewContext() (*vm.ExecutionContext, error) {
	value, err := c.CallValue()
	if err != nil {
		return nil, err
	}
	b := vm.NewContextBuilder().
		WithAddress(c.Address).
		WithCaller(c.Caller).
		WithValue(value).
		WithGas(c.GasRemaining, c.GasPrice, c.GasLimit).
		WithStatic(c.Static).
		WithWarmAddresses(c.WarmAddresses...)
	for _, s := range c.WarmStorage {
		b.WithWarmStorage(s.Address, s.Keys...)
	}
	return b.Build(), nil
}

// NewCalculator binds a calculator for the configured fork and schedule.
func (c *Config) NewCalculator(reg *vm.ForkRegistry) *vm.GasCalculator {
	return vm.NewGasCalculator(reg, c.Fork,
		vm.WithSchedule(c.Schedule),
		vm.WithColdAsEmpty(c.Analysis.AssumeColdIsEmpty),
	)
}

// AnalyzerConfig converts the analysis section.
func (c *Config) AnalyzerConfig() vm.AnalyzerConfig {
	return vm.AnalyzerConfig{
		EnforceBudget:    c.Analysis.EnforceBudget,
		WarningThreshold: c.Analysis.WarningThreshold,
	}
}

// NewLogger creates a logger writing to w with the configured level and
// format.
func (c *Config) NewLogger(w io.Writer) (*log.Logger, error) {
	f, err := log.FormatterByName(c.Log.Format)
	if err != nil {
		return nil, err
	}
	return log.NewFormatted(w, log.LevelFromString(c.Log.Level).Slog(), f), nil
}
