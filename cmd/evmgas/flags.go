package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/urfave/cli/v2"

	"github.com/eth2030/evmgas/config"
	"github.com/eth2030/evmgas/core/forks"
	"github.com/eth2030/evmgas/core/vm"
	"github.com/eth2030/evmgas/log"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "TOML configuration file",
		EnvVars: []string{"EVMGAS_CONFIG"},
	}
	forkFlag = &cli.StringFlag{
		Name:    "fork",
		Usage:   "Fork to price against (e.g. berlin, london, cancun)",
		EnvVars: []string{"EVMGAS_FORK"},
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log.level",
		Usage: "Log level (debug, info, warn, error)",
	}
	logFormatFlag = &cli.StringFlag{
		Name:  "log.format",
		Usage: "Log format (text, json, color)",
	}
	outputFormatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Report format (text, json, yaml)",
		Value: "text",
	}
	metricsFlag = &cli.BoolFlag{
		Name:  "metrics",
		Usage: "Print collected metrics to stderr on exit",
	}

	// Context flags shared by the pricing commands.
	addressFlag = &cli.StringFlag{
		Name:  "address",
		Usage: "Address of the executing contract",
	}
	valueFlag = &cli.StringFlag{
		Name:  "value",
		Usage: "Call value in wei (decimal or 0x hex)",
	}
	gasFlag = &cli.Uint64Flag{
		Name:  "gas",
		Usage: "Gas remaining at the start of execution",
	}
	staticFlag = &cli.BoolFlag{
		Name:  "static",
		Usage: "Execute inside a static call",
	}
	warmAddressFlag = &cli.StringSliceFlag{
		Name:  "warm-address",
		Usage: "Pre-warm an address (repeatable)",
	}
	warmSlotFlag = &cli.StringSliceFlag{
		Name:  "warm-slot",
		Usage: "Pre-warm a storage slot, as SLOT or ADDRESS:SLOT (repeatable)",
	}
	noColdEmptyFlag = &cli.BoolFlag{
		Name:  "no-cold-empty",
		Usage: "Do not assume cold call targets are empty accounts",
	}
	contextFlags = []cli.Flag{
		addressFlag, valueFlag, gasFlag, staticFlag,
		warmAddressFlag, warmSlotFlag, noColdEmptyFlag,
	}

	enforceBudgetFlag = &cli.BoolFlag{
		Name:  "enforce-budget",
		Usage: "Abort with out-of-gas once the gas budget is exhausted",
	}
	codeFlag = &cli.StringFlag{
		Name:  "code",
		Usage: "Hex encoded bytecode to analyze instead of a sequence",
	}
	estimateFlag = &cli.BoolFlag{
		Name:  "estimate",
		Usage: "Fill in missing operands with estimates",
	}
	fromForkFlag = &cli.StringFlag{
		Name:  "from",
		Usage: "Fork to compare from (default: fork before --to)",
	}
	toForkFlag = &cli.StringFlag{
		Name:  "to",
		Usage: "Fork to compare to (default: --fork)",
	}
	topFlag = &cli.IntFlag{
		Name:  "top",
		Usage: "Also list the N changes with the largest gas delta",
	}
	sequenceFlag = &cli.BoolFlag{
		Name:  "sequence",
		Usage: "Print the program in sequence syntax with estimated operands",
	}
)

// loadConfig resolves the configuration file and applies flag overrides on
// top of it. It also installs the configured logger as the default.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.DefaultConfig()
	if file := ctx.String(configFileFlag.Name); file != "" {
		var err error
		if cfg, err = config.Load(file); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet(forkFlag.Name) {
		f, err := forks.Parse(ctx.String(forkFlag.Name))
		if err != nil {
			return cfg, err
		}
		cfg.Fork = f
	}
	if ctx.IsSet(logLevelFlag.Name) {
		cfg.Log.Level = ctx.String(logLevelFlag.Name)
	}
	if ctx.IsSet(logFormatFlag.Name) {
		cfg.Log.Format = ctx.String(logFormatFlag.Name)
	}
	if err := applyContextFlags(ctx, &cfg); err != nil {
		return cfg, err
	}
	if ctx.IsSet(enforceBudgetFlag.Name) {
		cfg.Analysis.EnforceBudget = ctx.Bool(enforceBudgetFlag.Name)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	logger, err := cfg.NewLogger(ctx.App.ErrWriter)
	if err != nil {
		return cfg, err
	}
	log.SetDefault(logger)
	log.Default().Module("cli").Debug("configuration loaded", "fork", cfg.Fork, "file", ctx.String(configFileFlag.Name))
	return cfg, nil
}

func applyContextFlags(ctx *cli.Context, cfg *config.Config) error {
	cc := &cfg.Context
	if ctx.IsSet(addressFlag.Name) {
		addr, err := parseAddress(ctx.String(addressFlag.Name))
		if err != nil {
			return err
		}
		cc.Address = addr
	}
	if ctx.IsSet(valueFlag.Name) {
		cc.Value = ctx.String(valueFlag.Name)
	}
	if ctx.IsSet(gasFlag.Name) {
		cc.GasRemaining = ctx.Uint64(gasFlag.Name)
		if cc.GasRemaining > cc.GasLimit {
			cc.GasLimit = cc.GasRemaining
		}
	}
	if ctx.IsSet(staticFlag.Name) {
		cc.Static = ctx.Bool(staticFlag.Name)
	}
	if ctx.IsSet(noColdEmptyFlag.Name) {
		cfg.Analysis.AssumeColdIsEmpty = !ctx.Bool(noColdEmptyFlag.Name)
	}
	for _, s := range ctx.StringSlice(warmAddressFlag.Name) {
		addr, err := parseAddress(s)
		if err != nil {
			return err
		}
		cc.WarmAddresses = append(cc.WarmAddresses, addr)
	}
	for _, s := range ctx.StringSlice(warmSlotFlag.Name) {
		owner, slot := cc.Address, s
		if i := strings.IndexByte(s, ':'); i >= 0 {
			addr, err := parseAddress(s[:i])
			if err != nil {
				return err
			}
			owner, slot = addr, s[i+1:]
		}
		key, err := parseSlot(slot)
		if err != nil {
			return err
		}
		cc.WarmStorage = append(cc.WarmStorage, config.StorageKeys{Address: owner, Keys: []common.Hash{key}})
	}
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// parseSlot accepts a decimal or 0x-prefixed storage key.
func parseSlot(s string) (common.Hash, error) {
	v, ok := gmath.ParseBig256(s)
	if !ok {
		return common.Hash{}, fmt.Errorf("invalid storage slot %q", s)
	}
	return common.BigToHash(v), nil
}

// parseCode decodes hex bytecode with or without the 0x prefix.
func parseCode(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	code, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode: %w", err)
	}
	return code, nil
}

// forkOrDefault parses the named flag, falling back to def when unset.
func forkOrDefault(ctx *cli.Context, name string, def forks.Fork) (forks.Fork, error) {
	if !ctx.IsSet(name) {
		return def, nil
	}
	return forks.Parse(ctx.String(name))
}

// newCalculator returns the calculator and analyzer for cfg.
func newCalculator(cfg config.Config) (*vm.GasCalculator, *vm.GasAnalyzer) {
	calc := cfg.NewCalculator(vm.NewDefaultRegistry())
	return calc, vm.NewGasAnalyzer(calc, cfg.AnalyzerConfig())
}
