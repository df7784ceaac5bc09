package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eth2030/evmgas/core/forks"
	"github.com/eth2030/evmgas/core/vm"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "evmgas.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, forks.Latest(), cfg.Fork)
	assert.Equal(t, vm.DefaultGasRemaining, cfg.Context.GasRemaining)
	assert.Equal(t, vm.DefaultWarningThreshold, cfg.Analysis.WarningThreshold)
	assert.True(t, cfg.Analysis.AssumeColdIsEmpty)
	assert.Equal(t, vm.DefaultGasSchedule(), cfg.Schedule)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
Fork = "Berlin"

[Log]
Level = "debug"
Format = "json"

[Context]
GasRemaining = 50000
Value = "0x10"
Static = true
WarmAddresses = ["0x000000000000000000000000000000000000dEaD"]

[[Context.WarmStorage]]
Address = "0x00000000000000000000000000000000000000aa"
Keys = ["0x0000000000000000000000000000000000000000000000000000000000000001"]

[Analysis]
EnforceBudget = true
WarningThreshold = 2000

[Schedule]
ColdSload = 4000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, forks.Berlin, cfg.Fork)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, uint64(50000), cfg.Context.GasRemaining)
	assert.True(t, cfg.Context.Static)
	assert.Equal(t, []common.Address{common.HexToAddress("0xdead")}, cfg.Context.WarmAddresses)
	require.Len(t, cfg.Context.WarmStorage, 1)
	assert.Equal(t, common.HexToAddress("0xaa"), cfg.Context.WarmStorage[0].Address)
	assert.True(t, cfg.Analysis.EnforceBudget)
	assert.Equal(t, uint64(2000), cfg.Analysis.WarningThreshold)
	assert.Equal(t, uint64(4000), cfg.Schedule.ColdSload)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, vm.DefaultGasPrice, cfg.Context.GasPrice)
	assert.Equal(t, vm.WarmStorageReadCost, cfg.Schedule.WarmStorageRead)
	assert.True(t, cfg.Analysis.AssumeColdIsEmpty)
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeFile(t, "[Log]\nVerbosity = 3\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Verbosity")
	assert.True(t, strings.HasPrefix(err.Error(), path), "error should name the file: %v", err)
}

func TestLoad_KeysAreCaseSensitive(t *testing.T) {
	path := writeFile(t, "fork = \"London\"\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_UnknownFork(t *testing.T) {
	path := writeFile(t, "Fork = \"Osaka\"\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Context.GasRemaining = cfg.Context.GasLimit + 1
	require.ErrorIs(t, cfg.Validate(), ErrGasLimit)

	cfg = DefaultConfig()
	cfg.Context.Value = "ten"
	require.ErrorIs(t, cfg.Validate(), ErrInvalidValue)

	cfg = DefaultConfig()
	cfg.Fork = forks.Unknown
	require.ErrorIs(t, cfg.Validate(), ErrInvalidFork)

	cfg = DefaultConfig()
	cfg.Fork = forks.Fork(150)
	require.ErrorIs(t, cfg.Validate(), forks.ErrUnknownFork)

	cfg = DefaultConfig()
	cfg.Log.Format = "xml"
	require.Error(t, cfg.Validate())
}

func TestCallValue(t *testing.T) {
	for in, want := range map[string]uint64{"": 0, "1000": 1000, "0x10": 16, " 7 ": 7} {
		c := ContextConfig{Value: in}
		v, err := c.CallValue()
		require.NoError(t, err, in)
		assert.Equal(t, want, v.Uint64(), in)
	}
}

func TestNewContext(t *testing.T) {
	addr := common.HexToAddress("0xaa")
	slot := common.BigToHash(common.Big1)
	cc := ContextConfig{
		GasRemaining:  7000,
		GasPrice:      1,
		GasLimit:      10_000,
		Address:       addr,
		Value:         "5",
		WarmAddresses: []common.Address{common.HexToAddress("0xdead")},
		WarmStorage:   []StorageKeys{{Address: addr, Keys: []common.Hash{slot}}},
	}
	ctx, err := cc.NewContext()
	require.NoError(t, err)
	assert.Equal(t, uint64(7000), ctx.GasRemaining())
	assert.Equal(t, addr, ctx.Address())
	assert.Equal(t, uint64(5), ctx.Value().Uint64())
	assert.True(t, ctx.IsAddressWarm(common.HexToAddress("0xdead")))
	assert.True(t, ctx.IsStorageWarm(addr, slot))
	assert.Equal(t, 1, ctx.WarmSlotCount())

	// Each call returns an independent context.
	other, err := cc.NewContext()
	require.NoError(t, err)
	ctx.MarkAddressAccessed(common.HexToAddress("0xbeef"))
	assert.False(t, other.IsAddressWarm(common.HexToAddress("0xbeef")))
}

func TestNewCalculator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fork = forks.Berlin
	cfg.Schedule.ColdSload = 4000
	calc := cfg.NewCalculator(vm.NewDefaultRegistry())
	assert.Equal(t, forks.Berlin, calc.Fork())

	ctx, err := cfg.Context.NewContext()
	require.NoError(t, err)
	gas, err := calc.SingleOpcodeCost(vm.SLOAD, ctx, vm.Ops(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(4000), gas)
}

func TestAnalyzerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analysis.EnforceBudget = true
	ac := cfg.AnalyzerConfig()
	assert.True(t, ac.EnforceBudget)
	assert.Equal(t, vm.DefaultWarningThreshold, ac.WarningThreshold)
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "info"
	var buf bytes.Buffer
	l, err := cfg.NewLogger(&buf)
	require.NoError(t, err)
	l.Debug("hidden")
	l.Info("shown", "fork", "Cancun")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown fork=Cancun")

	cfg.Log.Format = "yaml"
	_, err = cfg.NewLogger(&buf)
	require.Error(t, err)
}

func TestDumpRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fork = forks.London
	cfg.Context.WarmAddresses = []common.Address{common.HexToAddress("0xdead")}

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, cfg))
	assert.Contains(t, buf.String(), `"London"`)

	var back Config
	require.NoError(t, Decode(&buf, &back))
	assert.Equal(t, cfg, back)
}
