package config

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// keyAliases maps shorthand .conf keys to their canonical names.
var keyAliases = map[string]string{
	"produce": "block.produce",
	"backend": "storage.backend",
}

// LoadFile loads node configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig decodes file values onto cfg. Keys are matched against
// the `conf` struct tags; unknown keys are ignored and fields without a
// value keep their current setting.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	input := make(map[string]interface{}, len(values))
	for key, value := range values {
		if canonical, ok := keyAliases[key]; ok {
			key = canonical
		}
		input[key] = value
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "conf",
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToBoolHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("config decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	return nil
}

// stringToBoolHook accepts the spellings parseBool does, which is wider
// than strconv.ParseBool.
var stringToBoolHook mapstructure.DecodeHookFuncType = func(f, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t.Kind() != reflect.Bool {
		return data, nil
	}
	return parseBool(data.(string)), nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default node configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	defaults := Default(network)
	content := `# Klingnet Ledger Node Configuration
#
# This file contains NODE settings only.
# Protocol rules (authorities, genesis allocations) live in the genesis
# file and cannot be changed without restarting the chain.

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.klingnet-ledger)
# datadir = ~/.klingnet-ledger

# Genesis file (default: built-in genesis for the network)
# genesis = /path/to/genesis.json

# ============================================================================
# Storage
# ============================================================================

# Backend: memory, badger or bolt
storage.backend = ` + defaults.Storage.Backend + `
# storage.path = /path/to/ledger

# ============================================================================
# Block Production
# ============================================================================

block.produce = ` + fmt.Sprint(defaults.Block.Produce) + `
block.interval = ` + defaults.Block.Interval.String() + `
block.maxtxs = ` + fmt.Sprint(defaults.Block.MaxTxs) + `
# block.keyfile = ~/.klingnet-ledger/authority.key

# ============================================================================
# Transaction Pool
# ============================================================================

mempool.maxsize = ` + fmt.Sprint(defaults.Mempool.MaxSize) + `
mempool.workers = ` + fmt.Sprint(defaults.Mempool.Workers) + `
mempool.pendingttl = ` + defaults.Mempool.PendingTTL.String() + `

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
