package appdata

import (
	"time"

	"github.com/spf13/viper"

	"github.com/nas-ai/vaultcrypt/internal/chainhash"
	"github.com/nas-ai/vaultcrypt/internal/hashing"
)

// AppSettings holds the operator-tunable defaults the CLI boundary falls
// back to when a vault file doesn't already pin its own chainhash choices:
// default hash mode, default chainhash modes/iteration counts, and the
// wall-clock budget chainhash_timed spends per call. It is distinct from
// File (linefile.go), which persists the last-used directory in the exact
// `<name> <value>` grammar viper has no matching format for.
type AppSettings struct {
	DefaultHashMode hashing.Mode

	ChainHash1Mode       chainhash.Mode
	ChainHash1Iterations uint64
	ChainHash2Mode       chainhash.Mode
	ChainHash2Iterations uint64

	TimedBudget time.Duration
}

// LoadSettings mirrors orchestrator.LoadConfig's env-vars-with-defaults
// shape, but sources it through viper so every setting is also overridable
// from a config file (`VAULTCRYPT_CONFIG` if set) the way the rest of the
// corpus's viper-backed services do.
func LoadSettings() (*AppSettings, error) {
	v := viper.New()
	v.SetEnvPrefix("VAULTCRYPT")
	v.AutomaticEnv()

	v.SetDefault("default_hash_mode", int(hashing.SHA256))
	v.SetDefault("chainhash1_mode", int(chainhash.Normal))
	v.SetDefault("chainhash1_iterations", chainhash.StandardIterations)
	v.SetDefault("chainhash2_mode", int(chainhash.Normal))
	v.SetDefault("chainhash2_iterations", chainhash.StandardIterations)
	v.SetDefault("timed_budget_ms", 500)

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return &AppSettings{
		DefaultHashMode:      hashing.Mode(v.GetInt("default_hash_mode")),
		ChainHash1Mode:       chainhash.Mode(v.GetInt("chainhash1_mode")),
		ChainHash1Iterations: uint64(v.GetInt64("chainhash1_iterations")),
		ChainHash2Mode:       chainhash.Mode(v.GetInt("chainhash2_mode")),
		ChainHash2Iterations: uint64(v.GetInt64("chainhash2_iterations")),
		TimedBudget:          time.Duration(v.GetInt("timed_budget_ms")) * time.Millisecond,
	}, nil
}
