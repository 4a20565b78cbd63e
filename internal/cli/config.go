package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/dataprep/internal/paths"
	"github.com/mesh-intelligence/dataprep/pkg/types"
)

// Config keys. Flags, config file entries and DATAPREP_* environment
// variables share these names.
const (
	keyDataDir       = "data_dir"
	keyOutputDir     = "output_dir"
	keyValPerc       = "val_perc"
	keySeed          = "seed"
	keyValIndex      = "val_index"
	keyMappingFormat = "mapping_format"
	keyManifest      = "manifest"
	keyProgress      = "progress"
	keyLogLevel      = "log_level"

	envPrefix       = "DATAPREP"
	configFileType  = "yaml"
	defaultLogLevel = "info"
)

// loadConfig merges, from lowest to highest precedence: defaults, the
// config file, DATAPREP_* environment variables and command-line flags.
// A missing default config file is not an error; a missing explicit one is.
func loadConfig(flags *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(keyValPerc, types.DefaultValFraction)
	v.SetDefault(keyMappingFormat, types.DefaultMappingFormat)
	v.SetDefault(keyLogLevel, defaultLogLevel)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
		return v, nil
	}

	configDir, err := paths.ResolveConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	v.SetConfigName(paths.ConfigFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// buildConfig turns merged settings into a run Config with absolute paths.
// When no seed was given, one is derived from the clock and logged by the
// caller so the run can be repeated.
func buildConfig(v *viper.Viper) (types.Config, error) {
	dataDir, err := paths.Resolve(v.GetString(keyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	outputDir, err := paths.Resolve(v.GetString(keyOutputDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve output dir: %w", err)
	}

	seed := time.Now().UnixNano()
	if v.IsSet(keySeed) {
		seed = v.GetInt64(keySeed)
	}

	cfg := types.Config{
		DataDir:       dataDir,
		OutputDir:     outputDir,
		ValFraction:   v.GetFloat64(keyValPerc),
		Seed:          seed,
		WriteValIndex: v.GetBool(keyValIndex),
		MappingFormat: v.GetString(keyMappingFormat),
		Manifest:      v.GetBool(keyManifest),
		Progress:      v.GetBool(keyProgress),
	}
	return cfg, cfg.Validate()
}
