// Package cli implements the dataprep command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mesh-intelligence/dataprep/internal/partition"
	"github.com/mesh-intelligence/dataprep/pkg/dataprep"
	"github.com/mesh-intelligence/dataprep/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// userError marks failures caused by how the command was invoked, such as
// bad flags or an unreadable config file.
type userError struct {
	err error
}

func (e userError) Error() string { return e.err.Error() }
func (e userError) Unwrap() error { return e.err }

// NewRootCmd creates the dataprep command. stderr receives logs and the
// progress bar; stdout receives diagnostics and the completion message
// through cmd.OutOrStdout.
func NewRootCmd(stderr io.Writer) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "dataprep --data_dir DIR --output_dir DIR [--val_perc F]",
		Short: "Partition an image dataset into train and validation trees",
		Long: `dataprep splits the labeled images of DIR into per-class train and
validation directories, folds the unlabeled images into class 0, and writes
index files mapping sequential indices to relative image paths.

The output directory must not exist. The run is built in a staging directory
next to it and moved into place only when every step succeeded.`,
		Version: dataprep.Version,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return userError{err}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartition(cmd, configFile, stderr)
		},
	}

	f := root.Flags()
	f.SetNormalizeFunc(underscoreNames)
	f.String(keyDataDir, "", "path to the data directory (required)")
	f.String(keyOutputDir, "", "path to the output directory, must not exist (required)")
	f.Float64(keyValPerc, types.DefaultValFraction, "fraction of each class used for validation")
	f.Int64(keySeed, 0, "shuffle seed (default: derived from the current time)")
	f.Bool(keyValIndex, false, "also write indexes/val_index_file.csv")
	f.String(keyMappingFormat, types.DefaultMappingFormat, "class mapping format: json or yaml")
	f.Bool(keyManifest, false, "write indexes/manifest.db listing every copied image")
	f.Bool(keyProgress, false, "show a copy progress bar on stderr")
	f.String(keyLogLevel, defaultLogLevel, "log level: debug, info, warn, error")
	f.StringVar(&configFile, "config", "", "config file (default: $DATAPREP_CONFIG_DIR/config.yaml or the user config dir)")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return userError{err}
	})

	return root
}

// underscoreNames lets --data-dir and --data_dir name the same flag.
func underscoreNames(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "-", "_"))
}

func runPartition(cmd *cobra.Command, configFile string, stderr io.Writer) error {
	v, err := loadConfig(cmd.Flags(), configFile)
	if err != nil {
		return userError{err}
	}

	logger, err := newLogger(stderr, v.GetString(keyLogLevel))
	if err != nil {
		return userError{err}
	}

	cfg, err := buildConfig(v)
	if err != nil {
		return userError{err}
	}
	logger.Info().
		Str("data_dir", cfg.DataDir).
		Str("output_dir", cfg.OutputDir).
		Float64("val_perc", cfg.ValFraction).
		Int64("seed", cfg.Seed).
		Msg("partitioning dataset")

	opts := []partition.Option{
		partition.WithOutput(cmd.OutOrStdout()),
		partition.WithLogger(logger),
	}
	if cfg.Progress {
		opts = append(opts, partition.WithProgress(stderr))
	}

	summary, err := partition.New(afero.NewOsFs(), opts...).Run(cfg)
	if err != nil {
		return err
	}

	logger.Info().
		Int("train_rows", summary.TrainIndex).
		Int("unlabeled", summary.Unlabeled).
		Int("pruned", len(summary.Pruned)).
		Str("copied", humanize.Bytes(uint64(summary.BytesCopied))).
		Msg("partition complete")
	fmt.Fprintln(cmd.OutOrStdout(), "Done")
	return nil
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ue userError
	if errors.As(err, &ue) || types.IsConfigError(err) {
		return exitUserError
	}
	return exitSysError
}

// Run executes the command with args and returns the exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd(stderr)
	root.SetArgs(rewriteLegacyArgs(args))
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return exitCode(err)
}

// Execute runs the command with the process arguments and exits.
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}
