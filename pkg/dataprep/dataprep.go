// Package dataprep provides the public API for partitioning a dataset on
// the local filesystem. It wraps the internal partitioner so that other
// tools can run a partition without going through the CLI.
//
// Example:
//
//	summary, err := dataprep.Partition(types.Config{
//	    DataDir:     "raw",
//	    OutputDir:   "prepared",
//	    ValFraction: 0.1,
//	    Seed:        7,
//	}, os.Stdout)
package dataprep

import (
	"io"

	"github.com/spf13/afero"

	"github.com/mesh-intelligence/dataprep/internal/partition"
	"github.com/mesh-intelligence/dataprep/pkg/types"
)

// Partition runs one partition job on the host filesystem. Empty-class
// diagnostics are written to stdout, which may be nil to discard them.
func Partition(cfg types.Config, stdout io.Writer) (*types.Summary, error) {
	var opts []partition.Option
	if stdout != nil {
		opts = append(opts, partition.WithOutput(stdout))
	}
	return partition.New(afero.NewOsFs(), opts...).Run(cfg)
}
