// Package paths resolves the fixed source and output layouts of a partition
// run and the location of the optional config file.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// Source layout, relative to the data directory.
const (
	CategoriesFile   = "categories.csv"
	LabelsFile       = "train_labeled.csv"
	TrainDirName     = "train"
	LabeledDirName   = "labeled"
	UnlabeledDirName = "unlabeled"
)

// Output layout, relative to the output directory.
const (
	IndexesDirName  = "indexes"
	TrainIndexFile  = "train_index_file.csv"
	ValIndexFile    = "val_index_file.csv"
	ManifestFile    = "manifest.db"
	MappingBaseName = "mapping_dict"
)

// Config file lookup.
const (
	AppName        = "dataprep"
	ConfigFileName = "config"
	EnvConfigDir   = "DATAPREP_CONFIG_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// Source describes the input dataset under a data directory.
type Source struct {
	Root         string
	Categories   string
	Labels       string
	LabeledDir   string
	UnlabeledDir string
}

// NewSource returns the source layout rooted at dataDir.
func NewSource(dataDir string) Source {
	return Source{
		Root:         dataDir,
		Categories:   filepath.Join(dataDir, CategoriesFile),
		Labels:       filepath.Join(dataDir, LabelsFile),
		LabeledDir:   filepath.Join(dataDir, TrainDirName, LabeledDirName),
		UnlabeledDir: filepath.Join(dataDir, TrainDirName, UnlabeledDirName),
	}
}

// Output describes the tree a run produces under root. The partitioner
// builds it under a staging root first, so root is not always the final
// output directory.
type Output struct {
	Root       string
	TrainDir   string
	ValDir     string
	IndexesDir string
	TrainIndex string
	ValIndex   string
	Manifest   string
}

// NewOutput returns the output layout rooted at root.
func NewOutput(root string) Output {
	indexes := filepath.Join(root, IndexesDirName)
	return Output{
		Root:       root,
		TrainDir:   filepath.Join(root, "train"),
		ValDir:     filepath.Join(root, "val"),
		IndexesDir: indexes,
		TrainIndex: filepath.Join(indexes, TrainIndexFile),
		ValIndex:   filepath.Join(indexes, ValIndexFile),
		Manifest:   filepath.Join(indexes, ManifestFile),
	}
}

// SplitDir returns the directory of the named split ("train" or "val").
func (o Output) SplitDir(split string) string {
	return filepath.Join(o.Root, split)
}

// ClassDir returns the directory of one class within a split.
func (o Output) ClassDir(split, classID string) string {
	return filepath.Join(o.Root, split, classID)
}

// MappingPath returns the mapping artifact path for the given format
// extension ("json" or "yaml").
func (o Output) MappingPath(format string) string {
	return filepath.Join(o.Root, MappingBaseName+"."+format)
}

// StagingDir returns the sibling directory a run writes into before it is
// renamed onto outputDir. Keeping it next to the output keeps the final
// rename on one filesystem.
func StagingDir(outputDir, runID string) string {
	outputDir = filepath.Clean(outputDir)
	parent := filepath.Dir(outputDir)
	return filepath.Join(parent, "."+filepath.Base(outputDir)+".staging-"+runID)
}

// Resolve returns dir as an absolute, cleaned path. An empty dir stays empty
// so that Config.Validate can report it.
func Resolve(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	return filepath.Abs(dir)
}

// DefaultConfigDir returns the platform-specific configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/dataprep (fallback ~/.config/dataprep)
// macOS:   ~/Library/Application Support/dataprep
// Windows: %APPDATA%/dataprep
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
}

// ResolveConfigDir returns the directory searched for config.yaml:
// DATAPREP_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir() (string, error) {
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}
