// Package partition implements the dataset partitioner: it splits labeled
// images per class into train and validation trees, folds unlabeled images
// into the background class, and writes the index and mapping artifacts.
//
// A run builds its output in a staging directory next to the requested
// output path and renames it into place only after every step succeeded.
// A failed run removes the staging directory and leaves no output behind.
package partition

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"

	"github.com/mesh-intelligence/dataprep/internal/dataset"
	"github.com/mesh-intelligence/dataprep/internal/paths"
	"github.com/mesh-intelligence/dataprep/internal/split"
	"github.com/mesh-intelligence/dataprep/internal/sqlite"
	"github.com/mesh-intelligence/dataprep/pkg/types"
)

// Partitioner runs partition jobs against a filesystem.
type Partitioner struct {
	fs       afero.Fs
	out      io.Writer
	progress io.Writer
	logger   zerolog.Logger
	newRunID func() string
	now      func() time.Time
}

// Option configures a Partitioner.
type Option func(*Partitioner)

// WithOutput sets the writer for user-facing diagnostics such as empty
// class notices. Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(p *Partitioner) { p.out = w }
}

// WithProgress enables a copy progress bar written to w.
func WithProgress(w io.Writer) Option {
	return func(p *Partitioner) { p.progress = w }
}

// WithLogger sets the structured logger. Defaults to zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(p *Partitioner) { p.logger = l }
}

// New returns a Partitioner that reads and writes through afs.
func New(afs afero.Fs, opts ...Option) *Partitioner {
	p := &Partitioner{
		fs:       afs,
		out:      io.Discard,
		logger:   zerolog.Nop(),
		newRunID: generateRunID,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// generateRunID returns a UUID v7, falling back to v4.
func generateRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// plan is everything a run needs, gathered before any output is written.
type plan struct {
	src        paths.Source
	categories []types.Category
	splits     []types.ClassSplit
	unlabeled  []string
}

// Run partitions cfg.DataDir into cfg.OutputDir. Configuration errors are
// returned before anything is written; any later failure removes the
// staging directory, along with any parent directories the run created,
// and returns the error. Empty class notices are written only once the
// output is committed.
func (p *Partitioner) Run(cfg types.Config) (*types.Summary, error) {
	cfg.DataDir = cleanDir(cfg.DataDir)
	cfg.OutputDir = cleanDir(cfg.OutputDir)

	pl, err := p.prepare(cfg)
	if err != nil {
		return nil, err
	}

	runID := p.newRunID()
	staging := paths.StagingDir(cfg.OutputDir, runID)
	p.logger.Info().Str("run_id", runID).Str("staging", staging).Int64("seed", cfg.Seed).Msg("staging run")

	created, err := missingDirs(p.fs, filepath.Dir(cfg.OutputDir))
	if err != nil {
		return nil, fmt.Errorf("stat output parent: %w", err)
	}
	if err := p.fs.MkdirAll(staging, 0o755); err != nil {
		p.removeDirs(created)
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	var notices bytes.Buffer
	summary, err := p.build(cfg, pl, runID, paths.NewOutput(staging), &notices)
	if err == nil {
		err = p.commit(staging, cfg.OutputDir)
	}
	if err != nil {
		if rmErr := p.fs.RemoveAll(staging); rmErr != nil {
			p.logger.Error().Err(rmErr).Str("staging", staging).Msg("remove staging directory")
		}
		p.removeDirs(created)
		return nil, err
	}

	if _, err := p.out.Write(notices.Bytes()); err != nil {
		p.logger.Warn().Err(err).Msg("write empty class notices")
	}
	summary.OutputDir = cfg.OutputDir
	p.logger.Info().Str("output", cfg.OutputDir).Int64("bytes", summary.BytesCopied).Msg("run committed")
	return summary, nil
}

// cleanDir cleans a non-empty directory path. An empty path stays empty so
// that Config.Validate can report it.
func cleanDir(dir string) string {
	if dir == "" {
		return ""
	}
	return filepath.Clean(dir)
}

// missingDirs returns dir and each of its ancestors that do not exist yet,
// deepest first.
func missingDirs(afs afero.Fs, dir string) ([]string, error) {
	var missing []string
	for {
		exists, err := afero.Exists(afs, dir)
		if err != nil {
			return nil, err
		}
		if exists {
			return missing, nil
		}
		missing = append(missing, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			return missing, nil
		}
		dir = parent
	}
}

// removeDirs removes dirs in order. Only empty directories are removed.
func (p *Partitioner) removeDirs(dirs []string) {
	for _, dir := range dirs {
		if err := p.fs.Remove(dir); err != nil {
			p.logger.Warn().Err(err).Str("dir", dir).Msg("remove created parent directory")
			return
		}
	}
}

// prepare validates cfg and reads the source tables.
func (p *Partitioner) prepare(cfg types.Config) (*plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	info, err := p.fs.Stat(cfg.DataDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", types.ErrDataDirMissing, cfg.DataDir)
	}

	exists, err := afero.Exists(p.fs, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("stat output directory: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", types.ErrOutputExists, cfg.OutputDir)
	}

	src := paths.NewSource(cfg.DataDir)

	cats, err := dataset.ReadCategories(p.fs, src.Categories)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	labels, err := dataset.ReadLabels(p.fs, src.Labels)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	groups := dataset.GroupByClass(labels)
	if err := dataset.CheckClasses(cats, groups); err != nil {
		return nil, err
	}

	unlabeled, err := listFiles(p.fs, src.UnlabeledDir)
	if err != nil {
		return nil, fmt.Errorf("%w: unlabeled images: %v", types.ErrDataDirMissing, err)
	}

	return &plan{
		src:        src,
		categories: cats,
		splits:     split.Assign(split.NewRand(cfg.Seed), groups, cfg.ValFraction),
		unlabeled:  unlabeled,
	}, nil
}

// build writes the whole output tree under out. Empty class notices go to
// notices.
func (p *Partitioner) build(cfg types.Config, pl *plan, runID string, out paths.Output, notices io.Writer) (*types.Summary, error) {
	for _, c := range pl.categories {
		for _, s := range []string{types.SplitTrain, types.SplitVal} {
			if err := p.fs.MkdirAll(out.ClassDir(s, c.ClassID), 0o755); err != nil {
				return nil, fmt.Errorf("create class directory: %w", err)
			}
		}
	}
	// The background class may be absent from categories.csv.
	if len(pl.unlabeled) > 0 {
		if err := p.fs.MkdirAll(out.ClassDir(types.SplitTrain, types.BackgroundClassID), 0o755); err != nil {
			return nil, fmt.Errorf("create background directory: %w", err)
		}
	}
	for _, dir := range []string{out.TrainDir, out.ValDir} {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create split directory: %w", err)
		}
	}

	summary := &types.Summary{RunID: runID, Seed: cfg.Seed}
	c := p.newCopier(out, pl)

	for _, s := range pl.splits {
		for _, name := range s.Train {
			if err := c.copyImage(types.SplitTrain, s.ClassID, name, pl.src.LabeledDir, &c.train); err != nil {
				return nil, err
			}
		}
		for _, name := range s.Val {
			if err := c.copyImage(types.SplitVal, s.ClassID, name, pl.src.LabeledDir, &c.val); err != nil {
				return nil, err
			}
		}
		summary.Classes = append(summary.Classes, types.ClassCount{ClassID: s.ClassID, Train: len(s.Train), Val: len(s.Val)})
		p.logger.Debug().Str("class", s.ClassID).Int("train", len(s.Train)).Int("val", len(s.Val)).Msg("class copied")
	}

	format := cfg.MappingFormatOrDefault()
	if err := dataset.WriteMapping(p.fs, out.MappingPath(format), format, pl.categories); err != nil {
		return nil, fmt.Errorf("write mapping: %w", err)
	}

	if err := p.fs.MkdirAll(out.IndexesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create indexes directory: %w", err)
	}

	for _, name := range pl.unlabeled {
		if err := c.copyImage(types.SplitTrain, types.BackgroundClassID, name, pl.src.UnlabeledDir, &c.train); err != nil {
			return nil, err
		}
	}
	summary.Unlabeled = len(pl.unlabeled)
	c.finish()

	if err := dataset.WriteIndex(p.fs, out.TrainIndex, c.train.Records()); err != nil {
		return nil, fmt.Errorf("write train index: %w", err)
	}
	summary.TrainIndex = c.train.Len()
	if cfg.WriteValIndex {
		if err := dataset.WriteIndex(p.fs, out.ValIndex, c.val.Records()); err != nil {
			return nil, fmt.Errorf("write val index: %w", err)
		}
		summary.ValIndex = c.val.Len()
	}

	for _, s := range []struct{ dir, label string }{
		{out.TrainDir, "Training"},
		{out.ValDir, "Validation"},
	} {
		pruned, err := p.pruneEmpty(notices, s.dir, s.label)
		if err != nil {
			return nil, fmt.Errorf("prune: %w", err)
		}
		summary.Pruned = append(summary.Pruned, pruned...)
	}

	if cfg.Manifest {
		run := sqlite.Run{
			RunID:       runID,
			Seed:        cfg.Seed,
			ValFraction: cfg.ValFraction,
			DataDir:     cfg.DataDir,
			CreatedAt:   p.now(),
		}
		if err := sqlite.WriteManifest(p.fs, out.Manifest, run, c.entries); err != nil {
			return nil, fmt.Errorf("write manifest: %w", err)
		}
	}

	summary.BytesCopied = c.bytes
	return summary, nil
}

// commit moves the finished staging tree onto the output path.
func (p *Partitioner) commit(staging, output string) error {
	exists, err := afero.Exists(p.fs, output)
	if err != nil {
		return fmt.Errorf("stat output directory: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", types.ErrOutputExists, output)
	}
	if err := p.fs.Rename(staging, output); err != nil {
		return fmt.Errorf("commit output directory: %w", err)
	}
	return nil
}

// copier copies images into the output tree and keeps the running indices,
// manifest entries and byte count.
type copier struct {
	p       *Partitioner
	out     paths.Output
	train   dataset.IndexBuilder
	val     dataset.IndexBuilder
	entries []sqlite.Entry
	bytes   int64
	bar     *progressbar.ProgressBar
}

func (p *Partitioner) newCopier(out paths.Output, pl *plan) *copier {
	c := &copier{p: p, out: out}
	if p.progress == nil {
		return c
	}

	total := len(pl.unlabeled)
	for _, s := range pl.splits {
		total += len(s.Train) + len(s.Val)
	}
	c.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.progress),
		progressbar.OptionSetDescription("Copying"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
	)
	return c
}

// copyImage copies srcDir/name into the class directory of the split and adds
// the image to idx.
func (c *copier) copyImage(splitName, classID, name, srcDir string, idx *dataset.IndexBuilder) error {
	src := filepath.Join(srcDir, name)
	n, err := copyFile(c.p.fs, src, filepath.Join(c.out.ClassDir(splitName, classID), name))
	if err != nil {
		return err
	}
	c.bytes += n

	imageID := types.ImageID(classID, name)
	i := idx.Add(imageID)
	c.entries = append(c.entries, sqlite.Entry{
		Split:     splitName,
		Index:     i,
		ClassID:   classID,
		ImageName: name,
		ImageID:   imageID,
		Source:    src,
		Bytes:     n,
	})

	if c.bar != nil {
		_ = c.bar.Add(1)
	}
	return nil
}

func (c *copier) finish() {
	if c.bar != nil {
		_ = c.bar.Finish()
	}
}
