package partition

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/dataprep/internal/dataset"
	"github.com/mesh-intelligence/dataprep/internal/sqlite"
	"github.com/mesh-intelligence/dataprep/pkg/types"
)

// runEnv is an on-disk workspace with a source dataset and an output path
// that does not exist yet.
type runEnv struct {
	fs      afero.Fs
	root    string
	dataDir string
	outDir  string
	stdout  bytes.Buffer
}

func newRunEnv(t *testing.T, layout sourceLayout) *runEnv {
	t.Helper()
	root := t.TempDir()
	env := &runEnv{
		fs:      afero.NewOsFs(),
		root:    root,
		dataDir: filepath.Join(root, "data"),
		outDir:  filepath.Join(root, "out"),
	}
	writeSource(t, env.fs, env.dataDir, layout)
	return env
}

func (e *runEnv) config(fraction float64) types.Config {
	return types.Config{
		DataDir:     e.dataDir,
		OutputDir:   e.outDir,
		ValFraction: fraction,
		Seed:        42,
	}
}

func (e *runEnv) run(cfg types.Config) (*types.Summary, error) {
	return New(e.fs, WithOutput(&e.stdout)).Run(cfg)
}

func TestRun_CatsAndDogs(t *testing.T) {
	env := newRunEnv(t, catsAndDogs())

	summary, err := env.run(env.config(0.2))
	require.NoError(t, err)

	assert.Equal(t, 8, countFiles(t, env.fs, filepath.Join(env.outDir, "train", "1")))
	assert.Equal(t, 2, countFiles(t, env.fs, filepath.Join(env.outDir, "val", "1")))
	assert.Equal(t, 4, countFiles(t, env.fs, filepath.Join(env.outDir, "train", "2")))
	assert.Equal(t, 1, countFiles(t, env.fs, filepath.Join(env.outDir, "val", "2")))
	assert.Equal(t, 3, countFiles(t, env.fs, filepath.Join(env.outDir, "train", "0")))

	assert.Equal(t, []types.ClassCount{
		{ClassID: "1", Train: 8, Val: 2},
		{ClassID: "2", Train: 4, Val: 1},
	}, summary.Classes)
	assert.Equal(t, 3, summary.Unlabeled)
	assert.Equal(t, 15, summary.TrainIndex)
	assert.Equal(t, env.outDir, summary.OutputDir)
	assert.NotEmpty(t, summary.RunID)
	assert.Positive(t, summary.BytesCopied)

	records, err := dataset.ReadIndex(env.fs, filepath.Join(env.outDir, "indexes", "train_index_file.csv"))
	require.NoError(t, err)
	require.Len(t, records, 15)
	for i, rec := range records {
		assert.Equal(t, i, rec.Index, "indices must be dense from 0")
		_, err := env.fs.Stat(filepath.Join(env.outDir, "train", filepath.FromSlash(rec.ImageID)))
		assert.NoError(t, err, "indexed image %s must exist", rec.ImageID)
	}

	// Labeled rows come first in class order, unlabeled rows last in name order.
	for _, rec := range records[:8] {
		assert.True(t, strings.HasPrefix(rec.ImageID, "1/"), rec.ImageID)
	}
	for _, rec := range records[8:12] {
		assert.True(t, strings.HasPrefix(rec.ImageID, "2/"), rec.ImageID)
	}
	assert.Equal(t, []string{"0/u_a.jpg", "0/u_b.jpg", "0/u_c.jpg"},
		[]string{records[12].ImageID, records[13].ImageID, records[14].ImageID})

	mapping, err := dataset.ReadMapping(env.fs, filepath.Join(env.outDir, "mapping_dict.json"), types.MappingFormatJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "cat", "2": "dog"}, mapping)

	exists, err := afero.Exists(env.fs, filepath.Join(env.outDir, "indexes", "val_index_file.csv"))
	require.NoError(t, err)
	assert.False(t, exists, "val index is only written on request")

	assert.Equal(t, []string{"data", "out"}, dirNames(t, env.fs, env.root), "staging directory must be gone")
	assert.Empty(t, env.stdout.String())
}

func TestRun_CopiesBytesUnchanged(t *testing.T) {
	env := newRunEnv(t, catsAndDogs())

	_, err := env.run(env.config(0))
	require.NoError(t, err)

	name := imageName("1", 3)
	got, err := afero.ReadFile(env.fs, filepath.Join(env.outDir, "train", "1", name))
	require.NoError(t, err)
	assert.Equal(t, "pixels of "+name, string(got))
}

func TestRun_ZeroFractionPrunesValidation(t *testing.T) {
	env := newRunEnv(t, catsAndDogs())

	summary, err := env.run(env.config(0))
	require.NoError(t, err)

	assert.Equal(t, -1, countFiles(t, env.fs, filepath.Join(env.outDir, "val", "1")))
	assert.Equal(t, -1, countFiles(t, env.fs, filepath.Join(env.outDir, "val", "2")))
	assert.Equal(t, 10, countFiles(t, env.fs, filepath.Join(env.outDir, "train", "1")))
	assert.Equal(t, "Validation 1 is empty.\nValidation 2 is empty.\n", env.stdout.String())
	assert.Equal(t, []string{"val/1", "val/2"}, summary.Pruned)
	assert.Equal(t, 18, summary.TrainIndex)
}

func TestRun_FullFractionPrunesTrainExceptBackground(t *testing.T) {
	env := newRunEnv(t, catsAndDogs())

	summary, err := env.run(env.config(1))
	require.NoError(t, err)

	assert.Equal(t, -1, countFiles(t, env.fs, filepath.Join(env.outDir, "train", "1")))
	assert.Equal(t, -1, countFiles(t, env.fs, filepath.Join(env.outDir, "train", "2")))
	assert.Equal(t, 3, countFiles(t, env.fs, filepath.Join(env.outDir, "train", "0")))
	assert.Equal(t, 10, countFiles(t, env.fs, filepath.Join(env.outDir, "val", "1")))
	assert.Equal(t, 5, countFiles(t, env.fs, filepath.Join(env.outDir, "val", "2")))
	assert.Equal(t, "Training 1 is empty.\nTraining 2 is empty.\n", env.stdout.String())
	assert.Equal(t, 3, summary.TrainIndex)
}

func TestRun_CategoryWithoutImagesIsPruned(t *testing.T) {
	layout := catsAndDogs()
	layout.categories = append(layout.categories, [2]string{"3", "bird"})
	layout.unlabeled = nil
	env := newRunEnv(t, layout)

	_, err := env.run(env.config(0.2))
	require.NoError(t, err)

	assert.Equal(t, "Training 3 is empty.\nValidation 3 is empty.\n", env.stdout.String())
	assert.Equal(t, []string{"1", "2"}, dirNames(t, env.fs, filepath.Join(env.outDir, "train")))
	assert.Equal(t, []string{"1", "2"}, dirNames(t, env.fs, filepath.Join(env.outDir, "val")))
}

func TestRun_BackgroundCategoryListed(t *testing.T) {
	layout := catsAndDogs()
	layout.categories = append([][2]string{{"0", "background"}}, layout.categories...)
	env := newRunEnv(t, layout)

	_, err := env.run(env.config(0.2))
	require.NoError(t, err)

	assert.Equal(t, 3, countFiles(t, env.fs, filepath.Join(env.outDir, "train", "0")))
	assert.Equal(t, "Validation 0 is empty.\n", env.stdout.String())
}

func TestRun_SameSeedSameIndex(t *testing.T) {
	first := newRunEnv(t, catsAndDogs())
	second := newRunEnv(t, catsAndDogs())

	_, err := first.run(first.config(0.3))
	require.NoError(t, err)
	_, err = second.run(second.config(0.3))
	require.NoError(t, err)

	a, err := afero.ReadFile(first.fs, filepath.Join(first.outDir, "indexes", "train_index_file.csv"))
	require.NoError(t, err)
	b, err := afero.ReadFile(second.fs, filepath.Join(second.outDir, "indexes", "train_index_file.csv"))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ValIndex(t *testing.T) {
	env := newRunEnv(t, catsAndDogs())
	cfg := env.config(0.2)
	cfg.WriteValIndex = true

	summary, err := env.run(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ValIndex)

	records, err := dataset.ReadIndex(env.fs, filepath.Join(env.outDir, "indexes", "val_index_file.csv"))
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, i, rec.Index)
		_, err := env.fs.Stat(filepath.Join(env.outDir, "val", filepath.FromSlash(rec.ImageID)))
		assert.NoError(t, err)
	}
}

func TestRun_YAMLMappingAndManifest(t *testing.T) {
	env := newRunEnv(t, catsAndDogs())
	cfg := env.config(0.2)
	cfg.MappingFormat = types.MappingFormatYAML
	cfg.Manifest = true

	summary, err := env.run(cfg)
	require.NoError(t, err)

	mapping, err := dataset.ReadMapping(env.fs, filepath.Join(env.outDir, "mapping_dict.yaml"), types.MappingFormatYAML)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "cat", "2": "dog"}, mapping)

	run, entries, err := sqlite.ReadManifest(env.fs, filepath.Join(env.outDir, "indexes", "manifest.db"))
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, run.RunID)
	assert.Equal(t, int64(42), run.Seed)
	assert.Len(t, entries, 18)

	var train, val int
	for _, e := range entries {
		switch e.Split {
		case types.SplitTrain:
			train++
		case types.SplitVal:
			val++
		}
	}
	assert.Equal(t, 15, train)
	assert.Equal(t, 3, val)
}

func TestRun_Progress(t *testing.T) {
	env := newRunEnv(t, catsAndDogs())
	var bar bytes.Buffer

	_, err := New(env.fs, WithProgress(&bar)).Run(env.config(0.2))
	require.NoError(t, err)
	assert.NotEmpty(t, bar.String())
}

func TestRun_ConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *runEnv, cfg *types.Config)
		wantErr error
	}{
		{
			name: "missing data directory",
			mutate: func(e *runEnv, cfg *types.Config) {
				cfg.DataDir = filepath.Join(e.root, "nope")
			},
			wantErr: types.ErrDataDirMissing,
		},
		{
			name: "invalid fraction",
			mutate: func(e *runEnv, cfg *types.Config) {
				cfg.ValFraction = 2
			},
			wantErr: types.ErrValFractionRange,
		},
		{
			name: "label with unknown class",
			mutate: func(e *runEnv, cfg *types.Config) {
				path := filepath.Join(e.dataDir, "train_labeled.csv")
				data, _ := afero.ReadFile(e.fs, path)
				_ = afero.WriteFile(e.fs, path, append(data, []byte("ghost.jpg,9\n")...), 0o644)
			},
			wantErr: types.ErrUnknownClass,
		},
		{
			name: "malformed categories",
			mutate: func(e *runEnv, cfg *types.Config) {
				_ = afero.WriteFile(e.fs, filepath.Join(e.dataDir, "categories.csv"), []byte("id,name\n1;cat\n"), 0o644)
			},
			wantErr: types.ErrMalformedRow,
		},
		{
			name: "missing unlabeled directory",
			mutate: func(e *runEnv, cfg *types.Config) {
				_ = e.fs.RemoveAll(filepath.Join(e.dataDir, "train", "unlabeled"))
			},
			wantErr: types.ErrDataDirMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newRunEnv(t, catsAndDogs())
			cfg := env.config(0.2)
			tt.mutate(env, &cfg)

			_, err := env.run(cfg)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, types.IsConfigError(err))
			assert.Equal(t, []string{"data"}, dirNames(t, env.fs, env.root), "nothing may be written")
		})
	}
}

func TestRun_OutputExists(t *testing.T) {
	env := newRunEnv(t, catsAndDogs())
	require.NoError(t, env.fs.MkdirAll(env.outDir, 0o755))
	require.NoError(t, afero.WriteFile(env.fs, filepath.Join(env.outDir, "keep.txt"), []byte("mine"), 0o644))

	_, err := env.run(env.config(0.2))
	require.ErrorIs(t, err, types.ErrOutputExists)

	assert.Equal(t, []string{"keep.txt"}, dirNames(t, env.fs, env.outDir))
	assert.Equal(t, []string{"data", "out"}, dirNames(t, env.fs, env.root))
}

func TestRun_RerunFails(t *testing.T) {
	env := newRunEnv(t, catsAndDogs())

	_, err := env.run(env.config(0.2))
	require.NoError(t, err)

	_, err = env.run(env.config(0.2))
	require.ErrorIs(t, err, types.ErrOutputExists)
}

func TestRun_MissingSourceImageLeavesNoOutput(t *testing.T) {
	layout := catsAndDogs()
	layout.skipFiles = map[string]bool{imageName("2", 4): true}
	env := newRunEnv(t, layout)

	_, err := env.run(env.config(0.2))
	require.ErrorIs(t, err, types.ErrSourceMissing)
	assert.False(t, types.IsConfigError(err))

	assert.Equal(t, []string{"data"}, dirNames(t, env.fs, env.root), "output and staging must be removed")
}

func TestRun_MemMapFsFailureCleansStaging(t *testing.T) {
	fs := afero.NewMemMapFs()
	layout := catsAndDogs()
	layout.skipFiles = map[string]bool{imageName("1", 0): true}
	writeSource(t, fs, "/work/data", layout)

	p := New(fs)
	p.newRunID = func() string { return "fixed" }

	_, err := p.Run(types.Config{DataDir: "/work/data", OutputDir: "/work/out", ValFraction: 0.5})
	require.ErrorIs(t, err, types.ErrSourceMissing)

	exists, err := afero.DirExists(fs, "/work/.out.staging-fixed")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = afero.DirExists(fs, "/work/out")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRun_TrailingSeparatorOnOutput(t *testing.T) {
	env := newRunEnv(t, catsAndDogs())
	cfg := env.config(0.2)
	cfg.OutputDir += string(filepath.Separator)

	summary, err := env.run(cfg)
	require.NoError(t, err)
	assert.Equal(t, env.outDir, summary.OutputDir)

	assert.Equal(t, []string{"data", "out"}, dirNames(t, env.fs, env.root))
	assert.Equal(t, 8, countFiles(t, env.fs, filepath.Join(env.outDir, "train", "1")))
	assert.Equal(t, []string{"indexes", "mapping_dict.json", "train", "val"}, dirNames(t, env.fs, env.outDir))
}

func TestRun_CreatesMissingOutputParents(t *testing.T) {
	env := newRunEnv(t, catsAndDogs())
	cfg := env.config(0.2)
	cfg.OutputDir = filepath.Join(env.root, "runs", "today", "out")

	_, err := env.run(cfg)
	require.NoError(t, err)
	assert.Equal(t, 8, countFiles(t, env.fs, filepath.Join(cfg.OutputDir, "train", "1")))
}

func TestRun_FailureRemovesCreatedOutputParents(t *testing.T) {
	layout := catsAndDogs()
	layout.skipFiles = map[string]bool{imageName("1", 3): true}
	env := newRunEnv(t, layout)
	cfg := env.config(0.2)
	cfg.OutputDir = filepath.Join(env.root, "runs", "today", "out")

	_, err := env.run(cfg)
	require.ErrorIs(t, err, types.ErrSourceMissing)
	assert.Equal(t, []string{"data"}, dirNames(t, env.fs, env.root))
}

// renameFailFs fails every Rename, so a run can only fail at commit.
type renameFailFs struct {
	afero.Fs
}

func (renameFailFs) Rename(string, string) error {
	return errors.New("rename refused")
}

func TestRun_CommitFailurePrintsNoNotices(t *testing.T) {
	mem := afero.NewMemMapFs()
	writeSource(t, mem, "/work/data", catsAndDogs())

	var out bytes.Buffer
	p := New(renameFailFs{mem}, WithOutput(&out))
	p.newRunID = func() string { return "fixed" }

	// Fraction 0 leaves every val class empty, so pruning has notices to report.
	_, err := p.Run(types.Config{DataDir: "/work/data", OutputDir: "/work/out", ValFraction: 0})
	require.Error(t, err)
	assert.Empty(t, out.String())

	exists, err := afero.DirExists(mem, "/work/.out.staging-fixed")
	require.NoError(t, err)
	assert.False(t, exists)
}
