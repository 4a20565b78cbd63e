package partition

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// sourceLayout describes a source dataset to lay out for a test.
type sourceLayout struct {
	categories [][2]string     // class_id, class_name
	labeled    map[string]int  // class_id -> number of images
	order      []string        // class ids in label-row order
	unlabeled  []string        // unlabeled file names
	skipFiles  map[string]bool // labeled image names listed but not created
}

// imageName returns the deterministic name of the i-th image of a class.
func imageName(classID string, i int) string {
	return fmt.Sprintf("c%s_%03d.jpg", classID, i)
}

// writeSource lays out a dataset under root and returns root.
func writeSource(t *testing.T, fs afero.Fs, root string, layout sourceLayout) string {
	t.Helper()

	labeledDir := filepath.Join(root, "train", "labeled")
	unlabeledDir := filepath.Join(root, "train", "unlabeled")
	require.NoError(t, fs.MkdirAll(labeledDir, 0o755))
	require.NoError(t, fs.MkdirAll(unlabeledDir, 0o755))

	var cats strings.Builder
	cats.WriteString("class_id,class_name\n")
	for _, c := range layout.categories {
		fmt.Fprintf(&cats, "%s,%s\n", c[0], c[1])
	}
	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, "categories.csv"), []byte(cats.String()), 0o644))

	var labels strings.Builder
	labels.WriteString("image_name,class_id\n")
	for _, id := range layout.order {
		for i := 0; i < layout.labeled[id]; i++ {
			name := imageName(id, i)
			fmt.Fprintf(&labels, "%s,%s\n", name, id)
			if layout.skipFiles[name] {
				continue
			}
			require.NoError(t, afero.WriteFile(fs, filepath.Join(labeledDir, name), []byte("pixels of "+name), 0o644))
		}
	}
	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, "train_labeled.csv"), []byte(labels.String()), 0o644))

	for _, name := range layout.unlabeled {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(unlabeledDir, name), []byte("unlabeled "+name), 0o644))
	}
	return root
}

// catsAndDogs is the two-class dataset: 10 cats, 5 dogs, 3 unlabeled.
func catsAndDogs() sourceLayout {
	return sourceLayout{
		categories: [][2]string{{"1", "cat"}, {"2", "dog"}},
		labeled:    map[string]int{"1": 10, "2": 5},
		order:      []string{"1", "2"},
		unlabeled:  []string{"u_a.jpg", "u_b.jpg", "u_c.jpg"},
	}
}

// countFiles returns the number of regular files directly under dir, or -1
// if dir does not exist.
func countFiles(t *testing.T, fs afero.Fs, dir string) int {
	t.Helper()
	ok, err := afero.DirExists(fs, dir)
	require.NoError(t, err)
	if !ok {
		return -1
	}
	infos, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	n := 0
	for _, info := range infos {
		if !info.IsDir() {
			n++
		}
	}
	return n
}

// dirNames lists the entry names of dir.
func dirNames(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	infos, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names
}
