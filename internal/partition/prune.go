package partition

import (
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// pruneEmpty removes every empty class directory under splitDir, writing a
// notice for each one to w. It returns the removed class directories in name
// order.
func (p *Partitioner) pruneEmpty(w io.Writer, splitDir, label string) ([]string, error) {
	infos, err := afero.ReadDir(p.fs, splitDir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", splitDir, err)
	}

	var pruned []string
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		dir := filepath.Join(splitDir, info.Name())
		empty, err := afero.IsEmpty(p.fs, dir)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", dir, err)
		}
		if !empty {
			continue
		}
		fmt.Fprintf(w, "%s %s is empty.\n", label, info.Name())
		if err := p.fs.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("removing %s: %w", dir, err)
		}
		pruned = append(pruned, path.Join(filepath.Base(splitDir), info.Name()))
	}
	return pruned, nil
}
