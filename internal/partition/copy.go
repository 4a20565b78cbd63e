package partition

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"

	"github.com/mesh-intelligence/dataprep/pkg/types"
)

// copyFile copies src to dst byte for byte, keeping the source permission
// bits, and returns the number of bytes written. A missing source is
// reported as types.ErrSourceMissing.
func copyFile(afs afero.Fs, src, dst string) (int64, error) {
	in, err := afs.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", types.ErrSourceMissing, src)
		}
		return 0, fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", src, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("copy %s: is a directory", src)
	}

	out, err := afs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("closing %s: %w", dst, err)
	}
	return n, nil
}

// listFiles returns the names of the regular files in dir, sorted by name.
// Subdirectories are skipped.
func listFiles(afs afero.Fs, dir string) ([]string, error) {
	infos, err := afero.ReadDir(afs, dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		names = append(names, info.Name())
	}
	return names, nil
}
