// Package dataset reads the category and label tables of a source dataset
// and writes the index and mapping artifacts of a partition run.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/mesh-intelligence/dataprep/pkg/types"
)

// readRows reads a two-column CSV file, skipping the header row. Fields are
// trimmed of surrounding whitespace and blank lines are ignored. A bare quote
// inside an unquoted field is kept literally. The first field must not be
// empty; the second may be. Each row is returned together with its 1-based
// line number.
func readRows(fs afero.Fs, path string) ([]row, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var rows []row
	header := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", path, types.ErrMalformedRow, err)
		}
		line, _ := r.FieldPos(0)
		if header {
			header = false
			continue
		}
		if len(rec) != 2 {
			return nil, fmt.Errorf("%s line %d: %w: want 2 fields, got %d", path, line, types.ErrMalformedRow, len(rec))
		}
		a, b := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if a == "" {
			return nil, fmt.Errorf("%s line %d: %w: empty first field", path, line, types.ErrMalformedRow)
		}
		rows = append(rows, row{line: line, a: a, b: b})
	}
	return rows, nil
}

type row struct {
	line int
	a, b string
}

// ReadCategories reads categories.csv (class_id,class_name) in file order.
// A class id listed twice is a malformed row.
func ReadCategories(fs afero.Fs, path string) ([]types.Category, error) {
	rows, err := readRows(fs, path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(rows))
	cats := make([]types.Category, 0, len(rows))
	for _, r := range rows {
		if seen[r.a] {
			return nil, fmt.Errorf("%s line %d: %w: duplicate class id %q", path, r.line, types.ErrMalformedRow, r.a)
		}
		seen[r.a] = true
		cats = append(cats, types.Category{ClassID: r.a, ClassName: r.b})
	}
	return cats, nil
}

// ReadLabels reads train_labeled.csv (image_name,class_id) in file order. A
// row with an empty class id is kept; CheckClasses rejects it.
func ReadLabels(fs afero.Fs, path string) ([]types.Label, error) {
	rows, err := readRows(fs, path)
	if err != nil {
		return nil, err
	}

	labels := make([]types.Label, 0, len(rows))
	for _, r := range rows {
		labels = append(labels, types.Label{ImageName: r.a, ClassID: r.b})
	}
	return labels, nil
}

// GroupByClass groups labels by class id. Classes appear in the order their
// first image was encountered; images keep their row order.
func GroupByClass(labels []types.Label) []types.ClassImages {
	pos := make(map[string]int)
	var groups []types.ClassImages
	for _, l := range labels {
		i, ok := pos[l.ClassID]
		if !ok {
			i = len(groups)
			pos[l.ClassID] = i
			groups = append(groups, types.ClassImages{ClassID: l.ClassID})
		}
		groups[i].Images = append(groups[i].Images, l.ImageName)
	}
	return groups
}

// CheckClasses returns ErrUnknownClass if any group names a class that is
// not in cats.
func CheckClasses(cats []types.Category, groups []types.ClassImages) error {
	known := make(map[string]bool, len(cats))
	for _, c := range cats {
		known[c.ClassID] = true
	}
	for _, g := range groups {
		if !known[g.ClassID] {
			return fmt.Errorf("%w: %q (%d images)", types.ErrUnknownClass, g.ClassID, len(g.Images))
		}
	}
	return nil
}
