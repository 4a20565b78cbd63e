package dataset

import (
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/spf13/afero"

	"github.com/mesh-intelligence/dataprep/pkg/types"
)

// IndexHeader is the header row of every index file.
var IndexHeader = []string{"Index", "ImageID"}

// IndexBuilder assigns dense sequential indices, starting at 0, to image ids
// in the order they are added.
type IndexBuilder struct {
	records []types.IndexRecord
}

// Add appends imageID with the next index and returns that index.
func (b *IndexBuilder) Add(imageID string) int {
	idx := len(b.records)
	b.records = append(b.records, types.IndexRecord{Index: idx, ImageID: imageID})
	return idx
}

// Len returns the number of records added so far.
func (b *IndexBuilder) Len() int { return len(b.records) }

// Records returns the records added so far.
func (b *IndexBuilder) Records() []types.IndexRecord { return b.records }

// WriteIndex writes records to path with the Index,ImageID header.
func WriteIndex(fs afero.Fs, path string, records []types.IndexRecord) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(IndexHeader); err != nil {
		f.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write([]string{strconv.Itoa(rec.Index), rec.ImageID}); err != nil {
			f.Close()
			return fmt.Errorf("writing record %d: %w", rec.Index, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}

// ReadIndex reads an index file written by WriteIndex.
func ReadIndex(fs afero.Fs, path string) ([]types.IndexRecord, error) {
	rows, err := readRows(fs, path)
	if err != nil {
		return nil, err
	}

	records := make([]types.IndexRecord, 0, len(rows))
	for _, r := range rows {
		idx, err := strconv.Atoi(r.a)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w: index %q", path, r.line, types.ErrMalformedRow, r.a)
		}
		records = append(records, types.IndexRecord{Index: idx, ImageID: r.b})
	}
	return records, nil
}
