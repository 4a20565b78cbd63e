package types

import (
	"errors"
	"path"
)

// BackgroundClassID is the synthetic class that every unlabeled image is
// folded into. Unlabeled images only ever land in the train split.
const BackgroundClassID = "0"

// Split names, also used as output subdirectory names.
const (
	SplitTrain = "train"
	SplitVal   = "val"
)

// Category is one row of categories.csv.
type Category struct {
	ClassID   string
	ClassName string
}

// Label is one row of train_labeled.csv.
type Label struct {
	ImageName string
	ClassID   string
}

// ClassImages holds the images of one class in the order they were read.
type ClassImages struct {
	ClassID string
	Images  []string
}

// ClassSplit is the train/validation assignment for one class.
type ClassSplit struct {
	ClassID string
	Train   []string
	Val     []string
}

// IndexRecord is one row of an index file.
type IndexRecord struct {
	Index   int
	ImageID string
}

// ImageID returns the index-file path of an image: class_id/image_name,
// always slash-separated.
func ImageID(classID, imageName string) string {
	return path.Join(classID, imageName)
}

// ClassCount records how many images of a class went to each split.
type ClassCount struct {
	ClassID string `json:"class_id"`
	Train   int    `json:"train"`
	Val     int    `json:"val"`
}

// Summary describes a completed run.
type Summary struct {
	RunID       string       `json:"run_id"`
	Seed        int64        `json:"seed"`
	OutputDir   string       `json:"output_dir"`
	Classes     []ClassCount `json:"classes"`
	Unlabeled   int          `json:"unlabeled"`
	TrainIndex  int          `json:"train_index_rows"`
	ValIndex    int          `json:"val_index_rows"`
	BytesCopied int64        `json:"bytes_copied"`
	Pruned      []string     `json:"pruned"`
}

// Run errors. Configuration errors are reported before any output exists.
var (
	ErrDataDirMissing = errors.New("data directory is missing")
	ErrOutputExists   = errors.New("output directory already exists")
	ErrMalformedRow   = errors.New("malformed row")
	ErrUnknownClass   = errors.New("label references unknown class")
	ErrSourceMissing  = errors.New("source image is missing")
)

// IsConfigError reports whether err is a configuration error, meaning the
// run stopped before producing any output.
func IsConfigError(err error) bool {
	for _, target := range []error{
		ErrDataDirEmpty,
		ErrOutputDirEmpty,
		ErrValFractionRange,
		ErrMappingFormatUnknown,
		ErrDataDirMissing,
		ErrOutputExists,
		ErrMalformedRow,
		ErrUnknownClass,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
