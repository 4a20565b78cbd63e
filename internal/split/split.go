// Package split assigns the images of each class to the train and
// validation subsets.
package split

import (
	"math"
	"math/rand"

	"github.com/mesh-intelligence/dataprep/pkg/types"
)

// NewRand returns the generator a run shuffles with. The same seed always
// yields the same assignment.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// ValCount returns floor(n * fraction), clamped to [0, n].
func ValCount(n int, fraction float64) int {
	v := int(math.Floor(float64(n) * fraction))
	if v < 0 {
		return 0
	}
	if v > n {
		return n
	}
	return v
}

// Assign shuffles each class once and splits it: the first ValCount images
// go to validation, the rest to train. Classes are visited in the order of
// groups so a given seed is reproducible. The input slices are not modified.
func Assign(rng *rand.Rand, groups []types.ClassImages, fraction float64) []types.ClassSplit {
	splits := make([]types.ClassSplit, 0, len(groups))
	for _, g := range groups {
		images := make([]string, len(g.Images))
		copy(images, g.Images)
		rng.Shuffle(len(images), func(i, j int) {
			images[i], images[j] = images[j], images[i]
		})

		n := ValCount(len(images), fraction)
		splits = append(splits, types.ClassSplit{
			ClassID: g.ClassID,
			Val:     images[:n:n],
			Train:   images[n:],
		})
	}
	return splits
}
