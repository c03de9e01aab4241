package regression

import (
	"fmt"
	"math"
	"math/rand"
)

// Partition labels a row as training or held-out.
type Partition int

const (
	Train Partition = iota
	Test
)

func (p Partition) String() string {
	if p == Test {
		return "test"
	}
	return "train"
}

// Split shuffles 0..n-1 with the given seed and returns (train, test) index sets.
// The test set holds ceil(testSize*n) rows; both sets must be non-empty.
func Split(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size %v must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if n < 2 || nTest >= n {
		return nil, nil, fmt.Errorf("split %d rows with test size %v: %w", n, testSize, ErrInsufficientData)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	return train, test, nil
}

// Partitions maps every row index to its partition.
func Partitions(n int, test []int) []Partition {
	out := make([]Partition, n)
	for _, i := range test {
		out[i] = Test
	}
	return out
}
