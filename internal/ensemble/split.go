package ensemble

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ErrStratify is returned when a stratified split cannot be drawn.
var ErrStratify = errors.New("ensemble: cannot stratify split")

// StratifiedSplit partitions row indices into train and test sets so each
// label keeps its share of the test set. The test set holds
// ceil(testSize*n) rows. Every label needs at least two rows.
func StratifiedSplit(y []int, testSize float64, seed int64) (train, test []int, err error) {
	n := len(y)
	if n == 0 {
		return nil, nil, fmt.Errorf("%w: no samples", ErrStratify)
	}
	byClass := make(map[int][]int)
	var classes []int
	for i, c := range y {
		if _, ok := byClass[c]; !ok {
			classes = append(classes, c)
		}
		byClass[c] = append(byClass[c], i)
	}
	sort.Ints(classes)

	for _, c := range classes {
		if len(byClass[c]) < 2 {
			return nil, nil, fmt.Errorf("%w: the least populated class has only 1 member, which is too few", ErrStratify)
		}
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < len(classes) {
		return nil, nil, fmt.Errorf("%w: test size %d is smaller than the number of classes %d", ErrStratify, nTest, len(classes))
	}
	if nTrain < len(classes) {
		return nil, nil, fmt.Errorf("%w: train size %d is smaller than the number of classes %d", ErrStratify, nTrain, len(classes))
	}

	alloc := allocate(classes, byClass, nTest, n)
	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		rows := append([]int(nil), byClass[c]...)
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		test = append(test, rows[:alloc[c]]...)
		train = append(train, rows[alloc[c]:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// allocate distributes nTest across classes by largest remainder, keeping
// at least one training row per class.
func allocate(classes []int, byClass map[int][]int, nTest, n int) map[int]int {
	type share struct {
		class int
		frac  float64
	}
	alloc := make(map[int]int, len(classes))
	shares := make([]share, 0, len(classes))
	given := 0
	for _, c := range classes {
		exact := float64(nTest) * float64(len(byClass[c])) / float64(n)
		whole := int(math.Floor(exact))
		alloc[c] = whole
		given += whole
		shares = append(shares, share{class: c, frac: exact - float64(whole)})
	}
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].frac > shares[j].frac })
	for k := 0; given < nTest && k < len(shares); k++ {
		alloc[shares[k].class]++
		given++
	}
	for _, c := range classes {
		if alloc[c] >= len(byClass[c]) {
			alloc[c] = len(byClass[c]) - 1
		}
	}
	return alloc
}
