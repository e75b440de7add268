package exam

import (
	"math/rand"
	"sort"
)

// Default distribution limits.
const (
	DefaultMaxTotal    = 40
	DefaultMaxPerClass = 2
)

type Limits struct {
	MaxTotal    int
	MaxPerClass int
}

func DefaultLimits() Limits {
	return Limits{MaxTotal: DefaultMaxTotal, MaxPerClass: DefaultMaxPerClass}
}

// Shuffler randomizes the order of n elements through swap, like rand.Shuffle.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// DefaultShuffler uses the math/rand global source.
var DefaultShuffler Shuffler = globalShuffler{}

// Distribute picks at most lim.MaxTotal candidates with no more than lim.MaxPerClass from
// the same class. The pool is shuffled first; every class gets one student before any class
// gets a second one. The result is in canonical order (see SortCandidates).
func Distribute(pool []Candidate, lim Limits, shuffler Shuffler) []Candidate {
	if lim.MaxTotal <= 0 || lim.MaxPerClass <= 0 || len(pool) == 0 {
		return []Candidate{}
	}
	if shuffler == nil {
		shuffler = DefaultShuffler
	}

	shuffled := append([]Candidate(nil), pool...)
	shuffler.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	perClass := make(map[string]int)
	taken := make([]bool, len(shuffled))
	selected := make([]Candidate, 0, min(lim.MaxTotal, len(shuffled)))

	// pass 1: one per class
	for i, c := range shuffled {
		if len(selected) >= lim.MaxTotal {
			break
		}
		if perClass[c.ClassID] == 0 {
			perClass[c.ClassID]++
			taken[i] = true
			selected = append(selected, c)
		}
	}

	// pass 2: fill up to the per-class cap
	for i, c := range shuffled {
		if len(selected) >= lim.MaxTotal {
			break
		}
		if !taken[i] && perClass[c.ClassID] < lim.MaxPerClass {
			perClass[c.ClassID]++
			taken[i] = true
			selected = append(selected, c)
		}
	}

	SortCandidates(selected)
	return selected
}

// SortCandidates sorts by class name then roll number, student id breaking ties.
func SortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].ClassName != cs[j].ClassName {
			return cs[i].ClassName < cs[j].ClassName
		}
		if cs[i].RollNumber != cs[j].RollNumber {
			return cs[i].RollNumber < cs[j].RollNumber
		}
		return cs[i].StudentID < cs[j].StudentID
	})
}

// SortAllocations applies the candidate ordering to allocations.
func SortAllocations(as []Allocation) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].ClassName != as[j].ClassName {
			return as[i].ClassName < as[j].ClassName
		}
		if as[i].RollNumber != as[j].RollNumber {
			return as[i].RollNumber < as[j].RollNumber
		}
		return as[i].StudentID < as[j].StudentID
	})
}
