package exam

import "github.com/gabrielfriasw/srf-escolas-sub000/core/roster"

// Candidate is a student that may be allocated, tagged with its source class.
type Candidate struct {
	StudentID  string
	Name       string
	RollNumber int
	ClassID    string
	ClassName  string
}

// FilterEligible flattens the classes' students, in class then roster order, leaving out
// the ones in allocated. Empty classes contribute nothing.
func FilterEligible(classes []roster.Class, allocated map[string]bool) []Candidate {
	var n int
	for _, c := range classes {
		n += len(c.Students)
	}
	pool := make([]Candidate, 0, n)
	for _, c := range classes {
		for _, s := range c.Students {
			if allocated[s.ID] {
				continue
			}
			pool = append(pool, Candidate{
				StudentID:  s.ID,
				Name:       s.Name,
				RollNumber: s.RollNumber,
				ClassID:    c.ID,
				ClassName:  c.Name,
			})
		}
	}
	return pool
}
