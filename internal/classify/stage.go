package classify

import (
	"sjsage522/consoledealworker/internal/listing"

	"github.com/shopspring/decimal"
)

// Candidate is the view of a listing the filter stages evaluate
type Candidate struct {
	// Title is lower-cased
	Title    string
	Price    decimal.Decimal
	Category Category
}

// Stage is one independent predicate in the filter chain. It returns nil to
// pass the candidate on.
type Stage interface {
	Name() string
	Check(c Candidate) *listing.Rejection
}

// StageFunc adapts a function to the Stage interface
type StageFunc struct {
	StageName string
	Fn        func(c Candidate) *listing.Rejection
}

// Name returns the stage name
func (s StageFunc) Name() string { return s.StageName }

// Check runs the wrapped function
func (s StageFunc) Check(c Candidate) *listing.Rejection { return s.Fn(c) }

// Chain runs stages in order and stops at the first rejection
type Chain []Stage

// Check returns the first rejection, or nil when every stage passed
func (ch Chain) Check(c Candidate) *listing.Rejection {
	for _, s := range ch {
		if rej := s.Check(c); rej != nil {
			return rej
		}
	}
	return nil
}
