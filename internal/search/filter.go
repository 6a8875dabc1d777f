// Package search implements the debounced board filter.
package search

import (
	"strings"
	"time"

	"github.com/thenoetrevino/livekanban/internal/board"
	"github.com/thenoetrevino/livekanban/internal/loop"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// Scheduler creates timers whose callbacks run on the event loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) loop.Timer
}

// DefaultQuiescence is how long input must be idle before the filter runs.
const DefaultQuiescence = 300 * time.Millisecond

// Filter is a trailing-edge debounce around filter execution. At most one
// timer is pending; each call to Search replaces it. Filter is only used
// from the event loop.
type Filter struct {
	sched      Scheduler
	quiescence time.Duration
	pending    loop.Timer
	gen        uint64
	term       string
	apply      func(term string)
}

// NewFilter creates a filter that calls apply with the settled term.
func NewFilter(sched Scheduler, quiescence time.Duration, apply func(term string)) *Filter {
	if quiescence <= 0 {
		quiescence = DefaultQuiescence
	}
	return &Filter{sched: sched, quiescence: quiescence, apply: apply}
}

// Search submits a term. Any execution scheduled by an earlier call that has
// not fired yet is cancelled.
func (f *Filter) Search(term string) {
	f.Cancel()

	f.gen++
	gen := f.gen
	term = normalize(term)
	f.pending = f.sched.AfterFunc(f.quiescence, func() {
		f.fire(gen, term)
	})
}

func (f *Filter) fire(gen uint64, term string) {
	if gen != f.gen {
		return
	}
	f.pending = nil
	f.term = term
	if f.apply != nil {
		f.apply(term)
	}
}

// Cancel drops a pending execution, if any.
func (f *Filter) Cancel() {
	if f.pending != nil {
		f.pending.Stop()
		f.pending = nil
	}
	f.gen++
}

// Pending reports whether an execution is scheduled.
func (f *Filter) Pending() bool {
	return f.pending != nil
}

// Term returns the last applied term.
func (f *Filter) Term() string {
	return f.term
}

// Reset forgets the applied term and cancels anything pending.
func (f *Filter) Reset() {
	f.Cancel()
	f.term = ""
}

// Predicate returns the board predicate for the last applied term, or nil
// when the term is empty so the full view is shown.
func (f *Filter) Predicate() board.Predicate {
	return PredicateFor(f.term)
}

// PredicateFor builds the predicate for term.
func PredicateFor(term string) board.Predicate {
	term = normalize(term)
	if term == "" {
		return nil
	}
	return func(t models.Task) bool {
		return t.Matches(term)
	}
}

// normalize lowercases term. Surrounding whitespace is ignored, so a blank
// term shows the full view.
func normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
