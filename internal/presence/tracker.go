// Package presence tracks tasks that another actor is currently editing.
// Marks expire on their own after a fixed window.
package presence

import (
	"time"

	"github.com/thenoetrevino/livekanban/internal/loop"
)

// DefaultWindow is how long a task stays marked after the last remote edit.
const DefaultWindow = 2 * time.Second

// Scheduler creates timers whose callbacks run on the event loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) loop.Timer
}

type mark struct {
	deadline time.Time
	timer    loop.Timer
	gen      uint64
}

// Tracker owns the presence marks. It is not safe for concurrent use; all
// calls, including timer callbacks, happen on the event loop.
type Tracker struct {
	sched    Scheduler
	now      func() time.Time
	window   time.Duration
	marks    map[string]*mark
	gen      uint64
	onExpire func(taskID string)
}

// NewTracker creates a tracker. onExpire, when non-nil, runs after a mark
// expires so the caller can refresh whatever shows it.
func NewTracker(sched Scheduler, now func() time.Time, window time.Duration, onExpire func(taskID string)) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		sched:    sched,
		now:      now,
		window:   window,
		marks:    make(map[string]*mark),
		onExpire: onExpire,
	}
}

// Mark inserts or refreshes the mark for taskID. Re-marking replaces the
// existing timer instead of adding a second one.
func (t *Tracker) Mark(taskID string) {
	if taskID == "" {
		return
	}
	if m, ok := t.marks[taskID]; ok {
		m.timer.Stop()
	}

	t.gen++
	gen := t.gen
	m := &mark{deadline: t.now().Add(t.window), gen: gen}
	m.timer = t.sched.AfterFunc(t.window, func() {
		t.expire(taskID, gen)
	})
	t.marks[taskID] = m
}

// expire removes the mark unless it was refreshed after this timer was
// scheduled.
func (t *Tracker) expire(taskID string, gen uint64) {
	m, ok := t.marks[taskID]
	if !ok || m.gen != gen {
		return
	}
	delete(t.marks, taskID)
	if t.onExpire != nil {
		t.onExpire(taskID)
	}
}

// IsMarked reports whether taskID currently carries a mark.
func (t *Tracker) IsMarked(taskID string) bool {
	_, ok := t.marks[taskID]
	return ok
}

// Deadline returns when the mark for taskID expires.
func (t *Tracker) Deadline(taskID string) (time.Time, bool) {
	m, ok := t.marks[taskID]
	if !ok {
		return time.Time{}, false
	}
	return m.deadline, true
}

// Clear removes a mark without waiting for it to expire.
func (t *Tracker) Clear(taskID string) {
	if m, ok := t.marks[taskID]; ok {
		m.timer.Stop()
		delete(t.marks, taskID)
	}
}

// ClearAll removes every mark.
func (t *Tracker) ClearAll() {
	for id, m := range t.marks {
		m.timer.Stop()
		delete(t.marks, id)
	}
}

// Len returns the number of active marks.
func (t *Tracker) Len() int {
	return len(t.marks)
}
