package daemon

import "github.com/thenoetrevino/livekanban/internal/events"

// backlog is a fixed-size ring of the most recent broadcast events, used to
// replay what a reconnecting client missed. Callers hold Server.mu.
type backlog struct {
	buf   []events.Event
	start int
	size  int
}

func newBacklog(capacity int) *backlog {
	return &backlog{buf: make([]events.Event, capacity)}
}

func (b *backlog) add(ev events.Event) {
	if len(b.buf) == 0 {
		return
	}
	if b.size < len(b.buf) {
		b.buf[(b.start+b.size)%len(b.buf)] = ev
		b.size++
		return
	}
	// Full: overwrite the oldest
	b.buf[b.start] = ev
	b.start = (b.start + 1) % len(b.buf)
}

// since returns the events on channel with a sequence above seq, oldest first.
func (b *backlog) since(channel string, seq int64) []events.Event {
	var out []events.Event
	for i := 0; i < b.size; i++ {
		ev := b.buf[(b.start+i)%len(b.buf)]
		if ev.Channel == channel && ev.SequenceID > seq {
			out = append(out, ev)
		}
	}
	return out
}

func (b *backlog) len() int {
	return b.size
}
