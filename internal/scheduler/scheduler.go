// Package scheduler implements the citizen's keyed timer: scheduling
// an event under a key replaces any prior event under that key, and
// due events are handed to the caller on demand — the scheduler never
// preempts (§4.2, §5).
package scheduler

// Kind identifies which event loop an entry drives.
type Kind int

const (
	KindSynchronize Kind = iota
	KindCollapse
	KindPropose
)

func (k Kind) String() string {
	switch k {
	case KindSynchronize:
		return "synchronize"
	case KindCollapse:
		return "collapse"
	case KindPropose:
		return "propose"
	default:
		return "unknown"
	}
}

// Event is a single scheduled occurrence.
type Event struct {
	Key     string
	When    int64
	Kind    Kind
	Payload any

	seq int64 // insertion order, for deterministic tie-breaking
}

// Scheduler is a keyed timer. It holds at most one pending event per
// key; scheduling under an existing key replaces it outright.
type Scheduler struct {
	events map[string]*Event
	seq    int64
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{events: make(map[string]*Event)}
}

// Schedule installs an event under key, replacing any event already
// scheduled under that key.
func (s *Scheduler) Schedule(when int64, key string, kind Kind, payload any) {
	s.seq++
	s.events[key] = &Event{Key: key, When: when, Kind: kind, Payload: payload, seq: s.seq}
}

// Unschedule removes the event under key, if any.
func (s *Scheduler) Unschedule(key string) {
	delete(s.events, key)
}

// Clear removes every scheduled event, as happens on government
// enactment (§4.8).
func (s *Scheduler) Clear() {
	s.events = make(map[string]*Event)
}

// Pending reports whether an event is scheduled under key.
func (s *Scheduler) Pending(key string) bool {
	_, ok := s.events[key]
	return ok
}

// Due removes and returns every event whose deadline is <= now, sorted
// by deadline then by insertion order — a stable ordering given
// identical `now` inputs and identical scheduling calls (§4.2's
// determinism requirement).
func (s *Scheduler) Due(now int64) []Event {
	var due []Event
	for key, ev := range s.events {
		if ev.When <= now {
			due = append(due, *ev)
			delete(s.events, key)
		}
	}
	sortEvents(due)
	return due
}

func sortEvents(events []Event) {
	// Insertion sort: due batches are small (one per scheduler key,
	// bounded by cluster size), and stability matters more than
	// asymptotic cost here.
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && less(events[j], events[j-1]); j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
}

func less(a, b Event) bool {
	if a.When != b.When {
		return a.When < b.When
	}
	return a.seq < b.seq
}
