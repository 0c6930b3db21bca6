package watcher

// Kind classifies a coalesced filesystem change.
type Kind int

const (
	Created Kind = iota + 1
	Modified
	Removed
	Renamed
	// Rescan means events were lost and the watched tree should be treated as changed.
	Rescan
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	case Renamed:
		return "renamed"
	case Rescan:
		return "rescan"
	default:
		return "unknown"
	}
}

// Event is one change inside a delivered batch. From is set for Renamed only.
type Event struct {
	Kind Kind
	Path string
	From string
}

// batch accumulates events for one quiescence window.
type batch struct {
	events []Event
	index  map[string]int // path -> position of its latest event
}

func (b *batch) add(ev Event) {
	if b.index == nil {
		b.index = map[string]int{}
	}
	if ev.Kind == Modified {
		if i, ok := b.index[ev.Path]; ok {
			switch b.events[i].Kind {
			case Created, Modified, Renamed:
				return
			}
		}
	}
	if ev.Kind == Created {
		// a preceding rename of another path is the source of this create
		for i := len(b.events) - 1; i >= 0; i-- {
			prev := b.events[i]
			if prev.Kind == Renamed && prev.Path == "" {
				b.events[i] = Event{Kind: Renamed, From: prev.From, Path: ev.Path}
				b.index[ev.Path] = i
				return
			}
		}
	}
	key := ev.Path
	if ev.Kind == Renamed && ev.Path == "" {
		key = ev.From
	}
	b.index[key] = len(b.events)
	b.events = append(b.events, ev)
}

// take returns the batch contents; an unmatched rename is reported as a removal.
func (b *batch) take() []Event {
	out := b.events
	for i, ev := range out {
		if ev.Kind == Renamed && ev.Path == "" {
			out[i] = Event{Kind: Removed, Path: ev.From}
		}
	}
	b.events = nil
	b.index = nil
	return out
}
