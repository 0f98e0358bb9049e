// Package trigger matches markers in the output of a running remote command.
//
// A Table maps literal marker strings to reactions. A Watcher evaluates the
// table against a command's output stream chunk by chunk, keeping only a
// small rolling window between chunks so that markers split across reads are
// still found without buffering the whole stream.
package trigger

import (
	"bytes"
	"sort"
)

// Reaction is what the executor does when a marker is seen.
type Reaction int

const (
	// RespondSecret writes the stored secret and a newline to the command's input.
	RespondSecret Reaction = iota
	// SignalReady marks a long-running foreground command as ready.
	SignalReady
)

func (r Reaction) String() string {
	switch r {
	case RespondSecret:
		return "respond-secret"
	case SignalReady:
		return "signal-ready"
	default:
		return "unknown"
	}
}

const (
	// PasswordPrompt is printed by sudo when it wants the user's password.
	PasswordPrompt = "password for"
	// ReadyMarker is logged by wings once its SFTP server accepts connections.
	ReadyMarker = "sftp server listening for connections"
)

// Trigger binds a marker to a reaction. A Once trigger fires at most once per Watcher.
type Trigger struct {
	Marker   string
	Reaction Reaction
	Once     bool
}

// Table is an ordered set of triggers.
type Table []Trigger

// DefaultTable answers the first sudo prompt of a command and detects wings readiness.
func DefaultTable() Table {
	return Table{
		{Marker: PasswordPrompt, Reaction: RespondSecret, Once: true},
		{Marker: ReadyMarker, Reaction: SignalReady, Once: true},
	}
}

// Watcher tracks a single command invocation.
type Watcher struct {
	table  Table
	fired  []bool
	window []byte
	keep   int
}

// NewWatcher creates a watcher for one command invocation.
func NewWatcher(table Table) *Watcher {
	keep := 0
	for _, t := range table {
		if n := len(t.Marker) - 1; n > keep {
			keep = n
		}
	}

	return &Watcher{
		table: table,
		fired: make([]bool, len(table)),
		keep:  keep,
	}
}

type hit struct {
	pos int
	idx int
}

// Feed consumes the next output chunk and returns the triggers it completed,
// in order of appearance. A marker occurrence is reported once, on the chunk
// that completes it.
func (w *Watcher) Feed(chunk []byte) []Trigger {
	if len(chunk) == 0 {
		return nil
	}

	prev := len(w.window)
	buf := make([]byte, 0, prev+len(chunk))
	buf = append(buf, w.window...)
	buf = append(buf, chunk...)

	var hits []hit
	for i, t := range w.table {
		if t.Marker == "" || (t.Once && w.fired[i]) {
			continue
		}
		hits = append(hits, w.scan(buf, prev, i)...)
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].pos < hits[b].pos })

	matched := make([]Trigger, 0, len(hits))
	for _, h := range hits {
		w.fired[h.idx] = true
		matched = append(matched, w.table[h.idx])
	}

	if len(buf) > w.keep {
		buf = buf[len(buf)-w.keep:]
	}
	w.window = append(w.window[:0], buf...)

	return matched
}

// scan finds occurrences of trigger idx that end inside the new data.
func (w *Watcher) scan(buf []byte, prev, idx int) []hit {
	t := w.table[idx]
	marker := []byte(t.Marker)

	var hits []hit
	for from := 0; from < len(buf); {
		j := bytes.Index(buf[from:], marker)
		if j < 0 {
			break
		}
		pos := from + j
		if pos+len(marker) > prev {
			hits = append(hits, hit{pos: pos, idx: idx})
			if t.Once {
				break
			}
		}
		from = pos + len(marker)
	}
	return hits
}

// Fired reports whether any trigger with the given reaction has matched.
func (w *Watcher) Fired(r Reaction) bool {
	for i, t := range w.table {
		if t.Reaction == r && w.fired[i] {
			return true
		}
	}
	return false
}
