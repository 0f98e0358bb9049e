package trigger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reactions(ts []Trigger) []Reaction {
	out := make([]Reaction, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Reaction)
	}
	return out
}

func TestWatcher_PasswordPromptOnce(t *testing.T) {
	w := NewWatcher(DefaultTable())

	assert.Empty(t, w.Feed([]byte("Reading package lists...\r\n")))
	assert.Equal(t, []Reaction{RespondSecret}, reactions(w.Feed([]byte("[sudo] password for deploy: "))))

	// unrelated output afterwards must not resend
	assert.Empty(t, w.Feed([]byte("\r\n")))
	assert.Empty(t, w.Feed([]byte("Setting up docker-ce ...\r\n")))
	assert.True(t, w.Fired(RespondSecret))
	assert.False(t, w.Fired(SignalReady))
}

func TestWatcher_MarkerSplitAcrossChunks(t *testing.T) {
	w := NewWatcher(DefaultTable())

	assert.Empty(t, w.Feed([]byte("[sudo] pass")))
	assert.Empty(t, w.Feed([]byte("word f")))
	assert.Equal(t, []Reaction{RespondSecret}, reactions(w.Feed([]byte("or deploy: "))))
	assert.Empty(t, w.Feed([]byte("x")))
}

func TestWatcher_OnceTriggerIgnoresRepeatedPrompt(t *testing.T) {
	w := NewWatcher(DefaultTable())

	got := w.Feed([]byte("[sudo] password for deploy: \r\nSorry, try again.\r\n[sudo] password for deploy: "))
	assert.Equal(t, []Reaction{RespondSecret}, reactions(got))
	assert.Empty(t, w.Feed([]byte("[sudo] password for deploy: ")))
}

func TestWatcher_RepeatingTrigger(t *testing.T) {
	w := NewWatcher(Table{{Marker: "ping", Reaction: SignalReady}})

	assert.Len(t, w.Feed([]byte("ping pong ping")), 2)
	// the tail "ing" kept in the window must not be matched again
	assert.Empty(t, w.Feed([]byte(" pong")))
	assert.Len(t, w.Feed([]byte("pi")), 0)
	assert.Len(t, w.Feed([]byte("ng")), 1)
}

func TestWatcher_ReadyMarker(t *testing.T) {
	w := NewWatcher(DefaultTable())

	got := w.Feed([]byte("INFO: [Oct 15 12:00:01.000] sftp server listening for connections listen=0.0.0.0:2022\r\n"))
	assert.Equal(t, []Reaction{SignalReady}, reactions(got))
	assert.True(t, w.Fired(SignalReady))
}

func TestWatcher_OrderOfAppearance(t *testing.T) {
	w := NewWatcher(DefaultTable())

	got := w.Feed([]byte("[sudo] password for root: \r\n... sftp server listening for connections"))
	assert.Equal(t, []Reaction{RespondSecret, SignalReady}, reactions(got))
}

func TestWatcher_BoundedWindow(t *testing.T) {
	w := NewWatcher(DefaultTable())

	w.Feed([]byte(strings.Repeat("a", 64*1024)))
	assert.Equal(t, len(ReadyMarker)-1, len(w.window))

	w.Feed([]byte("xy"))
	assert.LessOrEqual(t, len(w.window), len(ReadyMarker)-1)
}

func TestWatcher_EmptyChunk(t *testing.T) {
	w := NewWatcher(DefaultTable())
	assert.Nil(t, w.Feed(nil))
}

func TestReaction_String(t *testing.T) {
	assert.Equal(t, "respond-secret", RespondSecret.String())
	assert.Equal(t, "signal-ready", SignalReady.String())
	assert.Equal(t, "unknown", Reaction(42).String())
}
