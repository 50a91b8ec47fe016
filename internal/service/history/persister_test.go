package history

import (
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/port"
)

func TestPersister_LastWriteMatchesStore(t *testing.T) {
	snaps := &recordingSnapshots{}
	p := NewPersister(snaps, nil, zap.NewNop())
	clock := newTestClock()
	s := NewStore(Deps{Policy: port.StaticPolicy{MaxItems: 3}, Persister: p, Now: clock.Now})

	for i := 0; i < 50; i++ {
		clock.Advance(time.Second)
		s.Insert(text(strings.Repeat("x", i+1)))
	}
	s.TogglePin(s.Items()[1].ID)
	p.Close()

	got := snaps.last()
	want := s.Items()
	if len(got) != len(want) {
		t.Fatalf("persisted %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("persisted[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if p.LastSaved() != s.Version() {
		t.Errorf("LastSaved = %d, want %d", p.LastSaved(), s.Version())
	}
}

func TestPersister_SnapshotIsImmutable(t *testing.T) {
	snaps := &recordingSnapshots{}
	p := NewPersister(snaps, nil, zap.NewNop())

	entries := []domain.Entry{{ID: "1", Kind: domain.KindPlainText, Content: "a", CreatedAt: time.Now()}}
	p.Schedule(1, domain.CloneEntries(entries))
	entries[0].Content = "mutated"
	p.Close()

	if got := snaps.last(); got[0].Content != "a" {
		t.Errorf("persisted %q, want the value at schedule time", got[0].Content)
	}
}

func TestPersister_SkipsOlderVersions(t *testing.T) {
	snaps := &recordingSnapshots{}
	p := NewPersister(snaps, nil, zap.NewNop())
	defer p.Close()

	p.Schedule(2, []domain.Entry{})
	p.Flush()
	p.Schedule(1, []domain.Entry{{ID: "old"}})
	p.Flush()

	if got := snaps.last(); len(got) != 0 {
		t.Errorf("an older snapshot overwrote a newer one: %+v", got)
	}
}

func TestPersister_FailureIsAbsorbed(t *testing.T) {
	snaps := &recordingSnapshots{saveErr: errors.New("read-only fs")}
	p := NewPersister(snaps, nil, zap.NewNop())

	p.Schedule(1, []domain.Entry{})
	p.Close()

	if p.Failures() != 1 || p.LastSaved() != 0 {
		t.Errorf("failures=%d lastSaved=%d", p.Failures(), p.LastSaved())
	}
	// scheduling after close is dropped, not a panic
	p.Schedule(2, nil)
}
