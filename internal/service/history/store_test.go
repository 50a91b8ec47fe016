package history

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/clipkeep/internal/adapter/filesystem"
	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/domain/event"
	"github.com/vertextoedge/clipkeep/internal/port"
)

// testClock is a manually advanced clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mutablePolicy lets tests change bounds between mutations
type mutablePolicy struct {
	mu sync.Mutex
	p  domain.RetentionPolicy
}

func (m *mutablePolicy) Policy() domain.RetentionPolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.p
}

func (m *mutablePolicy) Set(p domain.RetentionPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.p = p
}

// recordingSnapshots implements port.SnapshotStore in memory
type recordingSnapshots struct {
	mu      sync.Mutex
	saves   [][]domain.Entry
	loadErr error
	initial []domain.Entry
	saveErr error
}

func (r *recordingSnapshots) Save(_ context.Context, entries []domain.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves = append(r.saves, domain.CloneEntries(entries))
	return nil
}

func (r *recordingSnapshots) Load(context.Context) ([]domain.Entry, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return domain.CloneEntries(r.initial), nil
}

func (r *recordingSnapshots) Close() error { return nil }

func (r *recordingSnapshots) last() []domain.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saves) == 0 {
		return nil
	}
	return r.saves[len(r.saves)-1]
}

type recordingScheduler struct {
	paths []string
}

func (r *recordingScheduler) Schedule(p string) bool {
	r.paths = append(r.paths, p)
	return true
}

func newTestStore(policy port.PolicySource, clock *testClock) *Store {
	return NewStore(Deps{Policy: policy, Now: clock.Now, Logger: zap.NewNop()})
}

func text(s string) domain.Capture {
	return domain.Capture{Kind: domain.KindPlainText, Content: s}
}

// insertAll inserts each text one second apart
func insertAll(t *testing.T, s *Store, clock *testClock, texts ...string) {
	t.Helper()
	for _, x := range texts {
		clock.Advance(time.Second)
		if _, _, err := s.Insert(text(x)); err != nil {
			t.Fatalf("Insert(%q): %v", x, err)
		}
	}
}

func contentsOf(entries []domain.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Content
	}
	return out
}

func findID(t *testing.T, s *Store, content string) string {
	t.Helper()
	for _, e := range s.Items() {
		if e.Content == content {
			return e.ID
		}
	}
	t.Fatalf("no entry with content %q", content)
	return ""
}

func assertContents(t *testing.T, s *Store, want ...string) {
	t.Helper()
	got := contentsOf(s.Items())
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("store = %v, want %v", got, want)
	}
}

func TestStore_ScenarioUnlimited(t *testing.T) {
	clock := newTestClock()
	s := newTestStore(port.StaticPolicy{}, clock)

	insertAll(t, s, clock, "a", "b", "c")
	assertContents(t, s, "c", "b", "a")
}

func TestStore_ScenarioCountEviction(t *testing.T) {
	clock := newTestClock()
	s := newTestStore(port.StaticPolicy{MaxItems: 2}, clock)

	insertAll(t, s, clock, "a", "b", "c")
	assertContents(t, s, "c", "b")
}

func TestStore_ScenarioCountEvictionWithPin(t *testing.T) {
	clock := newTestClock()
	s := newTestStore(port.StaticPolicy{MaxItems: 2}, clock)

	insertAll(t, s, clock, "a")
	if _, ok := s.TogglePin(findID(t, s, "a")); !ok {
		t.Fatal("TogglePin(a) not found")
	}
	insertAll(t, s, clock, "b", "c")

	// b discarded, a retained despite being oldest
	assertContents(t, s, "c", "a")
}

func TestStore_PinFillsBoundOfOne(t *testing.T) {
	clock := newTestClock()
	s := newTestStore(port.StaticPolicy{MaxItems: 1}, clock)

	insertAll(t, s, clock, "a")
	s.TogglePin(findID(t, s, "a"))
	insertAll(t, s, clock, "b", "c")

	// the pin alone reaches the bound, so no unpinned entry survives
	assertContents(t, s, "a")
}

func TestStore_ScenarioAgeEviction(t *testing.T) {
	clock := newTestClock()
	policy := &mutablePolicy{}
	s := newTestStore(policy, clock)

	insertAll(t, s, clock, "old")
	insertAll(t, s, clock, "pinned-old")
	s.TogglePin(findID(t, s, "pinned-old"))

	clock.Advance(48 * time.Hour)
	insertAll(t, s, clock, "fresh")

	policy.Set(domain.RetentionPolicy{RetentionDays: 1})
	if n := s.Evict(); n != 1 {
		t.Fatalf("Evict removed %d, want 1", n)
	}
	assertContents(t, s, "fresh", "pinned-old")
}

func TestStore_ScenarioSearch(t *testing.T) {
	clock := newTestClock()
	s := newTestStore(port.StaticPolicy{}, clock)

	s.Insert(domain.Capture{Kind: domain.KindFileReference, Content: "/tmp/hello.png", CapturedAt: clock.Now()})
	clock.Advance(time.Second)
	s.Insert(domain.Capture{Kind: domain.KindPlainText, Content: "hello world", CapturedAt: clock.Now()})

	got := s.Filtered(domain.CategoryAll, "hello")
	if len(got) != 2 {
		t.Errorf("Filtered(all, hello) = %v, want both entries", contentsOf(got))
	}
	if got := s.Filtered(domain.CategoryFile, "HELLO"); len(got) != 1 || got[0].Kind != domain.KindFileReference {
		t.Errorf("Filtered(file, HELLO) = %v", contentsOf(got))
	}
}

func TestStore_Dedup(t *testing.T) {
	clock := newTestClock()
	s := newTestStore(port.StaticPolicy{}, clock)

	first, added, _ := s.Insert(text("x"))
	if !added {
		t.Fatal("first insert should add")
	}
	v := s.Version()

	again, added, err := s.Insert(text("x"))
	if err != nil || added {
		t.Fatalf("duplicate insert added=%v err=%v", added, err)
	}
	if again.ID != first.ID || s.Len() != 1 || s.Version() != v {
		t.Errorf("duplicate insert changed the store: len=%d version %d->%d", s.Len(), v, s.Version())
	}

	// same content with a different kind is not a duplicate
	s.Insert(domain.Capture{Kind: domain.KindRichText, Content: "x"})
	// non-adjacent repeats are kept
	s.Insert(text("x"))
	if s.Len() != 3 {
		t.Errorf("len = %d, want 3", s.Len())
	}
}

func TestStore_PolicyReadOnEveryMutation(t *testing.T) {
	clock := newTestClock()
	policy := &mutablePolicy{}
	s := newTestStore(policy, clock)

	insertAll(t, s, clock, "a", "b", "c", "d")
	policy.Set(domain.RetentionPolicy{MaxItems: 2})
	insertAll(t, s, clock, "e")

	assertContents(t, s, "e", "d")
}

func TestStore_TogglePinUnknownIsNoop(t *testing.T) {
	clock := newTestClock()
	s := newTestStore(port.StaticPolicy{}, clock)
	insertAll(t, s, clock, "a")
	v := s.Version()

	if _, ok := s.TogglePin("missing"); ok {
		t.Error("TogglePin(missing) reported found")
	}
	if s.Version() != v {
		t.Error("no-op toggle changed the version")
	}

	id := findID(t, s, "a")
	e, _ := s.TogglePin(id)
	if !e.Pinned {
		t.Error("first toggle should pin")
	}
	e, _ = s.TogglePin(id)
	if e.Pinned {
		t.Error("second toggle should unpin")
	}
}

func TestStore_RemoveByContentPaths(t *testing.T) {
	clock := newTestClock()
	s := newTestStore(port.StaticPolicy{}, clock)

	s.Insert(domain.Capture{Kind: domain.KindFileReference, Content: "/tmp/a.txt"})
	s.Insert(text("/tmp/a.txt"))
	s.Insert(domain.Capture{Kind: domain.KindFileReference, Content: "/tmp/b.txt"})

	if n := s.RemoveByContentPaths([]string{"/tmp/a.txt", "/tmp/zzz"}); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	// the plain text entry with the same string is not a file reference
	assertContents(t, s, "/tmp/b.txt", "/tmp/a.txt")

	if !s.Remove(findID(t, s, "/tmp/b.txt")) {
		t.Error("Remove should report the entry existed")
	}
	if s.Remove("missing") {
		t.Error("Remove(missing) should report false")
	}

	// a vanished file takes its pinned entry with it
	s.Insert(domain.Capture{Kind: domain.KindFileReference, Content: "/tmp/c.txt"})
	s.TogglePin(findID(t, s, "/tmp/c.txt"))
	if n := s.RemoveByContentPaths([]string{"/tmp/c.txt"}); n != 1 {
		t.Errorf("removed %d pinned entries, want 1", n)
	}
}

func TestStore_PinnedEntriesNeverEvicted(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	clock := newTestClock()
	policy := &mutablePolicy{}
	s := newTestStore(policy, clock)

	pinned := map[string]bool{}
	for i := 0; i < 400; i++ {
		clock.Advance(time.Duration(rng.Intn(12)) * time.Hour)
		policy.Set(domain.RetentionPolicy{RetentionDays: rng.Intn(3), MaxItems: rng.Intn(6)})

		evicted := false
		switch op := rng.Intn(10); {
		case op < 6:
			_, added, _ := s.Insert(text(fmt.Sprintf("t%d", rng.Intn(20))))
			evicted = added
		case op < 8:
			items := s.Items()
			if len(items) == 0 {
				continue
			}
			e, _ := s.TogglePin(items[rng.Intn(len(items))].ID)
			pinned[e.ID] = e.Pinned
		default:
			s.Evict()
			evicted = true
		}

		items := s.Items()
		present := map[string]bool{}
		count := 0
		for _, e := range items {
			present[e.ID] = true
			if e.Pinned {
				count++
			}
		}
		for id, p := range pinned {
			if p && !present[id] {
				t.Fatalf("step %d: pinned entry %s was evicted", i, id)
			}
		}
		if !evicted {
			continue
		}
		policyNow := policy.Policy()
		if max := policyNow.MaxItems; max > 0 && len(items) > max && len(items) > count {
			t.Fatalf("step %d: %d entries exceed bound %d with %d pinned", i, len(items), max, count)
		}
		if cutoff, ok := policyNow.Cutoff(clock.Now()); ok {
			for _, e := range items {
				if !e.Pinned && e.CreatedAt.Before(cutoff) {
					t.Fatalf("step %d: unpinned %s older than cutoff", i, e.ID)
				}
			}
		}
	}
}

func TestStore_FilteredMatchesPredicates(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	clock := newTestClock()
	s := newTestStore(port.StaticPolicy{}, clock)

	kinds := []domain.Kind{domain.KindPlainText, domain.KindRichText, domain.KindFileReference}
	words := []string{"Alpha", "beta", "gamma", "ALPHABET", "/tmp/alpha.png"}
	for i := 0; i < 60; i++ {
		clock.Advance(time.Second)
		s.Insert(domain.Capture{Kind: kinds[rng.Intn(len(kinds))], Content: words[rng.Intn(len(words))] + fmt.Sprint(i)})
		if rng.Intn(4) == 0 {
			items := s.Items()
			s.TogglePin(items[0].ID)
		}
	}

	categories := []domain.Category{domain.CategoryAll, domain.CategoryText, domain.CategoryImage, domain.CategoryFile, domain.CategoryFavorites}
	for _, c := range categories {
		for _, q := range []string{"", "alpha", "A", "png", "nothing"} {
			got := s.Filtered(c, q)
			gotIDs := map[string]bool{}
			for _, e := range got {
				gotIDs[e.ID] = true
				if !c.Matches(e) || !domain.MatchesSearch(e, q) {
					t.Errorf("%s/%q returned non-matching %+v", c, q, e)
				}
			}
			for _, e := range s.Items() {
				if c.Matches(e) && domain.MatchesSearch(e, q) && !gotIDs[e.ID] {
					t.Errorf("%s/%q missed %+v", c, q, e)
				}
			}
		}
	}
}

func TestStore_FilteredIsMemoized(t *testing.T) {
	clock := newTestClock()
	s := newTestStore(port.StaticPolicy{}, clock)
	insertAll(t, s, clock, "a", "b")

	s.Filtered(domain.CategoryText, "a")
	s.Filtered(domain.CategoryText, "a")
	if hits, misses := s.QueryStats(); hits != 1 || misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1/1", hits, misses)
	}

	insertAll(t, s, clock, "aa")
	if got := s.Filtered(domain.CategoryText, "a"); len(got) != 2 {
		t.Errorf("stale view after insert: %v", contentsOf(got))
	}
	s.Filtered(domain.CategoryText, "b")
	if _, misses := s.QueryStats(); misses != 3 {
		t.Errorf("misses = %d, want 3", misses)
	}
}

func TestStore_FilteredAtMatchesVersion(t *testing.T) {
	clock := newTestClock()
	s := newTestStore(port.StaticPolicy{}, clock)
	insertAll(t, s, clock, "a", "b")

	version, entries := s.FilteredAt(domain.CategoryAll, "")
	if version != s.Version() || len(entries) != 2 {
		t.Fatalf("FilteredAt = (%d, %v), store version %d", version, contentsOf(entries), s.Version())
	}

	insertAll(t, s, clock, "c")
	next, entries := s.FilteredAt(domain.CategoryAll, "")
	if next <= version || len(entries) != 3 {
		t.Errorf("FilteredAt after insert = (%d, %v)", next, contentsOf(entries))
	}
}

func TestStore_ImageBlobLifecycle(t *testing.T) {
	blobs, err := filesystem.NewBlobDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewBlobDir: %v", err)
	}
	clock := newTestClock()
	policy := &mutablePolicy{}
	sched := &recordingScheduler{}
	metrics := event.NewMetricsHandler()
	d := event.NewInMemoryDispatcher(false)
	d.Subscribe(metrics)

	s := NewStore(Deps{Policy: policy, Blobs: blobs, Thumbnails: sched, Dispatcher: d, Now: clock.Now, Logger: zap.NewNop()})

	var paths []string
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		e, added, err := s.Insert(domain.Capture{Kind: domain.KindImageBlob, Image: []byte{byte(i)}})
		if err != nil || !added {
			t.Fatalf("Insert image: added=%v err=%v", added, err)
		}
		if !filesystem.FileExists(e.Content) {
			t.Fatalf("blob %s not written", e.Content)
		}
		os.WriteFile(blobs.ThumbnailPath(e.Content), []byte("thumb"), 0o644)
		paths = append(paths, e.Content)
	}
	if len(sched.paths) != 3 {
		t.Errorf("thumbnails scheduled %d, want 3", len(sched.paths))
	}

	// count eviction removes the oldest image and both of its files
	policy.Set(domain.RetentionPolicy{MaxItems: 2})
	s.Evict()
	if filesystem.FileExists(paths[0]) || filesystem.FileExists(blobs.ThumbnailPath(paths[0])) {
		t.Error("evicted image files still on disk")
	}
	assertOriginals(t, blobs, s)

	s.Remove(findID(t, s, paths[2]))
	assertOriginals(t, blobs, s)

	s.Clear()
	entries, _ := os.ReadDir(blobs.Dir())
	if len(entries) != 0 {
		t.Errorf("blob dir not empty after Clear: %d files", len(entries))
	}
	if m := metrics.GetMetrics(); m["orphans_removed"] != 6 {
		t.Errorf("orphans_removed = %d, want 6", m["orphans_removed"])
	}
}

// assertOriginals checks that the originals on disk equal the image contents
func assertOriginals(t *testing.T, blobs *filesystem.BlobDir, s *Store) {
	t.Helper()
	var want []string
	for _, e := range s.Items() {
		if e.Kind == domain.KindImageBlob {
			want = append(want, e.Content)
		}
	}
	entries, _ := os.ReadDir(blobs.Dir())
	var got []string
	for _, de := range entries {
		if !strings.HasSuffix(de.Name(), "_thumb.png") {
			got = append(got, blobs.Dir()+string(os.PathSeparator)+de.Name())
		}
	}
	sort.Strings(want)
	sort.Strings(got)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("originals on disk = %v, want %v", got, want)
	}
}

func TestStore_ReconcileRemovesStrays(t *testing.T) {
	blobs, _ := filesystem.NewBlobDir(t.TempDir())
	stray := blobs.Dir() + "/1_deadbeef.png"
	os.WriteFile(stray, []byte("x"), 0o644)

	clock := newTestClock()
	s := NewStore(Deps{Blobs: blobs, Now: clock.Now})
	s.Load(context.Background(), &recordingSnapshots{})

	if filesystem.FileExists(stray) {
		t.Error("stray blob survived load-time reconciliation")
	}
}

func TestStore_LoadAppliesPolicy(t *testing.T) {
	clock := newTestClock()
	now := clock.Now()
	snaps := &recordingSnapshots{initial: []domain.Entry{
		{ID: "3", Kind: domain.KindPlainText, Content: "c", CreatedAt: now.Add(-time.Hour)},
		{ID: "2", Kind: domain.KindPlainText, Content: "b", CreatedAt: now.Add(-2 * time.Hour), Pinned: true},
		{ID: "1", Kind: domain.KindPlainText, Content: "a", CreatedAt: now.Add(-72 * time.Hour)},
	}}
	p := NewPersister(snaps, nil, zap.NewNop())
	s := NewStore(Deps{Policy: port.StaticPolicy{RetentionDays: 1}, Persister: p, Now: clock.Now})

	if n := s.Load(context.Background(), snaps); n != 2 {
		t.Fatalf("Load kept %d, want 2", n)
	}
	p.Close()

	assertContents(t, s, "c", "b")
	if got := contentsOf(snaps.last()); strings.Join(got, ",") != "c,b" {
		t.Errorf("evicted history not persisted: %v", got)
	}
}

func TestStore_LoadFailuresStartEmpty(t *testing.T) {
	for _, loadErr := range []error{
		fmt.Errorf("%w: bad json", domain.ErrMalformedSnapshot),
		errors.New("disk on fire"),
	} {
		s := NewStore(Deps{})
		if n := s.Load(context.Background(), &recordingSnapshots{loadErr: loadErr}); n != 0 {
			t.Errorf("Load with %v kept %d entries", loadErr, n)
		}
		if _, _, err := s.Insert(text("still works")); err != nil {
			t.Errorf("Insert after failed load: %v", err)
		}
	}
}
