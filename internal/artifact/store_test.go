package artifact

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestStore_PutGet(t *testing.T) {
	s := NewStore()
	data := []byte("# Hello")

	id := s.Put("report_converted.md", "text/markdown; charset=utf-8", data)
	require.NotEmpty(t, id)

	data[0] = 'X'
	a, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "report_converted.md", a.Name)
	assert.Equal(t, "text/markdown; charset=utf-8", a.MIMEType)
	assert.Equal(t, []byte("# Hello"), a.Data, "store keeps its own copy")

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStore_UniqueIDs(t *testing.T) {
	s := NewStore()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := s.Put("a.md", "text/plain", nil)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestStore_Expiry(t *testing.T) {
	clock := newClock()
	s := NewStore(WithTTL(time.Minute), WithClock(clock.Now))

	id := s.Put("a.md", "text/markdown", []byte("a"))
	clock.Advance(59 * time.Second)
	_, ok := s.Get(id)
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = s.Get(id)
	assert.False(t, ok, "expired artifacts are not served")
	assert.Equal(t, 1, s.Len(), "expired artifacts stay until swept")

	assert.Equal(t, 1, s.Sweep(clock.Now()))
	assert.Equal(t, 0, s.Len())
}

func TestStore_MaxEntriesEvictsOldest(t *testing.T) {
	clock := newClock()
	s := NewStore(WithMaxEntries(2), WithClock(clock.Now))

	first := s.Put("1.md", "text/markdown", nil)
	clock.Advance(time.Second)
	second := s.Put("2.md", "text/markdown", nil)
	clock.Advance(time.Second)
	third := s.Put("3.md", "text/markdown", nil)

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get(first)
	assert.False(t, ok)
	_, ok = s.Get(second)
	assert.True(t, ok)
	_, ok = s.Get(third)
	assert.True(t, ok)
}

func TestStore_EvictsGroupsWhole(t *testing.T) {
	s := NewStore(WithMaxEntries(3))

	older := s.PutGroup(
		File{Name: "a_converted.md", MIMEType: "text/markdown", Data: []byte("a")},
		File{Name: "a_converted.txt", MIMEType: "text/plain", Data: []byte("a")},
	)
	newer := s.PutGroup(
		File{Name: "b_converted.md", MIMEType: "text/markdown", Data: []byte("b")},
		File{Name: "b_converted.txt", MIMEType: "text/plain", Data: []byte("b")},
	)
	require.Len(t, older, 2)
	require.Len(t, newer, 2)

	assert.Equal(t, 2, s.Len(), "the older pair goes as a unit")
	for _, id := range older {
		_, ok := s.Get(id)
		assert.False(t, ok)
	}
	md, ok := s.Get(newer[0])
	require.True(t, ok)
	txt, ok := s.Get(newer[1])
	require.True(t, ok)
	assert.Equal(t, md.Group, txt.Group)
	assert.Equal(t, "b_converted.txt", txt.Name)
}

func TestStore_KeepsNewestGroupOverCap(t *testing.T) {
	s := NewStore(WithMaxEntries(1))
	s.Put("old.md", "text/markdown", nil)
	ids := s.PutGroup(File{Name: "x.md"}, File{Name: "x.txt"})

	assert.Equal(t, 2, s.Len())
	for _, id := range ids {
		_, ok := s.Get(id)
		assert.True(t, ok)
	}
}

func TestStore_RunSweepsUntilCanceled(t *testing.T) {
	clock := newClock()
	s := NewStore(WithTTL(time.Minute), WithClock(clock.Now))
	s.Put("a.md", "text/markdown", nil)
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 16)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond, func(n int) {
			select {
			case swept <- n:
			default:
			}
		})
		close(done)
	}()

	select {
	case n := <-swept:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 0, s.Len())
}
