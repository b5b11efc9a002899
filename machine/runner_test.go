package machine

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/nf/conport/fixture"
)

func TestRunnerRun(t *testing.T) {
	for _, c := range []struct {
		name string
		prog *fixture.Program
		want string
		code int
	}{
		{"sdcc", mustLookup(t, "sdcc"), "A Test\n", 0},
		{"print_c", mustLookup(t, "print_c"), "Hello\n", 0},
		{"empty", fixture.FromString("empty", nil), "", 0},
		{"too big", &fixture.Program{
			Name:  "too big",
			Image: []fixture.Segment{{Addr: 0xfff0, Data: make([]byte, 0x20)}},
		}, "", 1},
	} {
		t.Run(c.name, func(t *testing.T) {
			var out bytes.Buffer
			r := NewRunner(RunnerConfig{Machine: Config{Sink: &out}})
			if code := r.Run(c.prog); code != c.code {
				t.Errorf("exit code %d, want %d", code, c.code)
			}
			if g := out.String(); g != c.want {
				t.Errorf("output %q, want %q", g, c.want)
			}
		})
	}
}

func TestRunnerSinkFault(t *testing.T) {
	r := NewRunner(RunnerConfig{
		Machine: Config{Sink: &brokenSink{ok: 3}},
		Trace:   true,
	})
	if code := r.Run(mustLookup(t, "print_c")); code != 1 {
		t.Errorf("exit code %d, want 1", code)
	}
	trace := r.Trace()
	want := []string{
		`0400 <- 48 'H' out`,
		`0400 <- 65 'e' out`,
		`0400 <- 6c 'l' out`,
	}
	if strings.Join(trace, "\n") != strings.Join(want, "\n") {
		t.Errorf("trace is\n\t%s\nwant\n\t%s", strings.Join(trace, "\n\t"), strings.Join(want, "\n\t"))
	}
}

func TestRunnerState(t *testing.T) {
	var (
		mu    sync.Mutex
		kinds []StateKind
		out   bytes.Buffer
	)
	r := NewRunner(RunnerConfig{
		Machine: Config{Sink: &out},
		State: func(m *Machine, k StateKind) {
			mu.Lock()
			kinds = append(kinds, k)
			mu.Unlock()
		},
	})
	if code := r.Run(fixture.FromString("hi", []byte("hi"))); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	mu.Lock()
	defer mu.Unlock()
	// Loading the image bypasses the bus, so the writes are the two
	// characters and the halt.
	want := []StateKind{ClearState, WriteState, WriteState, WriteState, HaltState}
	if len(kinds) != len(want) {
		t.Fatalf("states %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("state %d = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestBacklogWraps(t *testing.T) {
	var b backlog
	for i := 0; i < maxBacklog+5; i++ {
		b.Add(uint16(i), 0)
	}
	e := b.Entries()
	if len(e) != maxBacklog {
		t.Fatalf("%d entries, want %d", len(e), maxBacklog)
	}
	if e[0].addr != 5 || e[len(e)-1].addr != maxBacklog+4 {
		t.Errorf("entries span %.4x..%.4x, want 0005..%.4x", e[0].addr, e[len(e)-1].addr, maxBacklog+4)
	}
}

func TestRunnerSwapRequiresDev(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Swap outside dev mode did not panic")
		}
	}()
	NewRunner(RunnerConfig{}).Swap(fixture.FromString("x", nil))
}

// lockedBuffer is a sink shared between the runner's goroutines and the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunnerSwap(t *testing.T) {
	var (
		out    lockedBuffer
		halted = make(chan bool, 2)
	)
	r := NewRunner(RunnerConfig{
		Machine: Config{Sink: &out},
		Dev:     true,
		Trace:   true,
		State: func(m *Machine, k StateKind) {
			if k == HaltState {
				halted <- true
			}
		},
	})
	// In dev mode Run does not return.
	go r.Run(fixture.FromString("one", []byte("one\n")))
	<-halted

	r.Swap(fixture.FromString("two", []byte("two\n")))
	<-halted

	if g, w := out.String(), "one\ntwo\n"; g != w {
		t.Errorf("output %q, want %q", g, w)
	}
	want := []string{
		`0400 <- 74 't' out`,
		`0400 <- 77 'w' out`,
		`0400 <- 6f 'o' out`,
		`0400 <- 0a out`,
		`ffff <- 01 halt`,
	}
	if trace := r.Trace(); strings.Join(trace, "\n") != strings.Join(want, "\n") {
		t.Errorf("trace after swap is\n\t%s\nwant\n\t%s", strings.Join(trace, "\n\t"), strings.Join(want, "\n\t"))
	}
}

func mustLookup(t *testing.T, name string) *fixture.Program {
	t.Helper()
	p, ok := fixture.Lookup(name)
	if !ok {
		t.Fatalf("no built-in program %q", name)
	}
	return p
}
