package mmio

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

// recorder is a device that remembers every byte written to it and halts
// when offset haltAt is written.
type recorder struct {
	out    []byte
	in     byte
	haltAt int
	fault  error
}

func (r *recorder) In(offset uint16) byte { return r.in + byte(offset) }

func (r *recorder) Out(offset uint16, value byte) {
	if int(offset) == r.haltAt {
		if r.fault != nil {
			panic(HaltError{HaltCode: SinkUnavailable, Err: r.fault})
		}
		panic(Halt)
	}
	r.out = append(r.out, value)
}

func newRecorder() *recorder { return &recorder{haltAt: -1} }

func TestMap(t *testing.T) {
	for _, c := range []struct {
		start, length uint16
		ok            bool
	}{
		{0x0401, 1, true},
		{0xffff, 1, true},
		{0x0000, 0x10, true},
		{0x03ff, 2, false}, // overlaps 0x0400
		{0x0400, 1, false},
		{0x0401, 0, false},
		{0xfff0, 0x20, false},
		{0xfff0, 0x0f, true},
	} {
		t.Run(fmt.Sprintf("%.4x+%x", c.start, c.length), func(t *testing.T) {
			b := NewBus()
			if err := b.Map(0x0400, 1, newRecorder()); err != nil {
				t.Fatal(err)
			}
			err := b.Map(c.start, c.length, newRecorder())
			if (err == nil) != c.ok {
				t.Errorf("Map(%.4x, %x) error = %v, want ok %v", c.start, c.length, err, c.ok)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	c := newWriteTestCase
	for i, c := range []*writeTestCase{
		c().write(0x0000, 0x42).want().mem(0x0000, 0x42),
		c().write(0x1234, 1).write(0x1235, 2).want().mem(0x1234, 1, 2),
		c().write(0x0400, 'A').write(0x0400, 'B').want().out('A', 'B'),
		c().write(0x0401, 'x').want().mem(0x0401, 'x'),
		c().halt(0).write(0x0400, 'A').want().
			error(HaltError{HaltCode: Halt, Addr: 0x0400, Value: 'A'}),
		c().halt(0).write(0x0400, 'A').write(0x0400, 'B').write(0x0000, 1).want().
			error(ErrHalted),
		c().strict().write(0x0000, 1).want().
			error(HaltError{HaltCode: InvalidAddress, Addr: 0x0000, Value: 1}),
		c().strict().write(0x0000, 1).write(0x0400, 'A').want().
			error(ErrHalted),
	} {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			var err error
			for _, w := range c.writes {
				err = c.b.Write(w.addr, w.value)
			}
			if err != c.err {
				t.Fatalf("got error %v, want %v", err, c.err)
			}
			if g, w := string(c.dev.out), string(c.w.dev); g != w {
				t.Errorf("device received %q, want %q", g, w)
			}
			for addr, w := range c.w.mem {
				if g := c.b.Mem[addr]; g != w {
					t.Errorf("Mem[%.4x] = %.2x, want %.2x", addr, g, w)
				}
			}
		})
	}
}

type writeTestCase struct {
	b      *Bus
	dev    *recorder
	writes []write
	err    error
	w      struct {
		dev []byte
		mem map[uint16]byte
	}
	wanting bool
}

type write struct {
	addr  uint16
	value byte
}

func newWriteTestCase() *writeTestCase {
	c := &writeTestCase{b: NewBus(), dev: newRecorder()}
	if err := c.b.Map(0x0400, 1, c.dev); err != nil {
		panic(err)
	}
	c.w.mem = map[uint16]byte{}
	return c
}

func (c *writeTestCase) halt(offset int) *writeTestCase {
	c.dev.haltAt = offset
	return c
}

func (c *writeTestCase) strict() *writeTestCase {
	c.b.Strict = true
	return c
}

func (c *writeTestCase) write(addr uint16, value byte) *writeTestCase {
	c.writes = append(c.writes, write{addr, value})
	return c
}

func (c *writeTestCase) want() *writeTestCase {
	c.wanting = true
	return c
}

func (c *writeTestCase) mem(addr uint16, bytes ...byte) *writeTestCase {
	for i, b := range bytes {
		c.w.mem[addr+uint16(i)] = b
	}
	return c
}

func (c *writeTestCase) out(bytes ...byte) *writeTestCase {
	c.w.dev = append(c.w.dev, bytes...)
	return c
}

func (c *writeTestCase) error(err error) *writeTestCase {
	c.err = err
	return c
}

func TestWriteSinkFault(t *testing.T) {
	b := NewBus()
	dev := newRecorder()
	dev.haltAt = 0
	dev.fault = io.ErrClosedPipe
	if err := b.Map(0x0400, 1, dev); err != nil {
		t.Fatal(err)
	}
	err := b.Write(0x0400, 'A')
	var h HaltError
	if !errors.As(err, &h) {
		t.Fatalf("Write returned %v, want HaltError", err)
	}
	if h.HaltCode != SinkUnavailable || h.Addr != 0x0400 || h.Value != 'A' {
		t.Errorf("got %+v, want SinkUnavailable at 0400 writing 41", h)
	}
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("error %v does not wrap %v", err, io.ErrClosedPipe)
	}
	if !b.Halted() {
		t.Error("bus not halted after sink fault")
	}
}

func TestObserveSkipsSinkFault(t *testing.T) {
	b := NewBus()
	dev := newRecorder()
	dev.haltAt = 1
	dev.fault = io.ErrClosedPipe
	if err := b.Map(0x0400, 2, dev); err != nil {
		t.Fatal(err)
	}
	var got []write
	b.Observe = func(addr uint16, value byte) { got = append(got, write{addr, value}) }

	b.Write(0x0400, 'A')
	b.Write(0x0401, 'B') // sink fails; the byte never reached it

	if len(got) != 1 || got[0] != (write{0x0400, 'A'}) {
		t.Errorf("observed %v, want [{0400 A}]", got)
	}
}

func TestObserve(t *testing.T) {
	b := NewBus()
	dev := newRecorder()
	dev.haltAt = 0
	if err := b.Map(0xffff, 1, dev); err != nil {
		t.Fatal(err)
	}
	var got []write
	b.Observe = func(addr uint16, value byte) { got = append(got, write{addr, value}) }

	b.Write(0x0010, 1)
	b.Write(0x0011, 2)
	b.Write(0xffff, 3)
	b.Write(0x0012, 4) // after halt; not observed

	want := []write{{0x0010, 1}, {0x0011, 2}, {0xffff, 3}}
	if len(got) != len(want) {
		t.Fatalf("observed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d = %v, want %v", i, got[i], want[i])
		}
	}
	if b.Mem[0x0012] != 0 {
		t.Errorf("Mem[0012] = %.2x after halt, want 00", b.Mem[0x0012])
	}
}

func TestRead(t *testing.T) {
	b := NewBus()
	dev := newRecorder()
	dev.in = 0x10
	if err := b.Map(0x0098, 2, dev); err != nil {
		t.Fatal(err)
	}
	b.Mem[0x0097] = 0x77
	for addr, want := range map[uint16]byte{
		0x0097: 0x77,
		0x0098: 0x10,
		0x0099: 0x11,
		0x009a: 0x00,
	} {
		if got := b.Read(addr); got != want {
			t.Errorf("Read(%.4x) = %.2x, want %.2x", addr, got, want)
		}
	}
}

func TestLoad(t *testing.T) {
	b := NewBus()
	if err := b.Load(0xfffe, []byte{1, 2}); err != nil {
		t.Errorf("Load at end of memory: %v", err)
	}
	if err := b.Load(0xffff, []byte{1, 2}); err == nil {
		t.Error("Load past end of memory succeeded")
	}
}

func TestHostHalt(t *testing.T) {
	b := NewBus()
	b.Halt()
	if err := b.Write(0, 1); err != ErrHalted {
		t.Errorf("Write after Halt returned %v, want %v", err, ErrHalted)
	}
}
