package machine

import (
	"fmt"
	"log"
)

// backlog keeps the most recent writes so they can be logged when a run
// ends in a fault.
type backlog struct {
	entries []access
	n       int
}

type access struct {
	addr  uint16
	value byte
}

func (a access) String() string {
	var reg string
	switch a.addr {
	case OutputAddr:
		reg = " out"
	case HaltAddr:
		reg = " halt"
	case SerialControlAddr:
		reg = " scon"
	case SerialBufferAddr:
		reg = " sbuf"
	}
	if a.value >= 0x20 && a.value < 0x7f {
		return fmt.Sprintf("%.4x <- %.2x %q%s", a.addr, a.value, rune(a.value), reg)
	}
	return fmt.Sprintf("%.4x <- %.2x%s", a.addr, a.value, reg)
}

const maxBacklog = 100

func (b *backlog) Add(addr uint16, value byte) {
	e := access{addr, value}
	if b.n < len(b.entries) {
		b.entries[b.n] = e
	} else {
		b.entries = append(b.entries, e)
	}
	b.n = (b.n + 1) % maxBacklog
}

// Entries returns the retained writes, oldest first.
func (b *backlog) Entries() []access {
	if len(b.entries) < maxBacklog {
		return append([]access(nil), b.entries...)
	}
	out := make([]access, 0, len(b.entries))
	out = append(out, b.entries[b.n:]...)
	return append(out, b.entries[:b.n]...)
}

func (b *backlog) Emit() {
	for _, e := range b.Entries() {
		log.Print(e)
	}
}

func (b *backlog) Reset() {
	b.entries = b.entries[:0]
	b.n = 0
}
