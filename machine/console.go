package machine

import (
	"fmt"
	"io"

	"github.com/nf/conport/mmio"
)

// Console is the character-output register. Every byte written to it is
// emitted to the sink, unframed and in write order.
type Console struct {
	sink io.Writer
	n    int
}

// Emitted returns the number of bytes the console has emitted.
func (c *Console) Emitted() int { return c.n }

func (c *Console) In(uint16) byte { return 0 }

func (c *Console) Out(_ uint16, b byte) {
	emit(c.sink, b)
	c.n++
}

// emit writes b to w and stops execution if w cannot take it.
func emit(w io.Writer, b byte) {
	n, err := w.Write([]byte{b})
	if err == nil && n != 1 {
		err = io.ErrShortWrite
	}
	if err != nil {
		panic(mmio.HaltError{
			HaltCode: mmio.SinkUnavailable,
			Err:      fmt.Errorf("console: %w", err),
		})
	}
}
