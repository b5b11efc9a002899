package machine

import "github.com/nf/conport/mmio"

// System is the halt register. Any write to it stops execution.
type System struct {
	status byte
	halted bool
}

// Status returns the value of the write that halted the machine.
func (s *System) Status() byte { return s.status }

func (s *System) In(uint16) byte { return 0 }

func (s *System) Out(_ uint16, b byte) {
	s.status, s.halted = b, true
	panic(mmio.Halt) // Stop execution.
}
