package machine

import "io"

// Serial is an 8051-style serial port: SCON at offset 0 and SBUF at
// offset 1. A byte written to SBUF is transmitted to the sink and the
// transmit-interrupt flag TI is raised in SCON; software clears it by
// writing SCON.
type Serial struct {
	sink io.Writer
	scon byte
	n    int
}

const serialTI = 1 << 1

// Emitted returns the number of bytes transmitted.
func (s *Serial) Emitted() int { return s.n }

// TI reports whether the transmit-interrupt flag is set.
func (s *Serial) TI() bool { return s.scon&serialTI != 0 }

func (s *Serial) In(p uint16) byte {
	switch p {
	case 0x0: // scon
		return s.scon
	default: // sbuf reads as empty
		return 0
	}
}

func (s *Serial) Out(p uint16, b byte) {
	switch p {
	case 0x0: // scon
		s.scon = b
	case 0x1: // sbuf
		emit(s.sink, b)
		s.n++
		s.scon |= serialTI
	}
}
