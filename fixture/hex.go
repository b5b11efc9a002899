package fixture

import (
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"
)

// ParseIntelHex reads a program image in Intel HEX format, as produced by
// SDCC. If the file carries a start address record it gives the address of
// the string; otherwise addr is used.
func ParseIntelHex(name string, r io.Reader, addr uint16) (*Program, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	p := &Program{Name: name, String: addr}
	if start, ok := mem.GetStartAddress(); ok {
		if start > 0xffff {
			return nil, fmt.Errorf("%s: start address %.8x outside 16-bit address space", name, start)
		}
		p.String = uint16(start)
	}
	for _, s := range mem.GetDataSegments() {
		if uint64(s.Address)+uint64(len(s.Data)) > 0x10000 {
			return nil, fmt.Errorf("%s: segment %.8x+%x outside 16-bit address space", name, s.Address, len(s.Data))
		}
		p.Image = append(p.Image, Segment{Addr: uint16(s.Address), Data: s.Data})
	}
	return p, nil
}

// WriteIntelHex writes the program image to w in Intel HEX format, with
// the string address as the start address.
func (p *Program) WriteIntelHex(w io.Writer) error {
	mem := gohex.NewMemory()
	for _, s := range p.Image {
		if err := mem.AddBinary(uint32(s.Addr), s.Data); err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
	}
	mem.SetStartAddress(uint32(p.String))
	return mem.DumpIntelHex(w, 16)
}
