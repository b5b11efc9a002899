// Package fixture holds the console test programs and the driver logic
// they share: print a NUL-terminated string, then shut the machine down.
package fixture

// Port is the console capability a program writes to.
type Port interface {
	Emit(b byte) error
	Halt() error
}

// Memory is the address space a program reads its string from.
type Memory interface {
	Read(addr uint16) byte
}

// Puts emits the bytes of s up to, but not including, the first NUL.
// It stops at the first error.
func Puts(p Port, s []byte) error {
	for _, c := range s {
		if c == 0 {
			break
		}
		if err := p.Emit(c); err != nil {
			return err
		}
	}
	return nil
}

// PutsAt emits the NUL-terminated string at addr in mem.
// A string with no terminator stops after 64K bytes.
func PutsAt(mem Memory, p Port, addr uint16) error {
	for n := 0; n < 0x10000; n++ {
		c := mem.Read(addr)
		if c == 0 {
			break
		}
		if err := p.Emit(c); err != nil {
			return err
		}
		addr++
	}
	return nil
}

// Shutdown signals the end of the program.
func Shutdown(p Port) error { return p.Halt() }
