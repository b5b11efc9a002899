package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Open returns the program named by arg: a built-in program name, a C
// fixture (.c), an Intel HEX image (.ihx, .hex) or a raw binary image.
// For images without their own start address the string is at addr.
func Open(arg string, addr uint16) (*Program, error) {
	if p, ok := Lookup(arg); ok {
		return p, nil
	}
	name := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".c":
		src, err := os.ReadFile(arg)
		if err != nil {
			return nil, err
		}
		return ParseC(name, src)
	case ".ihx", ".hex":
		f, err := os.Open(arg)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ParseIntelHex(name, f, addr)
	case "":
		if _, err := os.Stat(arg); os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: no such program (built-in programs: %s)",
				arg, strings.Join(Names(), ", "))
		}
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, err
	}
	return FromBinary(name, data, addr)
}
