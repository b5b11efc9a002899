package fixture

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
)

// DefaultStringAddr is where FromString places its string.
const DefaultStringAddr = 0x0100

// Program is a memory image with the address of the string it prints.
type Program struct {
	Name   string
	Image  []Segment
	String uint16
}

// Segment is a contiguous run of image bytes.
type Segment struct {
	Addr uint16
	Data []byte
}

// Run prints the program's string to p and shuts down.
func (p *Program) Run(mem Memory, port Port) error {
	if err := PutsAt(mem, port, p.String); err != nil {
		return err
	}
	return Shutdown(port)
}

// Loader accepts image segments.
type Loader interface {
	Load(addr uint16, data []byte) error
}

// LoadInto copies the program image into l.
func (p *Program) LoadInto(l Loader) error {
	for _, s := range p.Image {
		if err := l.Load(s.Addr, s.Data); err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
	}
	return nil
}

// FromString returns a program that prints s, stored NUL-terminated at
// DefaultStringAddr.
func FromString(name string, s []byte) *Program {
	data := make([]byte, len(s)+1)
	copy(data, s)
	return &Program{
		Name:   name,
		Image:  []Segment{{Addr: DefaultStringAddr, Data: data}},
		String: DefaultStringAddr,
	}
}

// FromBinary returns a program whose image is data loaded at address zero,
// printing the string at addr.
func FromBinary(name string, data []byte, addr uint16) (*Program, error) {
	if len(data) > 0x10000 {
		return nil, fmt.Errorf("%s: image is %d bytes, larger than the address space", name, len(data))
	}
	if int(addr) >= len(data) {
		return nil, fmt.Errorf("%s: string address %.4x outside %d byte image", name, addr, len(data))
	}
	return &Program{
		Name:   name,
		Image:  []Segment{{Addr: 0, Data: data}},
		String: addr,
	}, nil
}

//go:embed c/*.c
var sources embed.FS

var builtin = map[string]*Program{}

func init() {
	des, err := sources.ReadDir("c")
	if err != nil {
		panic(err)
	}
	for _, de := range des {
		src, err := sources.ReadFile(path.Join("c", de.Name()))
		if err != nil {
			panic(err)
		}
		name := strings.TrimSuffix(de.Name(), ".c")
		p, err := ParseC(name, src)
		if err != nil {
			panic(err)
		}
		builtin[name] = p
	}
}

// Lookup returns the built-in program with the given name.
func Lookup(name string) (*Program, bool) {
	p, ok := builtin[name]
	return p, ok
}

// Names returns the names of the built-in programs in order.
func Names() []string {
	var names []string
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
