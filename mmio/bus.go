// Package mmio provides a 16-bit address space, called Bus, in which devices
// can be mapped so that loads and stores at their addresses become I/O.
package mmio

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Bus is a 64K address space backed by RAM. Accesses that fall inside a
// device Mapping are routed to that device instead of memory.
type Bus struct {
	Mem [0x10000]byte

	// Strict makes writes to unmapped addresses fail with InvalidAddress
	// instead of storing to Mem.
	Strict bool

	// Observe, if set, is called after every write that reached memory or
	// a device, in the order the writes occurred. A write the device
	// rejected with a fault is not observed.
	Observe func(addr uint16, value byte)

	maps   []Mapping
	halted atomic.Bool
}

// Device provides access to a peripheral mapped on the Bus.
// The offset passed to In and Out is relative to the start of the mapping.
//
// A device stops execution by panicking with a HaltCode or a HaltError;
// the Bus recovers it and reports it from Write.
type Device interface {
	In(offset uint16) (value byte)
	Out(offset uint16, value byte)
}

// Mapping is a window of the address space owned by a device.
type Mapping struct {
	Start  uint16
	Length uint16
	Device Device
}

func (m Mapping) contains(addr uint16) bool {
	return addr >= m.Start && uint32(addr) < uint32(m.Start)+uint32(m.Length)
}

// NewBus returns an empty Bus with no devices mapped.
func NewBus() *Bus { return &Bus{} }

// Map maps dev at length bytes starting at start.
func (b *Bus) Map(start, length uint16, dev Device) error {
	if length == 0 {
		return fmt.Errorf("map %.4x: zero length", start)
	}
	if uint32(start)+uint32(length) > 0x10000 {
		return fmt.Errorf("map %.4x+%.4x: beyond end of address space", start, length)
	}
	n := Mapping{Start: start, Length: length, Device: dev}
	for _, m := range b.maps {
		if m.contains(n.Start) || n.contains(m.Start) {
			return fmt.Errorf("map %.4x+%.4x: overlaps %.4x+%.4x", start, length, m.Start, m.Length)
		}
	}
	b.maps = append(b.maps, n)
	return nil
}

// Load copies data into memory at addr.
func (b *Bus) Load(addr uint16, data []byte) error {
	if int(addr)+len(data) > len(b.Mem) {
		return fmt.Errorf("load %d bytes at %.4x: image too large", len(data), addr)
	}
	copy(b.Mem[addr:], data)
	return nil
}

func (b *Bus) mapping(addr uint16) (Mapping, bool) {
	for _, m := range b.maps {
		if m.contains(addr) {
			return m, true
		}
	}
	return Mapping{}, false
}

// Read returns the byte at addr.
func (b *Bus) Read(addr uint16) byte {
	if m, ok := b.mapping(addr); ok {
		return m.Device.In(addr - m.Start)
	}
	return b.Mem[addr]
}

// ErrHalted is returned by Write once the Bus has halted.
var ErrHalted = errors.New("bus halted")

// Write stores value at addr. It returns ErrHalted if the bus was halted
// earlier, and a HaltError if this write stopped execution. After a
// HaltError the bus is halted and no further writes are observed.
func (b *Bus) Write(addr uint16, value byte) (err error) {
	if b.halted.Load() {
		return ErrHalted
	}
	m, ok := b.mapping(addr)
	if !ok {
		if b.Strict {
			b.halted.Store(true)
			return HaltError{HaltCode: InvalidAddress, Addr: addr, Value: value}
		}
		b.Mem[addr] = value
		b.observe(addr, value)
		return nil
	}
	defer func() {
		if e := recover(); e != nil {
			var h HaltError
			switch e := e.(type) {
			case HaltCode:
				h = HaltError{HaltCode: e}
			case HaltError:
				h = e
			default:
				panic(e)
			}
			h.Addr, h.Value = addr, value
			b.halted.Store(true)
			if h.HaltCode == Halt {
				b.observe(addr, value)
			}
			err = h
		}
	}()
	m.Device.Out(addr-m.Start, value)
	b.observe(addr, value)
	return nil
}

func (b *Bus) observe(addr uint16, value byte) {
	if f := b.Observe; f != nil {
		f(addr, value)
	}
}

// Halt stops the bus from the host side. It is safe to call concurrently
// with Write; writes already in progress complete.
func (b *Bus) Halt() { b.halted.Store(true) }

// Halted reports whether the bus has halted.
func (b *Bus) Halted() bool { return b.halted.Load() }

// HaltError is returned by Write if the write halted execution.
type HaltError struct {
	HaltCode
	Addr  uint16
	Value byte
	Err   error // cause, if any
}

func (e HaltError) Error() string {
	s := fmt.Sprintf("%s writing %.2x to %.4x", e.HaltCode, e.Value, e.Addr)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e HaltError) Unwrap() error { return e.Err }

// HaltCode signifies the type of condition that halted execution.
type HaltCode byte

const (
	Halt            HaltCode = 0x00
	SinkUnavailable HaltCode = 0x01
	InvalidAddress  HaltCode = 0x02
)

func (c HaltCode) String() string {
	if s, ok := map[HaltCode]string{
		Halt:            "halt",
		SinkUnavailable: "output sink unavailable",
		InvalidAddress:  "invalid address",
	}[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%.2x)", byte(c))
}
