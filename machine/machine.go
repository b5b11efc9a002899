// Package machine implements the host environment for memory-mapped console
// programs: a bus with a character-output register and a halt register.
package machine

import (
	"errors"
	"io"
	"os"

	"github.com/nf/conport/mmio"
)

const (
	OutputAddr = 0x0400 // character-output register
	HaltAddr   = 0xffff // halt register

	SerialControlAddr = 0x0098 // SCON
	SerialBufferAddr  = 0x0099 // SBUF
)

// Config selects the devices and behaviour of a Machine.
type Config struct {
	// Sink receives console output. If nil, os.Stdout is used.
	Sink io.Writer

	// Strict makes writes outside the device registers an error.
	Strict bool

	// Serial maps the serial port at SerialControlAddr.
	Serial bool
}

// Machine is a bus with the console devices mapped on it.
type Machine struct {
	bus *mmio.Bus
	sys System
	con Console
	ser *Serial
}

// New returns a machine in its reset state.
func New(cfg Config) *Machine {
	sink := cfg.Sink
	if sink == nil {
		sink = os.Stdout
	}
	m := &Machine{bus: mmio.NewBus()}
	m.bus.Strict = cfg.Strict
	m.con.sink = sink
	m.mustMap(OutputAddr, 1, &m.con)
	m.mustMap(HaltAddr, 1, &m.sys)
	if cfg.Serial {
		m.ser = &Serial{sink: sink}
		m.mustMap(SerialControlAddr, 2, m.ser)
	}
	return m
}

func (m *Machine) mustMap(addr, n uint16, d mmio.Device) {
	if err := m.bus.Map(addr, n, d); err != nil {
		panic(err)
	}
}

// Bus returns the machine's address space.
func (m *Machine) Bus() *mmio.Bus { return m.bus }

// Read returns the byte at addr.
func (m *Machine) Read(addr uint16) byte { return m.bus.Read(addr) }

// Write performs a store to addr. A write to OutputAddr emits value; a
// write to HaltAddr halts the machine and returns an mmio.HaltError with
// code mmio.Halt. Other addresses are ordinary memory.
func (m *Machine) Write(addr uint16, value byte) error { return m.bus.Write(addr, value) }

// Halt stops the machine from outside; subsequent writes fail with
// mmio.ErrHalted.
func (m *Machine) Halt() { m.bus.Halt() }

// Halted reports whether the machine has stopped, for whatever reason.
func (m *Machine) Halted() bool { return m.bus.Halted() }

// HaltedCleanly reports whether the program wrote the halt register.
func (m *Machine) HaltedCleanly() bool { return m.sys.halted }

// Status returns the value written to the halt register.
func (m *Machine) Status() byte { return m.sys.Status() }

// Emitted returns the number of bytes sent to the sink.
func (m *Machine) Emitted() int {
	n := m.con.Emitted()
	if m.ser != nil {
		n += m.ser.Emitted()
	}
	return n
}

// Serial returns the serial port, or nil if it is not mapped.
func (m *Machine) Serial() *Serial { return m.ser }

// Port returns the machine's console capability.
func (m *Machine) Port() Port { return Port{m} }

// Port is the console capability handed to programs. It is the only place
// that knows which addresses the logical operations live at.
type Port struct {
	m *Machine
}

// Emit writes b to the character-output register.
func (p Port) Emit(b byte) error { return p.m.Write(OutputAddr, b) }

// Halt writes the halt register. A clean halt is reported as nil.
func (p Port) Halt() error {
	err := p.m.Write(HaltAddr, 1)
	var h mmio.HaltError
	if errors.As(err, &h) && h.HaltCode == mmio.Halt {
		return nil
	}
	if err == nil {
		return errors.New("halt register did not stop the machine")
	}
	return err
}
