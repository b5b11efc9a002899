package machine

import (
	"errors"
	"io"
	"log"
	"os"
	"sync"

	"github.com/nf/conport/fixture"
	"github.com/nf/conport/mmio"
)

// ErrNoHalt is reported when a program returns without writing the halt
// register.
var ErrNoHalt = errors.New("program finished without halting")

// StateKind describes why a StateFunc is being called.
type StateKind int

const (
	ClearState StateKind = iota // a fresh machine was started
	WriteState                  // a write reached the bus
	HaltState                   // the program halted cleanly
	FaultState                  // the run ended with an error
)

func (k StateKind) String() string {
	switch k {
	case ClearState:
		return "clear"
	case WriteState:
		return "write"
	case HaltState:
		return "halt"
	case FaultState:
		return "fault"
	}
	return "unknown"
}

// StateFunc is called from the program's goroutine as it runs.
type StateFunc func(m *Machine, k StateKind)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Machine Config

	GUI   bool // show output in a window as well as the sink
	Dev   bool // keep running after the program ends, permit Swap
	Trace bool // log recent writes when a run faults

	State StateFunc
}

// Runner executes programs on fresh machines.
type Runner struct {
	cfg    RunnerConfig
	screen *Screen

	swap     chan *fixture.Program
	swapDone chan bool

	mu   sync.Mutex
	logs backlog
}

// NewRunner returns a Runner with the given configuration.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		cfg:      cfg,
		swap:     make(chan *fixture.Program),
		swapDone: make(chan bool),
	}
	if cfg.GUI {
		r.screen = NewScreen(screenCols, screenRows)
	}
	return r
}

// Swap stops the running program and starts p on a fresh machine.
// It may only be used in dev mode.
func (r *Runner) Swap(p *fixture.Program) {
	if !r.cfg.Dev {
		panic("Swap called while not running in dev mode")
	}
	r.swap <- p
	<-r.swapDone
}

// Run executes p and returns its exit code: 0 if it halted cleanly,
// 1 otherwise. In dev mode Run does not return until the GUI is closed,
// or forever if there is no GUI.
func (r *Runner) Run(p *fixture.Program) (exitCode int) {
	var (
		exit  = make(chan bool)
		title = p.Name
	)
	go func() {
		var (
			execErr = make(chan error)
			m       = r.newMachine()
			running = true
		)
		go func() { execErr <- r.exec(m, p) }()
		for {
			select {
			case np := <-r.swap:
				if running {
					m.Halt()
					<-execErr
				}
				m, p = r.newMachine(), np
				running = true
				go func() { execErr <- r.exec(m, p) }()
				r.swapDone <- true
			case err := <-execErr:
				running = false
				if err != nil {
					log.Printf("%s: %v", p.Name, err)
					exitCode = 1
				} else {
					exitCode = 0
				}
				if !r.cfg.Dev {
					close(exit)
					return
				}
			}
		}
	}()
	if r.cfg.GUI {
		g := &gui{scr: r.screen, title: title}
		if err := g.Run(exit); err != nil {
			log.Fatalf("gui: %v", err)
		}
		if r.cfg.Dev {
			return 0
		}
	}
	<-exit
	return exitCode
}

func (r *Runner) newMachine() *Machine {
	cfg := r.cfg.Machine
	if r.screen != nil {
		r.screen.Clear()
		sink := cfg.Sink
		if sink == nil {
			sink = os.Stdout
		}
		cfg.Sink = io.MultiWriter(sink, r.screen)
	}
	m := New(cfg)
	r.mu.Lock()
	r.logs.Reset()
	r.mu.Unlock()
	m.bus.Observe = func(addr uint16, value byte) {
		if r.cfg.Trace {
			r.mu.Lock()
			r.logs.Add(addr, value)
			r.mu.Unlock()
		}
		r.state(m, WriteState)
	}
	return m
}

// exec loads p into m and runs it to completion.
func (r *Runner) exec(m *Machine, p *fixture.Program) error {
	r.state(m, ClearState)
	err := p.LoadInto(m.Bus())
	if err == nil {
		err = p.Run(m, m.Port())
	}
	if err == nil && !m.HaltedCleanly() {
		err = ErrNoHalt
	}
	if errors.Is(err, mmio.ErrHalted) && !m.HaltedCleanly() {
		// Stopped by Swap.
		return err
	}
	if err != nil {
		if r.cfg.Trace {
			r.mu.Lock()
			r.logs.Emit()
			r.mu.Unlock()
		}
		r.state(m, FaultState)
		return err
	}
	r.state(m, HaltState)
	return nil
}

func (r *Runner) state(m *Machine, k StateKind) {
	if f := r.cfg.State; f != nil {
		f(m, k)
	}
}

// Trace returns the most recent writes, oldest first, formatted for
// display. It is empty unless tracing is enabled.
func (r *Runner) Trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.logs.Entries() {
		out = append(out, e.String())
	}
	return out
}
