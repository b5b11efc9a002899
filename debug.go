package main

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nf/conport/machine"
)

type debugger struct {
	run   *machine.Runner
	rerun func()

	log   *tview.TextView
	watch *tview.TextView
	state *tview.TextView
	input *tview.InputField
	cols  *tview.Flex
	rows  *tview.Flex
	app   *tview.Application

	mu      sync.Mutex
	str     uint16 // address of the running program's string
	watches []watch
}

type watch struct {
	label string
	addr  uint16
}

// registers names the device registers for the watch command.
var registers = map[string]uint16{
	"out":  machine.OutputAddr,
	"halt": machine.HaltAddr,
	"scon": machine.SerialControlAddr,
	"sbuf": machine.SerialBufferAddr,
}

func (d *debugger) setString(addr uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.str = addr
}

// resolve turns a register name, "string", or a number into an address.
func (d *debugger) resolve(arg string) (watch, bool) {
	if a, ok := registers[arg]; ok {
		return watch{arg, a}, true
	}
	if arg == "string" {
		d.mu.Lock()
		defer d.mu.Unlock()
		return watch{arg, d.str}, true
	}
	v, err := strconv.ParseUint(arg, 16, 16)
	if err != nil {
		return watch{}, false
	}
	return watch{fmt.Sprintf("%.4x", v), uint16(v)}, true
}

func withPrefix(prefix string) (names []string) {
	for n := range registers {
		if strings.HasPrefix(n, prefix) {
			names = append(names, n)
		}
	}
	if strings.HasPrefix("string", prefix) {
		names = append(names, "string")
	}
	sort.Strings(names)
	return names
}

func newDebugger() *debugger {
	d := &debugger{
		log: tview.NewTextView().
			SetMaxLines(1000),
		watch: tview.NewTextView().
			SetWrap(false).
			SetTextAlign(tview.AlignRight),
		state: tview.NewTextView().
			SetWrap(false),
		input: tview.NewInputField(),
		cols:  tview.NewFlex(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		app: tview.NewApplication(),
	}
	d.log.SetChangedFunc(func() { d.app.Draw() })
	d.watch.SetBackgroundColor(tcell.ColorDarkBlue)
	d.state.SetBackgroundColor(tcell.ColorDarkGrey)
	d.cols.
		AddItem(d.watch, 0, 1, false).
		AddItem(d.log, 0, 2, false)
	d.rows.
		AddItem(d.cols, 0, 1, false).
		AddItem(d.state, 2, 0, false).
		AddItem(d.input, 1, 0, true)
	d.app.SetRoot(d.rows, true)

	d.input.SetAutocompleteFunc(func(t string) (entries []string) {
		if cmd, arg, ok := strings.Cut(t, " "); ok {
			switch cmd {
			case "w", "watch", "u", "unwatch":
				for _, n := range withPrefix(arg) {
					entries = append(entries, cmd+" "+n)
				}
			}
		}
		return
	})
	d.input.SetAutocompletedFunc(func(t string, index, src int) bool {
		if src != tview.AutocompletedNavigate {
			d.input.SetText(t)
		}
		return src == tview.AutocompletedEnter || src == tview.AutocompletedClick
	})
	d.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		cmd := d.input.GetText()
		if cmd == "" {
			return
		}
		d.input.SetText("")
		switch cmd {
		case "exit", "q", "quit":
			d.app.Stop()
			return
		case "r", "run":
			log.Print("rerun")
			go d.rerun()
			return
		case "t", "trace":
			for _, l := range d.run.Trace() {
				log.Print(l)
			}
			return
		}
		if cmd, arg, ok := strings.Cut(cmd, " "); ok {
			switch cmd {
			case "w", "watch":
				w, ok := d.resolve(arg)
				if !ok {
					log.Printf("invalid address %q", arg)
					return
				}
				d.mu.Lock()
				d.watches = append(d.watches, w)
				d.mu.Unlock()
				log.Printf("watching %s [%.4x]", w.label, w.addr)
				return
			case "u", "unwatch":
				d.mu.Lock()
				ws := d.watches[:0]
				for _, w := range d.watches {
					if w.label != arg {
						ws = append(ws, w)
					}
				}
				d.watches = ws
				d.mu.Unlock()
				log.Printf("unwatched %s", arg)
				return
			}
		}
		log.Printf("unknown command %q (try run, trace, watch <addr>, unwatch <addr>, exit)", cmd)
	})
	return d
}

func (d *debugger) Run() error { return d.app.Run() }

func (d *debugger) StateFunc(m *machine.Machine, k machine.StateKind) {
	var (
		watch = d.watchContent(m)
		state = d.stateMsg(m, k)
	)
	d.app.QueueUpdateDraw(func() {
		switch k {
		case machine.ClearState, machine.WriteState:
			d.state.SetTextColor(tcell.ColorBlack)
			d.state.SetBackgroundColor(tcell.ColorDarkGrey)
		case machine.HaltState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case machine.FaultState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkRed)
		}
		d.watch.SetText(watch)
		d.state.SetText(state)
	})
}

func (d *debugger) stateMsg(m *machine.Machine, k machine.StateKind) string {
	kind := "[run] "
	switch k {
	case machine.HaltState:
		kind = "[halt]"
	case machine.FaultState:
		kind = "[FAULT]"
	}
	var last string
	if t := d.run.Trace(); len(t) > 0 && k != machine.ClearState {
		last = t[len(t)-1]
	}
	return fmt.Sprintf("%s emitted %d\n%s", kind, m.Emitted(), last)
}

func (d *debugger) watchContent(m *machine.Machine) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	for _, w := range d.watches {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		v := m.Read(w.addr)
		fmt.Fprintf(&b, "%s [%.4x] %.2x", w.label, w.addr, v)
		if v >= 0x20 && v < 0x7f {
			fmt.Fprintf(&b, " %q", rune(v))
		}
	}
	return b.String()
}
