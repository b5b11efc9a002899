package main

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/howeyc/fsnotify"

	"github.com/nf/conport/fixture"
	"github.com/nf/conport/machine"
)

// devMode runs the program in file and runs it again, on a fresh machine,
// whenever the file changes.
func devMode(cfg machine.RunnerConfig, debug bool, file string, addr uint16) error {
	file = filepath.Clean(file)
	if _, err := os.Stat(file); err != nil {
		if _, ok := fixture.Lookup(file); ok {
			return errors.New("dev: built-in programs cannot be watched; give a program file")
		}
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(filepath.Dir(file)); err != nil {
		return err
	}

	cfg.Dev = true
	var d *debugger
	if debug {
		d = newDebugger()
		cfg.State = d.StateFunc
		cfg.Trace = true
	}
	runner := machine.NewRunner(cfg)

	var (
		progCh = make(chan *fixture.Program)
		rerun  = make(chan bool)
	)
	if d != nil {
		d.run = runner
		d.rerun = func() { rerun <- true }
		log.SetPrefix("")
		log.SetOutput(d.log)
		go func() {
			if err := d.Run(); err != nil {
				log.Fatalf("debug: %v", err)
			}
			log.SetOutput(os.Stderr)
			log.SetPrefix("conport: ")
			os.Exit(0)
		}()
	}

	go func() {
		started := false
		run := time.After(1 * time.Millisecond)
		for {
			select {
			case <-run:
				log.Printf("dev: load %s", filepath.Base(file))
				prog, err := fixture.Open(file, addr)
				if err != nil {
					log.Printf("dev: %v", err)
					break
				}
				if d != nil {
					d.setString(prog.String)
				}
				if !started {
					log.Printf("dev: start")
					progCh <- prog
					started = true
				} else {
					log.Printf("dev: reset")
					runner.Swap(prog)
				}
			case <-rerun:
				run = time.After(1 * time.Millisecond)
			case ev := <-watcher.Event:
				if filepath.Clean(ev.Name) == file && !ev.IsAttrib() {
					run = time.After(100 * time.Millisecond)
				}
			case err := <-watcher.Error:
				log.Printf("dev: watcher: %v", err)
			}
		}
	}()
	runner.Run(<-progCh)
	return nil
}
