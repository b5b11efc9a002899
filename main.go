// Command conport runs programs that print through a memory-mapped
// console: bytes written to 0x0400 are output, a write to 0xffff halts.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/nf/conport/fixture"
	"github.com/nf/conport/machine"
)

func main() {
	log.SetPrefix("conport: ")
	log.SetFlags(0)

	var (
		guiFlag    = flag.Bool("gui", false, "also show output in a window")
		devFlag    = flag.Bool("dev", false, "enable developer mode (re-run the program when its file changes)")
		debugFlag  = flag.Bool("debug", false, "enable debugger (implies -dev)")
		strictFlag = flag.Bool("strict", false, "treat writes outside the device registers as errors")
		serialFlag = flag.Bool("serial", false, "map the serial port (SCON 0x98, SBUF 0x99)")
		traceFlag  = flag.Bool("trace", false, "log the most recent writes when a program faults")
		addrFlag   = flag.String("addr", "0x0100", "string `address` for images without a start address")
		hexFlag    = flag.String("hex", "", "write the program image as Intel HEX to `file` and exit")
		listFlag   = flag.Bool("list", false, "list the built-in programs and exit")

		cpuProfileFlag = flag.String("cpu_profile", "", "write CPU profile to `file`")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <program | program.c | program.ihx | program.bin>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [flags] <-dev | -debug> <program file>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -list\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	if *listFlag {
		fmt.Println(strings.Join(fixture.Names(), "\n"))
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
	}
	addr, err := strconv.ParseUint(*addrFlag, 0, 16)
	if err != nil {
		log.Fatalf("bad -addr: %v", err)
	}

	cfg := machine.RunnerConfig{
		Machine: machine.Config{
			Strict: *strictFlag,
			Serial: *serialFlag,
		},
		GUI:   *guiFlag,
		Trace: *traceFlag,
	}

	if *hexFlag != "" {
		if err := writeHex(flag.Arg(0), uint16(addr), *hexFlag); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *devFlag || *debugFlag {
		if *debugFlag && !term.IsTerminal(int(os.Stdin.Fd())) {
			log.Fatal("debugger needs a terminal")
		}
		if err := devMode(cfg, *debugFlag, flag.Arg(0), uint16(addr)); err != nil {
			log.Fatal(err)
		}
		return
	}

	var cpuProfile io.Closer
	if prof := *cpuProfileFlag; prof != "" {
		f, err := startCPUProfile(prof)
		if err != nil {
			log.Fatal(err)
		}
		cpuProfile = f
	}

	code, err := run(cfg, flag.Arg(0), uint16(addr))

	if f := cpuProfile; f != nil {
		pprof.StopCPUProfile()
		f.Close()
	}

	if err != nil {
		log.Fatal(err)
	}
	os.Exit(code)
}

func startCPUProfile(file string) (io.Closer, error) {
	f, err := os.Create(file)
	if err != nil {
		return nil, fmt.Errorf("creating CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("starting CPU profile: %w", err)
	}
	return f, nil
}

func run(cfg machine.RunnerConfig, arg string, addr uint16) (int, error) {
	prog, err := fixture.Open(arg, addr)
	if err != nil {
		return 0, err
	}
	r := machine.NewRunner(cfg)
	return r.Run(prog), nil
}

func writeHex(arg string, addr uint16, file string) error {
	prog, err := fixture.Open(arg, addr)
	if err != nil {
		return err
	}
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	if err := prog.WriteIntelHex(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
