// mdvm CLI - loads and executes machine-dialect bytecode.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tliron/commonlog"

	"github.com/machine-dialect/mdvm/host"
	"github.com/machine-dialect/mdvm/loader"
	"github.com/machine-dialect/mdvm/manifest"
	"github.com/machine-dialect/mdvm/profile"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("mdvm")

func main() {
	debug := flag.Bool("d", false, "Enable debug tracing")
	verbose := flag.Bool("v", false, "Verbose logging")
	disasm := flag.Bool("disasm", false, "Disassemble the module instead of running it")
	info := flag.Bool("info", false, "Print a module summary instead of running it")
	configDir := flag.String("config", "", "Directory containing mdvm.toml (default: search upward from cwd)")
	profileDB := flag.String("profile-db", "", "Record the run in this SQLite database")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mdvm [options] <program[.mdbc]>\n\n")
		fmt.Fprintf(os.Stderr, "Executes a compiled machine-dialect bytecode file. A sibling .mdbm\n")
		fmt.Fprintf(os.Stderr, "metadata file is picked up automatically when present.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mdvm program.mdbc           # Run a program\n")
		fmt.Fprintf(os.Stderr, "  mdvm -d program             # Run with instruction tracing\n")
		fmt.Fprintf(os.Stderr, "  mdvm -disasm program.mdbc   # Print a listing\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := loadConfig(*configDir)
	if *debug {
		cfg.VM.Debug = true
	}
	if *profileDB != "" {
		cfg.Profile.Database = *profileDB
	}

	if *disasm || *info {
		mod, _, err := loader.LoadModule(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *disasm {
			fmt.Print(loader.Disassemble(mod))
		} else {
			fmt.Print(loader.Summary(mod))
		}
		return
	}

	os.Exit(run(path, cfg))
}

// loadConfig resolves the mdvm.toml manifest.
func loadConfig(dir string) *manifest.Manifest {
	if dir != "" {
		cfg, err := manifest.Load(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}

	cwd, err := os.Getwd()
	if err != nil {
		return manifest.Default()
	}
	cfg, err := manifest.FindAndLoad(cwd)
	if err != nil {
		log.Warningf("ignoring manifest: %v", err)
		return manifest.Default()
	}
	return cfg
}

// run executes one program and returns the process exit code.
func run(path string, cfg *manifest.Manifest) int {
	machine := host.New()
	machine.SetDebug(cfg.VM.Debug)
	machine.SetMaxCallDepth(cfg.VM.MaxCallDepth)

	if err := machine.LoadBytecode(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log.Infof("loaded %s", path)

	start := time.Now()
	result, err := machine.Execute()
	elapsed := time.Since(start)

	record := profile.RunRecord{
		Module:       path,
		Instructions: machine.InstructionCount(),
		Duration:     elapsed,
	}

	exitCode := 0
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, frame := range machine.StackTrace() {
			fmt.Fprintf(os.Stderr, "  at %s\n", frame)
		}
		record.Error = err.Error()
		exitCode = 1
	} else if result != nil {
		fmt.Println(result)
		record.Result = fmt.Sprint(result)
	}

	log.Infof("executed %d instructions in %s", machine.InstructionCount(), elapsed)

	if cfg.Profile.Database != "" {
		if err := recordRun(cfg.Profile.Database, record); err != nil {
			log.Warningf("profile store: %v", err)
		}
	}

	return exitCode
}

func recordRun(dbPath string, record profile.RunRecord) error {
	store, err := profile.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.Record(record)
	return err
}
