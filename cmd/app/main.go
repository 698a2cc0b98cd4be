package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"lode/internal/loader"
	"lode/internal/repl"
	"lode/internal/store"
	"lode/internal/unit"
	"lode/internal/util"
)

const DefaultRootPath = "."

var (
	// Version is the current version of the lode binary, set at build time.
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"
	help      bool
	version   bool
	// logging
	logLevel string
	logFile  string
	// loader config
	rootPath   string
	storeDSN   string
	configFile string
	importName string
	trace      bool
)

func init() {
	flag.BoolVar(&help, "help", false, "Display help information and exit")
	flag.BoolVar(&help, "h", false, "Display help information and exit")
	flag.BoolVar(&version, "version", false, "Display version information and exit")
	flag.BoolVar(&version, "v", false, "Display version information and exit")
	// loader config
	flag.StringVar(&rootPath, "root", DefaultRootPath, "Set the root directory units resolve against")
	flag.StringVar(&storeDSN, "store", "", "Serve unit source from a database (sqlite3:, mysql: or postgres: DSN) instead of the filesystem")
	flag.StringVar(&configFile, "config", "", "Read settings from a TOML config file")
	flag.StringVar(&importName, "import", "", "Import a unit by name instead of running a script file")
	flag.BoolVar(&trace, "trace", false, "Print every emitted value after the run")
	// log config
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error. Default is 'error'")
	flag.StringVar(&logFile, "log-file", "", "Log file path (if not set, logs to stderr)")
}

func main() {
	flag.Parse()

	if version {
		printVersion()
		return
	}
	if help {
		printHelp()
		return
	}

	config := util.Configuration{
		Version:   Version,
		BuildDate: BuildDate,
		Commit:    Commit,
		RootPath:  rootPath,
		LodeHome:  os.Getenv("LODE_HOME"),
		StoreDSN:  storeDSN,
		LogLevel:  logLevel,
		LogFile:   logFile,
		Trace:     trace,
	}
	if configFile != "" {
		if err := util.LoadConfiguration(configFile, &config); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	loggerOptions := &slog.HandlerOptions{
		AddSource: false,
		Level:     logLevelFromString(config.LogLevel),
	}
	defaultLogger := slog.New(slog.NewJSONHandler(configureLogWriter(config.LogFile), loggerOptions))
	slog.SetDefault(defaultLogger)

	hooks, cleanup, err := buildHooks(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	ld := loader.New(hooks)
	ld.SetEmit(func(v unit.Value) { fmt.Println(v.Inspect()) })

	switch {
	case importName != "":
		runImport(ld, importName)
	case flag.Arg(0) != "":
		runScript(ld, flag.Arg(0))
	default:
		repl.Start(os.Stdin, os.Stdout, ld)
	}

	if config.Trace {
		for _, v := range ld.Trace() {
			fmt.Fprintln(os.Stderr, v.Inspect())
		}
	}
}

// buildHooks picks the source store: a database when a DSN is configured,
// the filesystem root otherwise.
func buildHooks(config util.Configuration) (loader.Hooks, func(), error) {
	if config.StoreDSN == "" {
		h := store.NewFileHooks(config.RootPath)
		if config.LodeHome != "" {
			h.Home = config.LodeHome
		}
		return h, func() {}, nil
	}
	db, err := store.OpenDB(config.StoreDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Init(); err != nil {
		db.Close()
		return nil, nil, err
	}
	return store.NewDBHooks(db), func() { db.Close() }, nil
}

func runImport(ld *loader.Loader, name string) {
	f := ld.ImportFuture(name)
	ld.Run()
	if _, err := f.Await(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runScript(ld *loader.Loader, path string) {
	var runErr error
	ld.LoadAndRun(path, nil, func(err error) { runErr = err })
	ld.Run()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%v\n", runErr)
		os.Exit(1)
	}
}

func configureLogWriter(logFile string) *os.File {
	var logWriter *os.File
	var err error
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", logFile, err)
			return os.Stderr
		}
		logWriter, err = os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", logFile, err)
			logWriter = os.Stderr
		}
	} else {
		logWriter = os.Stderr
	}
	return logWriter
}

func printVersion() {
	fmt.Printf("lode version 'v%s' %s %s\n", Version, BuildDate, Commit)
}

func printHelp() {
	fmt.Printf(`Usage: lode [options] [script.lode]

Options:
  -root <path>       Set the root directory units resolve against. Default is '.'
  -store <dsn>       Serve unit source from a database (sqlite3:, mysql: or postgres: DSN).
  -import <name>     Import a unit by name instead of running a script file.
  -config <path>     Read settings from a TOML config file.
  -trace             Print every emitted value to stderr after the run.
  -help              Display this help information and exit.
  -version           Display version information and exit.
  -log-level <level> Set the log level: debug, info, warn, error. Default is 'error'.
  -log-file <path>   Specify a log file to write logs. Default is stderr.

Details:
lode loads, links and evaluates graphs of interdependent units. Without a
script file or -import it starts an interactive session.

Examples:
  lode main.lode                Run a script against the current directory
  lode -root src -import app    Import the unit 'app' from the src tree
  lode -store sqlite3:units.db  Interactive session over a database store

Version Information:
  Version:    %s
  Build Date: %s
  Commit:     %s
`, Version, BuildDate, Commit)
}

func logLevelFromString(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelError
	}
}
