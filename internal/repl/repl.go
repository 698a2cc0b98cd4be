// Package repl is the interactive session: one shared environment, script
// lines evaluated synchronously, colon commands for everything that needs the
// loader pipeline.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"lode/internal/loader"
	"lode/internal/syntax"
	"lode/internal/unit"
)

const PROMPT = ">> "

func Start(in io.Reader, out io.Writer, ld *loader.Loader) {
	scanner := bufio.NewScanner(in)
	session := unit.NewEnvironment()

	fmt.Fprintln(out, "lode interactive session. :help lists commands.")
	for {
		fmt.Fprint(out, PROMPT)
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if runCommand(ld, out, line) {
				return
			}
			continue
		}

		v, err := ld.EvalScriptIn(line, session)
		if err != nil {
			printError(out, err)
			continue
		}
		io.WriteString(out, v.Inspect())
		io.WriteString(out, "\n")
	}
}

// runCommand handles one colon command and reports whether the session ends.
func runCommand(ld *loader.Loader, out io.Writer, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case ":quit", ":q":
		return true

	case ":help":
		fmt.Fprint(out, `Commands:
  :import <name>   load, link and evaluate a unit by name
  :load <path>     run the script at a path
  :units           list registered units
  :drop <name>     remove a unit from the registry
  :quit            leave the session
`)

	case ":units":
		for _, name := range ld.Registry().Names() {
			fmt.Fprintln(out, name)
		}

	case ":import":
		if arg == "" {
			fmt.Fprintln(out, "usage: :import <name>")
			return false
		}
		f := ld.ImportFuture(arg)
		ld.Run()
		u, err := f.Await()
		if err != nil {
			printError(out, err)
			return false
		}
		fmt.Fprintln(out, (&unit.Namespace{Unit: u}).Inspect())

	case ":load":
		if arg == "" {
			fmt.Fprintln(out, "usage: :load <path>")
			return false
		}
		var runErr error
		ld.LoadAndRun(arg, nil, func(err error) { runErr = err })
		ld.Run()
		if runErr != nil {
			printError(out, runErr)
		}

	case ":drop":
		if !ld.Registry().Delete(arg) {
			fmt.Fprintf(out, "no unit named %q\n", arg)
		}

	default:
		fmt.Fprintf(out, "unknown command %s (:help lists commands)\n", cmd)
	}
	return false
}

func printError(out io.Writer, err error) {
	if serr, ok := err.(*syntax.Error); ok {
		fmt.Fprintf(out, "parse error: line %d: %s\n", serr.Line, serr.Msg)
		return
	}
	fmt.Fprintf(out, "error: %v\n", err)
}
