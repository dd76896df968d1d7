package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var commands = map[string]func([]string) error{
	"encrypt":    cmdEncrypt,
	"decrypt":    cmdDecrypt,
	"verify":     cmdVerify,
	"push":       cmdPush,
	"pull":       cmdPull,
	"remotes":    cmdRemotes,
	"rm":         cmdRm,
	"init":       cmdInit,
	"completion": cmdCompletion,
}

func main() {
	handleInterrupts()
	os.Exit(run(os.Args[1:]))
}

// handleInterrupts restores the terminal and exits 1 on Ctrl+C.
func handleInterrupts() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		restoreTerminal()
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, paint(errorColor, "Cancelled"))
		os.Exit(1)
	}()
}

// run dispatches args and returns the process exit code
func run(args []string) int {
	if os.Getenv("CSVLOCK_DEBUG") != "" {
		debugMode = true
	}
	for len(args) > 0 && args[0] == "--debug" {
		debugMode = true
		args = args[1:]
	}

	// Bare invocation encrypts the configured input
	if len(args) == 0 {
		args = []string{"encrypt"}
	}

	cmd := args[0]
	rest := args[1:]

	if fn, ok := commands[cmd]; ok {
		// Check for --help flag on any command
		if hasHelpFlag(rest) {
			printCommandHelp(cmd)
			return 0
		}
		debugLog("running %s %v", cmd, rest)
		if err := fn(rest); err != nil {
			printError(err)
			return 1
		}
		return 0
	}

	switch cmd {
	case "help", "-h", "--help":
		printHelp()
	case "version", "-v", "--version":
		fmt.Printf("csvlock v%s\n", version)
	default:
		fmt.Fprintln(os.Stderr, paint(errorColor, fmt.Sprintf("Unknown command: %s", cmd)))
		fmt.Fprintln(os.Stderr)
		printHelp()
		return 1
	}
	return 0
}
