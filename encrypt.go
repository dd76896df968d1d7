package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"
)

// fileArgs holds the parsed arguments shared by the file commands
type fileArgs struct {
	positional []string
	output     string
	force      bool
	push       bool
	json       bool
}

// parseFileArgs parses positional arguments and the flags named in allowed
func parseFileArgs(cmd string, args []string, allowed ...string) (fileArgs, error) {
	var fa fileArgs
	isAllowed := func(flag string) bool {
		for _, a := range allowed {
			if a == flag {
				return true
			}
		}
		return false
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case (arg == "-o" || arg == "--output") && isAllowed("output"):
			if i+1 >= len(args) {
				return fa, fmt.Errorf("%s: %s requires a path", cmd, arg)
			}
			i++
			fa.output = args[i]
		case strings.HasPrefix(arg, "--output=") && isAllowed("output"):
			fa.output = strings.TrimPrefix(arg, "--output=")
		case (arg == "-f" || arg == "--force") && isAllowed("force"):
			fa.force = true
		case arg == "--push" && isAllowed("push"):
			fa.push = true
		case arg == "--json" && isAllowed("json"):
			fa.json = true
		case arg == "-":
			fa.positional = append(fa.positional, arg)
		case strings.HasPrefix(arg, "-"):
			return fa, fmt.Errorf("%s: unknown flag: %s", cmd, arg)
		default:
			fa.positional = append(fa.positional, arg)
		}
	}
	return fa, nil
}

// startSpinner shows progress while the key is derived. It stays quiet when
// stderr is not a terminal or debug output is on.
func startSpinner(message string) func() {
	if debugMode || !term.IsTerminal(int(os.Stderr.Fd())) {
		debugLog("%s", message)
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	if useColor() {
		_ = s.Color("cyan")
	}
	s.Start()
	return s.Stop
}

func cmdEncrypt(args []string) error {
	fa, err := parseFileArgs("encrypt", args, "output", "push")
	if err != nil {
		return err
	}
	if len(fa.positional) > 1 {
		return fmt.Errorf("usage: csvlock encrypt [input] [-o output] [--push]")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	input := cfg.Files.Input
	output := cfg.Files.Output
	if len(fa.positional) == 1 {
		input = fa.positional[0]
		output = defaultOutputPath(input)
	}
	if fa.output != "" {
		output = fa.output
	}
	if filepath.Clean(input) == filepath.Clean(output) {
		return fmt.Errorf("output %s would overwrite the input", output)
	}

	info, err := os.Stat(input)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s not found\n  Make sure %s is in the current directory", input, filepath.Base(input))
		}
		return fmt.Errorf("checking %s: %w", input, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", input)
	}
	fmt.Printf("Found: %s (%s)\n\n", input, formatSize(info.Size()))

	password, err := getPasswordWithConfirm("Enter encryption password: ", "Confirm password: ", cfg.Password.MinLength)
	if err != nil {
		return err
	}
	defer zeroBytes(password)

	plaintext, err := readInputFile(input)
	if err != nil {
		return err
	}
	defer zeroBytes(plaintext)

	stop := startSpinner("Encrypting...")
	blob, err := seal(plaintext, password)
	stop()
	if err != nil {
		return err
	}

	if err := writeFileAtomic(output, blob, 0644); err != nil {
		return err
	}

	printSuccess("Encryption successful")
	fmt.Printf("  Input:     %s\n", input)
	fmt.Printf("  Output:    %s\n", output)
	fmt.Printf("  File size: %s\n", formatSize(int64(len(blob))))
	fmt.Println()

	if !isGitignored(input) {
		printWarning("%s is not listed in .gitignore; add it before committing", filepath.Base(input))
	}
	fmt.Printf("Only commit %s. Use the same password to decrypt.\n", filepath.Base(output))

	if fa.push {
		return pushBlob(cfg, filepath.Base(output), blob)
	}
	return nil
}

func cmdDecrypt(args []string) error {
	fa, err := parseFileArgs("decrypt", args, "output", "force")
	if err != nil {
		return err
	}
	if len(fa.positional) > 1 {
		return fmt.Errorf("usage: csvlock decrypt [input] [-o output] [--force]")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	input := cfg.Files.Output
	output := cfg.Files.Input
	if len(fa.positional) == 1 {
		input = fa.positional[0]
		output = defaultDecryptPath(input)
	}
	if fa.output != "" {
		output = fa.output
	}
	toStdout := output == "-"

	if !toStdout {
		if filepath.Clean(input) == filepath.Clean(output) {
			return fmt.Errorf("output %s would overwrite the input", output)
		}
		if fileExists(output) && !fa.force {
			return fmt.Errorf("%s already exists; use --force to overwrite", output)
		}
	}

	blob, err := readInputFile(input)
	if err != nil {
		return err
	}
	if err := checkContainer(blob); err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	password, err := getPassword("Enter decryption password: ")
	if err != nil {
		return err
	}
	defer zeroBytes(password)

	stop := startSpinner("Decrypting...")
	plaintext, err := open(blob, password)
	stop()
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	defer zeroBytes(plaintext)

	if toStdout {
		_, err := os.Stdout.Write(plaintext)
		return err
	}

	if err := writeFileAtomic(output, plaintext, 0600); err != nil {
		return err
	}

	printSuccess("Decryption successful")
	fmt.Printf("  Input:  %s\n", input)
	fmt.Printf("  Output: %s (%s)\n", output, formatSize(int64(len(plaintext))))
	if !isGitignored(output) {
		printWarning("%s is not listed in .gitignore; do not commit it", filepath.Base(output))
	}
	return nil
}

func cmdVerify(args []string) error {
	fa, err := parseFileArgs("verify", args)
	if err != nil {
		return err
	}
	if len(fa.positional) > 1 {
		return fmt.Errorf("usage: csvlock verify [input]")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	input := cfg.Files.Output
	if len(fa.positional) == 1 {
		input = fa.positional[0]
	}

	blob, err := readInputFile(input)
	if err != nil {
		return err
	}
	if err := checkContainer(blob); err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	password, err := getPassword("Enter password: ")
	if err != nil {
		return err
	}
	defer zeroBytes(password)

	stop := startSpinner("Verifying...")
	plaintext, err := open(blob, password)
	stop()
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	n := len(plaintext)
	zeroBytes(plaintext)

	printSuccess("%s is intact and the password is correct (%s of plaintext)", input, formatSize(int64(n)))
	return nil
}
