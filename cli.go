package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

const version = "0.3.0"

// debugMode enables [debug] lines on stderr (CSVLOCK_DEBUG or --debug)
var debugMode bool

var (
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	debugColor   = color.New(color.FgCyan)
)

// useColor returns true if color output should be used
func useColor() bool {
	// Disable color if NO_COLOR is set (https://no-color.org/)
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return !color.NoColor
}

func paint(c *color.Color, s string) string {
	if !useColor() {
		return s
	}
	return c.Sprint(s)
}

func debugLog(format string, args ...any) {
	if !debugMode {
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", paint(debugColor, "[debug]"), fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...any) {
	fmt.Printf("%s %s\n", paint(successColor, "✓"), fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", paint(warningColor, "!"), fmt.Sprintf(format, args...))
}

// printError prints an error message to stderr with optional color
func printError(err error) {
	fmt.Fprintln(os.Stderr, paint(errorColor, fmt.Sprintf("csvlock: %v", err)))
}

// commandHelp provides per-command help text
var commandHelp = map[string]string{
	"encrypt": `Usage: csvlock encrypt [input] [-o output] [--push]

Encrypt a file with a password. The result is safe to commit.

Arguments:
  input    Plaintext file (default: files.input from config, or contacts.csv)

Options:
  -o, --output <path>   Encrypted file (default: <input>.enc)
  --push                Upload the encrypted file to the configured remote

Examples:
  csvlock encrypt                      Encrypt contacts.csv to contacts.csv.enc
  csvlock encrypt leads.csv            Encrypt leads.csv to leads.csv.enc
  CSVLOCK_PASSWORD=... csvlock encrypt Non-interactive (CI)`,

	"decrypt": `Usage: csvlock decrypt [input] [-o output] [--force]

Decrypt a file produced by 'csvlock encrypt'.

Arguments:
  input    Encrypted file (default: files.output from config, or contacts.csv.enc)

Options:
  -o, --output <path>   Plaintext file (default: input without .enc); "-" for stdout
  -f, --force           Overwrite an existing plaintext file

Examples:
  csvlock decrypt                      Restore contacts.csv
  csvlock decrypt -o - | head          Print to stdout`,

	"verify": `Usage: csvlock verify [input]

Check that an encrypted file opens with the given password.
Nothing is written.`,

	"push": `Usage: csvlock push [file] [name]

Upload an encrypted file to the configured remote (s3 or local).

Arguments:
  file    Encrypted file (default: files.output from config)
  name    Remote object name (default: base name of file)`,

	"pull": `Usage: csvlock pull <name> [-o output] [--force]

Download an encrypted file from the configured remote.

Options:
  -o, --output <path>   Destination (default: <name> in the current directory)
  -f, --force           Overwrite an existing file`,

	"remotes": `Usage: csvlock remotes [--json]

List encrypted files stored on the configured remote.

Options:
  --json     Output in JSON format`,

	"rm": `Usage: csvlock rm <name>

Delete an encrypted file from the configured remote.`,

	"init": `Usage: csvlock init

Interactive configuration wizard.

Creates ~/.config/csvlock/config.yaml with:
  - Default input and output file names
  - Minimum password length
  - Remote backend (local, s3, or none)`,

	"completion": `Usage: csvlock completion <shell> [--install]

Generate shell completion scripts.

Supported shells:
  bash    Bash completion
  zsh     Zsh completion
  fish    Fish completion

Installation:
  source <(csvlock completion bash)
  csvlock completion zsh --install`,
}

// hasHelpFlag checks if args contain -h or --help
func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" {
			return true
		}
	}
	return false
}

// printCommandHelp prints help for a specific command
func printCommandHelp(cmd string) {
	if help, ok := commandHelp[cmd]; ok {
		fmt.Println(help)
	} else {
		printHelp()
	}
}

func printHelp() {
	fmt.Println(`csvlock - keep a plaintext file out of git, commit the encrypted copy

Usage:
  csvlock [--debug] <command> [args...]
  csvlock                        Same as 'csvlock encrypt'

Files:
  encrypt [input]      Encrypt input (default contacts.csv) to <input>.enc
  decrypt [input]      Decrypt an .enc file back to plaintext
  verify [input]       Check the password against an .enc file

Remote (S3 or local directory):
  push [file] [name]   Upload an encrypted file
  pull <name>          Download an encrypted file
  remotes [--json]     List stored encrypted files
  rm <name>            Delete a stored encrypted file

Setup:
  init                 Interactive configuration wizard
  completion <shell>   Generate shell completions (bash/zsh/fish)

Other:
  <command> --help     Show help for a specific command
  help                 Show this help
  version              Show version

Password:
  Entered interactively (with confirmation when encrypting), or taken from
  the CSVLOCK_PASSWORD environment variable. Minimum 8 characters.

Format:
  salt (32 bytes) | nonce (16) | GCM tag (16) | ciphertext
  PBKDF2-HMAC-SHA256, 100000 iterations, AES-256-GCM

Config: ~/.config/csvlock/config.yaml

  files:
    input: contacts.csv
    output: contacts.csv.enc
  password:
    min_length: 12
  remote:
    backend: s3            # or "local"
    s3:
      bucket: my-bucket
      region: us-west-2
      prefix: csvlock/`)
}
