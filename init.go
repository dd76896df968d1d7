package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/common-nighthawk/go-figure"
)

// promptReader is shared by the wizard prompts so piped answers are not
// lost between bufio buffers.
var promptReader = bufio.NewReader(os.Stdin)

func cmdInit(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("init does not take arguments")
	}

	// Check if config already exists
	cfgPath := configPath()
	if cfgPath == "" {
		return fmt.Errorf("could not determine config path; set CSVLOCK_CONFIG")
	}
	if fileExists(cfgPath) {
		fmt.Printf("Config file already exists at %s\n", cfgPath)
		if !promptYesNo("Overwrite?", false) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	printBanner()
	fmt.Println("Configuration Wizard")
	fmt.Println()

	cfg := runInitWizard()

	fmt.Println()
	fmt.Println("Writing configuration...")
	if err := saveConfig(cfgPath, cfg); err != nil {
		return err
	}

	fmt.Println()
	printSuccess("Configuration saved to %s", cfgPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  csvlock encrypt     - Encrypt %s\n", cfg.Files.Input)
	fmt.Printf("  csvlock verify      - Check the password against %s\n", cfg.Files.Output)
	if cfg.Remote.Backend != "none" {
		fmt.Println("  csvlock push        - Upload the encrypted file")
		fmt.Println("  csvlock remotes     - List uploaded files")
	}
	return nil
}

func printBanner() {
	if useColor() {
		figure.NewColorFigure("csvlock", "", "green", true).Print()
	} else {
		figure.NewFigure("csvlock", "", true).Print()
	}
	fmt.Println()
}

// runInitWizard asks the questions and returns the resulting config
func runInitWizard() *Config {
	cfg := &Config{Version: 1}

	// Step 1: Files
	fmt.Println("Files")
	fmt.Println("-----")
	input := promptString("Plaintext file", defaultInputFile)
	output := promptString("Encrypted file", defaultOutputPath(input))
	cfg.Files = &FilesConfig{Input: input, Output: output}

	// Step 2: Password policy
	fmt.Println()
	fmt.Println("Password")
	fmt.Println("--------")
	minLen := promptString("Minimum password length", strconv.Itoa(minPasswordLength))
	n, err := strconv.Atoi(minLen)
	if err != nil || n < minPasswordLength {
		fmt.Printf("Invalid length %q, using %d\n", minLen, minPasswordLength)
		n = minPasswordLength
	}
	cfg.Password = &PasswordConfig{MinLength: n}

	// Step 3: Remote
	fmt.Println()
	fmt.Println("Remote")
	fmt.Println("------")
	fmt.Println("csvlock can keep a copy of the encrypted file in:")
	fmt.Println("  local - A directory (e.g. a synced folder)")
	fmt.Println("  s3    - An AWS S3 bucket (requires AWS credentials)")
	fmt.Println("  none  - Git only")
	fmt.Println()

	backend := promptChoice("Choose backend", []string{"none", "local", "s3"}, "none")
	cfg.Remote = &RemoteConfig{Backend: backend}

	switch backend {
	case "s3":
		fmt.Println()
		cfg.Remote.S3 = &S3Config{}
		cfg.Remote.S3.Bucket = promptString("S3 bucket name", "")
		cfg.Remote.S3.Region = promptString("AWS region", "us-east-1")
		cfg.Remote.S3.Prefix = promptString("Key prefix (optional)", "csvlock/")
		if promptYesNo("Enable server-side encryption (AES256)?", true) {
			cfg.Remote.S3.SSE = "AES256"
		}
	case "local":
		fmt.Println()
		cfg.Remote.Local = &LocalConfig{Path: promptString("Directory (empty for ~/.config/csvlock/store)", "")}
	}

	return cfg
}

// promptString asks for a string input with a default value
func promptString(prompt, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Printf("%s: ", prompt)
	}
	input, _ := promptReader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// promptYesNo asks a yes/no question
func promptYesNo(prompt string, defaultYes bool) bool {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	fmt.Printf("%s [%s]: ", prompt, hint)
	input, _ := promptReader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return defaultYes
	}
	return input == "y" || input == "yes"
}

// promptChoice asks user to choose from options
func promptChoice(prompt string, options []string, defaultVal string) string {
	fmt.Printf("%s (%s) [%s]: ", prompt, strings.Join(options, "/"), defaultVal)
	input, _ := promptReader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return defaultVal
	}
	// Validate
	for _, opt := range options {
		if input == opt {
			return input
		}
	}
	// Invalid, return default
	fmt.Printf("Invalid choice, using '%s'\n", defaultVal)
	return defaultVal
}
