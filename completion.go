package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func cmdCompletion(args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("usage: csvlock completion <bash|zsh|fish> [--install]")
	}

	content, err := completionScript(args[0])
	if err != nil {
		return err
	}

	if len(args) == 2 {
		if args[1] != "--install" {
			return fmt.Errorf("completion: unknown flag: %s", args[1])
		}
		return installCompletion(args[0], content)
	}

	fmt.Print(content)
	return nil
}

func completionScript(shell string) (string, error) {
	switch shell {
	case "bash":
		return bashCompletion, nil
	case "zsh":
		return zshCompletion, nil
	case "fish":
		return fishCompletion, nil
	default:
		return "", fmt.Errorf("unknown shell: %s (supported: bash, zsh, fish)", shell)
	}
}

const bashCompletion = `# csvlock bash completion
# Add to ~/.bashrc: source <(csvlock completion bash)

_csvlock() {
    local cur prev commands
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    commands="encrypt decrypt verify push pull remotes rm init completion help version"

    case "${prev}" in
        csvlock|--debug)
            COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
            return 0
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            return 0
            ;;
        -o|--output)
            COMPREPLY=( $(compgen -f -- ${cur}) )
            return 0
            ;;
        encrypt)
            COMPREPLY=( $(compgen -f -- ${cur}) $(compgen -W "--output --push" -- ${cur}) )
            return 0
            ;;
        decrypt)
            COMPREPLY=( $(compgen -f -X '!*.enc' -- ${cur}) $(compgen -W "--output --force" -- ${cur}) )
            return 0
            ;;
        verify|push)
            COMPREPLY=( $(compgen -f -X '!*.enc' -- ${cur}) )
            return 0
            ;;
        remotes)
            COMPREPLY=( $(compgen -W "--json" -- ${cur}) )
            return 0
            ;;
        *)
            ;;
    esac

    # Complete with --help for any command
    if [[ ${cur} == -* ]]; then
        COMPREPLY=( $(compgen -W "--help" -- ${cur}) )
        return 0
    fi
}

complete -F _csvlock csvlock
`

const zshCompletion = `#compdef csvlock
# csvlock zsh completion
# Add to ~/.zshrc or place in $fpath as _csvlock

_csvlock() {
    local -a commands
    commands=(
        'encrypt:Encrypt a file with a password'
        'decrypt:Decrypt an .enc file'
        'verify:Check the password against an .enc file'
        'push:Upload an encrypted file to the remote'
        'pull:Download an encrypted file from the remote'
        'remotes:List encrypted files on the remote'
        'rm:Delete an encrypted file from the remote'
        'init:Initialize csvlock configuration'
        'completion:Generate shell completions'
        'help:Show help'
        'version:Show version'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case $state in
        command)
            _describe -t commands 'csvlock commands' commands
            ;;
        args)
            case $words[2] in
                completion)
                    _values 'shell' bash zsh fish
                    ;;
                encrypt)
                    _arguments \
                        '(-o --output)'{-o,--output}'[Encrypted file]:file:_files' \
                        '--push[Upload after encrypting]' \
                        '*:file:_files'
                    ;;
                decrypt)
                    _arguments \
                        '(-o --output)'{-o,--output}'[Plaintext file]:file:_files' \
                        '(-f --force)'{-f,--force}'[Overwrite existing file]' \
                        '*:file:_files -g "*.enc"'
                    ;;
                verify|push)
                    _files -g "*.enc"
                    ;;
                remotes)
                    _arguments '--json[Output in JSON format]'
                    ;;
                *)
                    _arguments '--help[Show command help]'
                    ;;
            esac
            ;;
    esac
}

_csvlock "$@"
`

const fishCompletion = `# csvlock fish completion
# Add to ~/.config/fish/completions/csvlock.fish

# Main commands
complete -c csvlock -n "__fish_use_subcommand" -f -a "encrypt" -d "Encrypt a file with a password"
complete -c csvlock -n "__fish_use_subcommand" -f -a "decrypt" -d "Decrypt an .enc file"
complete -c csvlock -n "__fish_use_subcommand" -f -a "verify" -d "Check the password against an .enc file"
complete -c csvlock -n "__fish_use_subcommand" -f -a "push" -d "Upload an encrypted file"
complete -c csvlock -n "__fish_use_subcommand" -f -a "pull" -d "Download an encrypted file"
complete -c csvlock -n "__fish_use_subcommand" -f -a "remotes" -d "List remote encrypted files"
complete -c csvlock -n "__fish_use_subcommand" -f -a "rm" -d "Delete a remote encrypted file"
complete -c csvlock -n "__fish_use_subcommand" -f -a "init" -d "Initialize configuration"
complete -c csvlock -n "__fish_use_subcommand" -f -a "completion" -d "Generate shell completions"
complete -c csvlock -n "__fish_use_subcommand" -f -a "help" -d "Show help"
complete -c csvlock -n "__fish_use_subcommand" -f -a "version" -d "Show version"

# completion subcommand
complete -c csvlock -n "__fish_seen_subcommand_from completion" -f -a "bash zsh fish"

# encrypt/decrypt/pull options
complete -c csvlock -n "__fish_seen_subcommand_from encrypt decrypt pull" -s o -l output -r -d "Output file"
complete -c csvlock -n "__fish_seen_subcommand_from encrypt" -l push -d "Upload after encrypting"
complete -c csvlock -n "__fish_seen_subcommand_from decrypt pull" -s f -l force -d "Overwrite existing file"

# remotes options
complete -c csvlock -n "__fish_seen_subcommand_from remotes" -f -l json -d "Output as JSON"

# Global flags
complete -c csvlock -l help -d "Show help"
complete -c csvlock -l debug -d "Print debug output"
`

// installCompletion writes the script where the shell picks it up
func installCompletion(shell, content string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("could not determine home directory: %w", err)
	}

	var path string
	switch shell {
	case "bash":
		path = filepath.Join(home, ".local", "share", "bash-completion", "completions", "csvlock")
	case "zsh":
		path = filepath.Join(home, ".zsh", "completions", "_csvlock")
	case "fish":
		path = filepath.Join(home, ".config", "fish", "completions", "csvlock.fish")
	default:
		return fmt.Errorf("unknown shell: %s", shell)
	}

	// Create parent directory
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	if err := writeFileAtomic(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing completion file: %w", err)
	}

	fmt.Printf("Installed %s completion to %s\n", shell, path)
	return nil
}
