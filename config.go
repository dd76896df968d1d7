package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultInputFile = "contacts.csv"

type Config struct {
	Version  int             `yaml:"version"`
	Files    *FilesConfig    `yaml:"files,omitempty"`
	Password *PasswordConfig `yaml:"password,omitempty"`
	Remote   *RemoteConfig   `yaml:"remote,omitempty"`
}

type FilesConfig struct {
	Input  string `yaml:"input,omitempty"`  // plaintext file (default: contacts.csv)
	Output string `yaml:"output,omitempty"` // encrypted file (default: <input>.enc)
}

type PasswordConfig struct {
	MinLength int `yaml:"min_length,omitempty"` // never below 8
}

type RemoteConfig struct {
	Backend string       `yaml:"backend"` // "none", "s3", or "local"
	S3      *S3Config    `yaml:"s3,omitempty"`
	Local   *LocalConfig `yaml:"local,omitempty"`
}

type S3Config struct {
	Bucket  string `yaml:"bucket"`
	Region  string `yaml:"region"`
	Prefix  string `yaml:"prefix,omitempty"`
	Profile string `yaml:"profile,omitempty"`
	SSE     string `yaml:"sse,omitempty"` // "AES256" or "aws:kms"
}

func configDir() string {
	// XDG_CONFIG_HOME or ~/.config
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "csvlock")
}

func configPath() string {
	if p := os.Getenv("CSVLOCK_CONFIG"); p != "" {
		return p
	}
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// loadConfig loads the config file, falling back to defaults when it does
// not exist. Environment overrides are applied on top.
func loadConfig() (*Config, error) {
	cfg := &Config{}

	path := configPath()
	debugLog("loading config from: %s", path)
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			debugLog("config file not found, using defaults")
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	debugLog("config loaded: input=%s output=%s backend=%s", cfg.Files.Input, cfg.Files.Output, cfg.Remote.Backend)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Files == nil {
		cfg.Files = &FilesConfig{}
	}
	if cfg.Files.Input == "" {
		cfg.Files.Input = defaultInputFile
	}
	if cfg.Files.Output == "" {
		cfg.Files.Output = defaultOutputPath(cfg.Files.Input)
	}
	if cfg.Password == nil {
		cfg.Password = &PasswordConfig{}
	}
	if cfg.Password.MinLength == 0 {
		cfg.Password.MinLength = minPasswordLength
	}
	if cfg.Remote == nil {
		cfg.Remote = &RemoteConfig{}
	}
	if cfg.Remote.Backend == "" {
		cfg.Remote.Backend = "none"
	}
}

func applyEnvOverrides(cfg *Config) {
	applyFilesEnv(cfg)
	applyBackendEnv(cfg)
	applyS3Env(cfg)
}

func applyFilesEnv(cfg *Config) {
	if v := os.Getenv("CSVLOCK_INPUT"); v != "" {
		if cfg.Files == nil {
			cfg.Files = &FilesConfig{}
		}
		cfg.Files.Input = v
	}
	if v := os.Getenv("CSVLOCK_OUTPUT"); v != "" {
		if cfg.Files == nil {
			cfg.Files = &FilesConfig{}
		}
		cfg.Files.Output = v
	}
}

func applyBackendEnv(cfg *Config) {
	if v := os.Getenv("CSVLOCK_BACKEND"); v != "" {
		if cfg.Remote == nil {
			cfg.Remote = &RemoteConfig{}
		}
		cfg.Remote.Backend = v
	}
}

func ensureRemoteS3(cfg *Config) {
	if cfg.Remote == nil {
		cfg.Remote = &RemoteConfig{}
	}
	if cfg.Remote.S3 == nil {
		cfg.Remote.S3 = &S3Config{}
	}
}

func applyS3Env(cfg *Config) {
	if v := os.Getenv("CSVLOCK_S3_BUCKET"); v != "" {
		ensureRemoteS3(cfg)
		cfg.Remote.S3.Bucket = v
		if cfg.Remote.Backend == "" || cfg.Remote.Backend == "none" {
			cfg.Remote.Backend = "s3"
		}
	}

	if cfg.Remote == nil || cfg.Remote.S3 == nil {
		return
	}

	envMappings := []struct {
		env  string
		dest *string
	}{
		{"CSVLOCK_S3_REGION", &cfg.Remote.S3.Region},
		{"CSVLOCK_S3_PREFIX", &cfg.Remote.S3.Prefix},
		{"CSVLOCK_S3_PROFILE", &cfg.Remote.S3.Profile},
		{"CSVLOCK_S3_SSE", &cfg.Remote.S3.SSE},
	}

	for _, m := range envMappings {
		if v := os.Getenv(m.env); v != "" {
			*m.dest = v
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Password.MinLength < minPasswordLength {
		return fmt.Errorf("password.min_length must be at least %d (got %d)", minPasswordLength, cfg.Password.MinLength)
	}
	if cfg.Files.Input == cfg.Files.Output {
		return fmt.Errorf("files.input and files.output must differ (both %q)", cfg.Files.Input)
	}

	switch cfg.Remote.Backend {
	case "none", "local":
	case "s3":
		if cfg.Remote.S3 != nil {
			switch cfg.Remote.S3.SSE {
			case "", "AES256", "aws:kms":
			default:
				return fmt.Errorf("s3.sse must be AES256 or aws:kms (got %q)", cfg.Remote.S3.SSE)
			}
		}
	default:
		return fmt.Errorf("unsupported backend: %s", cfg.Remote.Backend)
	}
	return nil
}

// validateRemoteConfig checks the settings push/pull/remotes/rm depend on.
func validateRemoteConfig(cfg *Config) error {
	switch cfg.Remote.Backend {
	case "", "none":
		return fmt.Errorf("remote backend not configured (backend: none)\n\nSet 'remote.backend' in %s or run 'csvlock init'", configPath())
	case "s3":
		if cfg.Remote.S3 == nil {
			return fmt.Errorf("s3 backend selected but s3 config missing")
		}
		if cfg.Remote.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required")
		}
		if cfg.Remote.S3.Region == "" {
			return fmt.Errorf("s3.region is required")
		}
	case "local":
		if cfg.Remote.Local == nil {
			cfg.Remote.Local = &LocalConfig{}
		}
	default:
		return fmt.Errorf("unsupported backend: %s", cfg.Remote.Backend)
	}
	return nil
}

// saveConfig writes cfg as YAML, creating the config directory if needed.
func saveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	header := []byte("# csvlock configuration\n# Generated by 'csvlock init'\n\n")
	if err := writeFileAtomic(path, append(header, data...), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
