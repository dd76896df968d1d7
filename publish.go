package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// pushBlob uploads a sealed container to the configured remote
func pushBlob(cfg *Config, name string, blob []byte) error {
	if err := checkContainer(blob); err != nil {
		return err
	}

	store, err := newRemoteStoreFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()

	host, _ := os.Hostname()
	meta := map[string]string{"hostname": host}

	if err := store.Put(ctx, name, blob, meta); err != nil {
		return err
	}

	printSuccess("pushed %s to %q (%s)", formatSize(int64(len(blob))), name, cfg.Remote.Backend)
	return nil
}

func cmdPush(args []string) error {
	fa, err := parseFileArgs("push", args)
	if err != nil {
		return err
	}
	if len(fa.positional) > 2 {
		return fmt.Errorf("usage: csvlock push [file] [name]")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	file := cfg.Files.Output
	if len(fa.positional) >= 1 {
		file = fa.positional[0]
	}
	name := filepath.Base(file)
	if len(fa.positional) == 2 {
		name = fa.positional[1]
	}

	blob, err := readInputFile(file)
	if err != nil {
		return err
	}
	if err := checkContainer(blob); err != nil {
		return fmt.Errorf("%s is not an encrypted file: %w", file, err)
	}

	return pushBlob(cfg, name, blob)
}

func cmdPull(args []string) error {
	fa, err := parseFileArgs("pull", args, "output", "force")
	if err != nil {
		return err
	}
	if len(fa.positional) != 1 {
		return fmt.Errorf("usage: csvlock pull <name> [-o output] [--force]")
	}
	name := fa.positional[0]

	output := name
	if fa.output != "" {
		output = fa.output
	}
	if fileExists(output) && !fa.force {
		return fmt.Errorf("%s already exists; use --force to overwrite", output)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := newRemoteStoreFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()

	blob, meta, err := store.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := checkContainer(blob); err != nil {
		return fmt.Errorf("remote %q is not an encrypted file: %w", name, err)
	}
	if f := meta["format"]; f != "" && f != formatTag {
		printWarning("remote %q reports format %q", name, f)
	}

	if err := writeFileAtomic(output, blob, 0644); err != nil {
		return err
	}

	if host := meta["hostname"]; host != "" {
		printSuccess("pulled %s from %q to %s (source: %s)", formatSize(int64(len(blob))), name, output, host)
	} else {
		printSuccess("pulled %s from %q to %s", formatSize(int64(len(blob))), name, output)
	}
	return nil
}

func cmdRemotes(args []string) error {
	fa, err := parseFileArgs("remotes", args, "json")
	if err != nil {
		return err
	}
	if len(fa.positional) > 0 {
		return fmt.Errorf("remotes does not take arguments")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := newRemoteStoreFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()

	objects, err := store.List(ctx)
	if err != nil {
		return err
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })

	if fa.json {
		if objects == nil {
			objects = []RemoteObject{}
		}
		data, err := json.MarshalIndent(objects, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding list: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(objects) == 0 {
		fmt.Println("No encrypted files found.")
		return nil
	}

	fmt.Printf("%-30s  %-10s  %-12s\n", "NAME", "SIZE", "AGE")
	for _, o := range objects {
		fmt.Printf("%-30s  %-10s  %-12s\n", o.Name, formatSize(o.Size), formatAge(o.ModifiedAt))
	}
	return nil
}

func cmdRm(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: csvlock rm <name>")
	}
	name := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := newRemoteStoreFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()

	if err := store.Delete(ctx, name); err != nil {
		return err
	}

	printSuccess("deleted %q", name)
	return nil
}
