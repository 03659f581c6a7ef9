// Command sqlitenowgo drives the SQL-first code generator from a
// project directory: it reads sqlitenow.toml, runs the generator
// pipeline for every configured database, and reports diagnostics.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/sqlitenow/sqlitenow-go/internal/gen"
)

const version = "0.1.0"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "sqlitenowgo",
		Short: "SQL-first code generator",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "sqlitenow.toml", "path to the project configuration file")

	root.AddCommand(newGenerateCmd(&configPath))
	root.AddCommand(newCheckCmd(&configPath))
	root.AddCommand(newWatchCmd(&configPath))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("sqlitenowgo version " + version)
			return nil
		},
	}
}

func newGenerateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate source code for every configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAll(*configPath, false)
		},
	}
}

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate .sql files without writing generated output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAll(*configPath, true)
		},
	}
}

func newWatchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-run the generator whenever a .sql file changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(*configPath)
		},
	}
}

// runAll loads the project configuration and runs the generator for
// every configured database in parallel, each owning its own SQLite
// connection. checkOnly redirects generated files to the OS temp
// directory instead of each database's output_dir (used by the `check`
// command, which only wants diagnostics).
func runAll(configPath string, checkOnly bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	proj, err := gen.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	errs := make([]error, len(proj.Database))
	for i, cfg := range proj.Database {
		wg.Add(1)
		go func(i int, cfg gen.Config) {
			defer wg.Done()
			logger.Info("generating", "database", cfg.Name)
			if checkOnly {
				cfg.OutputDir = os.TempDir()
			}
			g, err := gen.New(cfg)
			if err != nil {
				errs[i] = err
				return
			}
			defer g.Close()
			if err := g.Run(); err != nil {
				errs[i] = err
				return
			}
			logger.Info("done", "database", cfg.Name)
		}(i, cfg)
	}
	wg.Wait()

	var failed bool
	for i, err := range errs {
		if err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "%s: %v\n", proj.Database[i].Name, err)
		}
	}
	if failed {
		return fmt.Errorf("generation failed")
	}
	return nil
}

// runWatch re-runs runAll whenever a .sql file under any configured
// database's source root changes.
func runWatch(configPath string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	proj, err := gen.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer watcher.Close()

	for _, cfg := range proj.Database {
		if err := addRecursive(watcher, cfg.SourceRoot); err != nil {
			logger.Warn("could not watch source root", "database", cfg.Name, "error", err)
		}
	}

	if err := runAll(configPath, false); err != nil {
		logger.Error("initial generation failed", "error", err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".sql") {
				continue
			}
			logger.Info("change detected", "file", event.Name)
			if err := runAll(configPath, false); err != nil {
				logger.Error("generation failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
