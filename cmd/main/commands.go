package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/CTAG07/Nepenthes/pkg/watch"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		pairs    []string
		dataFile string
		device   string
		layout   string
		outFile  string
	)
	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a template to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := loadVars(dataFile, pairs)
			if err != nil {
				return err
			}
			r, err := a.newRenderer(cmd.Context(), true, device)
			if err != nil {
				return err
			}
			if layout != "" {
				r.SetLayout(layout)
			}
			out, err := r.Render(args[0], vars)
			if err != nil {
				return err
			}
			if outFile == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), out)
				return err
			}
			return os.WriteFile(outFile, []byte(out), 0o644)
		},
	}
	cmd.Flags().StringArrayVar(&pairs, "var", nil, "template variable as name=value (repeatable)")
	cmd.Flags().StringVar(&dataFile, "data", "", "YAML or JSON file of template variables")
	cmd.Flags().StringVar(&device, "device", "", "device class to render for")
	cmd.Flags().StringVar(&layout, "layout", "", "layout for template names without a layout prefix")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "write the output to a file instead of stdout")
	return cmd
}

// loadVars merges the variables of a data file with name=value pairs.
// Pairs win over the file.
func loadVars(dataFile string, pairs []string) (map[string]any, error) {
	vars := make(map[string]any)
	if dataFile != "" {
		data, err := os.ReadFile(dataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read data file: %w", err)
		}
		if err = yaml.Unmarshal(data, &vars); err != nil {
			return nil, fmt.Errorf("failed to parse data file %s: %w", dataFile, err)
		}
	}
	for _, pair := range pairs {
		name, val, ok := strings.Cut(pair, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), "$")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid variable %q, expected name=value", pair)
		}
		vars[name] = val
	}
	return vars, nil
}

func newCompileCmd(a *app) *cobra.Command {
	var device string
	cmd := &cobra.Command{
		Use:   "compile <template>...",
		Short: "Compile templates into the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.newRenderer(cmd.Context(), false, device)
			if err != nil {
				return err
			}
			for _, name := range args {
				path, err := r.Compile(name)
				if err != nil {
					return err
				}
				a.logger.Info("Compiled template", "template", name, "path", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "device class to compile for")
	return cmd
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear compiled templates",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List compiled templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.newRenderer(cmd.Context(), false, "")
			if err != nil {
				return err
			}
			artifacts, err := r.Cache().List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tCOMPILED")
			for _, art := range artifacts {
				fmt.Fprintf(w, "%s\t%s\t%s\n", art.Name, humanize.Bytes(uint64(art.Size)), humanize.Time(art.ModTime))
			}
			return w.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every compiled template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.newRenderer(cmd.Context(), false, "")
			if err != nil {
				return err
			}
			_, err = r.Cache().Clear()
			return err
		},
	})
	return cmd
}

func newLangCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lang",
		Short: "Manage language packs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <pack> <file>",
		Short: "Import a YAML language pack",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()
			_, err = store.Import(cmd.Context(), args[0], f)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "export <pack>",
		Short: "Write a language pack to stdout as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()
			return store.Export(cmd.Context(), args[0], cmd.OutOrStdout())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "packs",
		Short: "List language packs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()
			packs, err := store.Packs(cmd.Context())
			if err != nil {
				return err
			}
			for _, pack := range packs {
				fmt.Fprintln(cmd.OutOrStdout(), pack)
			}
			return nil
		},
	})
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Clear compiled templates whenever a template source changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.newRenderer(cmd.Context(), false, "")
			if err != nil {
				return err
			}
			delay := time.Duration(a.config.App.WatchDelayMs) * time.Millisecond
			w, err := watch.New(a.logger, delay,
				watch.ExtensionFilter(a.config.Templates.Extension),
				watch.ClearCache(a.logger, r.Cache()))
			if err != nil {
				return err
			}
			if err = w.AddRecursive(a.sourceRoot()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a.logger.Info("Watching templates", "dir", a.sourceRoot(), "delay", delay)
			err = w.Run(ctx)
			a.logger.Info("Watcher stopped")
			return err
		},
	}
}
