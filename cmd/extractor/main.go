// Command extractor is the CLI for managing statement folders, uploads,
// schemas, and extraction runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-extractor/internal/config"
	"github.com/dvloznov/statement-extractor/internal/docparse"
	"github.com/dvloznov/statement-extractor/internal/export"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/gemini"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/progress"
	"github.com/dvloznov/statement-extractor/internal/service"
	"github.com/dvloznov/statement-extractor/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   storage.Backend
	proc    *service.Processor
	cleanup []func() error
}

func (a *app) close() {
	for _, fn := range a.cleanup {
		if err := fn(); err != nil {
			a.log.Error().Err(err).Msg("Cleanup failed")
		}
	}
}

// processor returns the wired processing service, or an error for commands
// that need the vendor API when it is not configured.
func (a *app) processor() (*service.Processor, error) {
	if a.proc == nil {
		return nil, fmt.Errorf("vendor API is not configured, set VENDOR_BASE_URL and VENDOR_API_KEY")
	}
	return a.proc, nil
}

func newRootCmd() *cobra.Command {
	var configPath string
	var a *app

	root := &cobra.Command{
		Use:           "extractor",
		Short:         "Extract transactions from bank statements",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = buildApp(cmd.Context(), configPath)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.close()
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(
		newFolderCmd(&a),
		newUploadCmd(&a),
		newFilesCmd(&a),
		newProcessCmd(&a),
		newParseCmd(&a),
		newExtractCmd(&a),
		newSchemaCmd(&a),
		newStatusCmd(&a),
		newResultCmd(&a),
	)
	return root
}

func buildApp(ctx context.Context, configPath string) (*app, error) {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Logging.Level)

	a := &app{cfg: cfg, log: log}

	switch cfg.Storage.Backend {
	case "gcs":
		gcsStore, err := storage.NewGCS(ctx, cfg.Storage.GCSBucket)
		if err != nil {
			return nil, err
		}
		a.store = gcsStore
		a.cleanup = append(a.cleanup, gcsStore.Close)
	default:
		a.store, err = storage.NewLocal(cfg.Storage.LocalDir)
		if err != nil {
			return nil, err
		}
	}

	// Storage-only commands (folder, upload, files, result) work without the
	// vendor API; the processor is wired only when it is configured.
	if cfg.Vendor.BaseURL == "" || cfg.Vendor.APIKey == "" {
		return a, nil
	}

	vendor, err := docparse.NewClient(docparse.Config{
		BaseURL:        cfg.Vendor.BaseURL,
		APIKey:         cfg.Vendor.APIKey,
		Model:          cfg.Vendor.Model,
		PollInterval:   cfg.Vendor.PollInterval,
		PollTimeout:    cfg.Vendor.PollTimeout,
		RequestTimeout: cfg.Vendor.RequestTimeout,
		MaxRetries:     cfg.Vendor.MaxRetries,
	}, log)
	if err != nil {
		return nil, err
	}

	var extractor extract.Extractor = vendor
	if cfg.Extract.Backend == "gemini" {
		extractor, err = gemini.New(ctx, cfg.Extract.GeminiModel, log)
		if err != nil {
			return nil, err
		}
	}
	engine := extract.NewEngine(extractor, cfg.Extract.Workers, log)

	var exporter service.Exporter
	if cfg.Export.Enabled {
		sink, err := export.NewBigQuerySink(ctx, cfg.Export.ProjectID, cfg.Export.Dataset, cfg.Export.Table, log)
		if err != nil {
			return nil, err
		}
		exporter = sink
		a.cleanup = append(a.cleanup, sink.Close)
	}

	a.proc = service.NewProcessor(a.store, vendor, engine, progress.NewTracker(), exporter, log)
	return a, nil
}

func newFolderCmd(a **app) *cobra.Command {
	cmd := &cobra.Command{Use: "folder", Short: "Manage statement folders"}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := (*a).store.CreateFolder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", folder.ID, folder.Name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			folders, err := (*a).store.ListFolders(cmd.Context())
			if err != nil {
				return err
			}
			for _, f := range folders {
				fmt.Printf("%s\t%s\n", f.ID, f.Name)
			}
			return nil
		},
	})
	return cmd
}

func newUploadCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <folder-id> <path>",
		Short: "Upload a statement file to a folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			location, err := (*a).store.SaveUpload(cmd.Context(), args[0], filepath.Base(args[1]), content)
			if err != nil {
				return err
			}
			fmt.Println("Uploaded to", location)
			return nil
		},
	}
}

func newFilesCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "files <folder-id>",
		Short: "List files in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := (*a).store.ListFiles(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Println(f)
			}
			return nil
		},
	}
}

func newProcessCmd(a **app) *cobra.Command {
	var forceReparse bool
	cmd := &cobra.Command{
		Use:   "process <folder-id> <filename>",
		Short: "Parse, extract and render one statement to CSV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := (*a).processor()
			if err != nil {
				return err
			}
			csv, err := withProgressBar(proc, args[0], args[1], func() (string, error) {
				return proc.ProcessFile(cmd.Context(), args[0], args[1], forceReparse)
			})
			if err != nil {
				return err
			}
			fmt.Print(csv)
			return nil
		},
	}
	cmd.Flags().BoolVar(&forceReparse, "force-reparse", false, "ignore cached parse output")
	return cmd
}

func newParseCmd(a **app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "parse <folder-id> <filename>",
		Short: "Parse a statement and cache the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := (*a).processor()
			if err != nil {
				return err
			}
			doc, err := proc.ParseFile(cmd.Context(), args[0], args[1], force)
			if err != nil {
				return err
			}
			fmt.Printf("Parsed %s: %d chunks, pages %v\n", args[1], len(doc.Chunks), doc.Pages())
			for chunkType, count := range doc.ChunkTypeCounts() {
				fmt.Printf("  %s: %d\n", chunkType, count)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-parse even when a cached result exists")
	return cmd
}

func newExtractCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <folder-id> <filename>",
		Short: "Re-run extraction over a cached parse",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := (*a).processor()
			if err != nil {
				return err
			}
			csv, err := proc.ExtractFile(cmd.Context(), args[0], args[1])
			if errors.Is(err, service.ErrNotParsed) {
				return fmt.Errorf("%s has not been parsed yet, run parse or process first", args[1])
			}
			if err != nil {
				return err
			}
			fmt.Print(csv)
			return nil
		},
	}
}

func newSchemaCmd(a **app) *cobra.Command {
	cmd := &cobra.Command{Use: "schema", Short: "Manage per-file extraction schemas"}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <folder-id> <filename>",
		Short: "Print the schema in effect for a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := (*a).processor()
			if err != nil {
				return err
			}
			raw, custom, err := proc.Schema(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if custom {
				fmt.Fprintln(os.Stderr, "# custom schema")
			} else {
				fmt.Fprintln(os.Stderr, "# default schema")
			}
			fmt.Println(string(raw))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <folder-id> <filename> <schema.json>",
		Short: "Store a custom schema for a file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			proc, err := (*a).processor()
			if err != nil {
				return err
			}
			if err := proc.UpdateSchema(cmd.Context(), args[0], args[1], raw); err != nil {
				return err
			}
			fmt.Println("Schema stored")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <folder-id> <filename>",
		Short: "Remove a file's custom schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := (*a).processor()
			if err != nil {
				return err
			}
			existed, err := proc.DeleteSchema(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if existed {
				fmt.Println("Schema deleted")
			} else {
				fmt.Println("No custom schema was set")
			}
			return nil
		},
	})
	return cmd
}

func newStatusCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <folder-id> <filename>",
		Short: "Show processing progress for a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			proc, err := (*a).processor()
			if err != nil {
				return err
			}
			s := proc.Status(args[0], args[1])
			fmt.Printf("%s\t%d%%\t%s\n", s.Phase, s.Percent, s.Message)
			return nil
		},
	}
}

func newResultCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "result <folder-id> <filename>",
		Short: "Print the processed CSV for a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			csv, err := (*a).store.GetProcessedFileContent(cmd.Context(), args[0], args[1])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%s has not been processed yet", args[1])
			}
			if err != nil {
				return err
			}
			fmt.Print(csv)
			return nil
		},
	}
}

// withProgressBar renders a terminal progress bar fed from the processor's
// status tracker while fn runs.
func withProgressBar(proc *service.Processor, folderID, filename string, fn func() (string, error)) (string, error) {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("processing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s := proc.Status(folderID, filename)
				if s.Phase != "idle" {
					bar.Describe(s.Phase)
					_ = bar.Set(s.Percent)
				}
			}
		}
	}()

	out, err := fn()
	close(done)
	_ = bar.Finish()
	return out, err
}
