package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	"github.com/dshills/gocontext-analysis/internal/document"
	"github.com/dshills/gocontext-analysis/internal/engine"
	"github.com/dshills/gocontext-analysis/internal/lspconv"
	"github.com/dshills/gocontext-analysis/internal/scheduler"
	"github.com/dshills/gocontext-analysis/pkg/types"
)

// errDiagnostics makes check exit non-zero when any error is reported
var errDiagnostics = errors.New("errors found")

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var jsonOut, noIndex bool

	cmd := &cobra.Command{
		Use:   "check <files...>",
		Short: "Analyze files once and print their diagnostics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			files := make([]string, 0, len(args))
			for _, arg := range args {
				abs, err := filepath.Abs(arg)
				if err != nil {
					return err
				}
				files = append(files, abs)
			}

			cfg := *opts.cfg
			cfg.Watcher.Enabled = false
			if cfg.Workspace == "" {
				cfg.Workspace = filepath.Dir(files[0])
			}

			eng, err := engine.New(ctx, &cfg)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Shutdown() }()

			if !noIndex {
				if _, err := eng.IndexWorkspace(ctx, false); err != nil {
					return fmt.Errorf("failed to index %s: %w", cfg.Workspace, err)
				}
			}

			var published []*protocol.PublishDiagnosticsParams
			failed := false
			out := cmd.OutOrStdout()
			for _, file := range files {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				uri := document.URIFromPath(file)
				if err := eng.Open(uri, string(data), 1); err != nil {
					return err
				}
				result, err := eng.Diagnostics(ctx, uri)
				if err != nil {
					return err
				}
				if result == nil {
					continue
				}

				if types.HasErrors(result.Diagnostics) {
					failed = true
				}
				if jsonOut {
					published = append(published, lspconv.PublishDiagnostics(scheduler.DiagnosticsUpdate{
						URI:         result.URI,
						Version:     result.Version,
						Diagnostics: result.Diagnostics,
					}))
					continue
				}
				rel := relativeTo(cfg.Workspace, file)
				for _, d := range result.Diagnostics {
					printf(out, "%s:%s: %s: %s (%s)\n", rel, d.Range.Start, d.Severity, d.Message, d.Code)
				}
			}

			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(published); err != nil {
					return err
				}
			}
			if failed {
				return errDiagnostics
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print editor-protocol PublishDiagnostics JSON")
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "Do not index the workspace first")
	return cmd
}

func relativeTo(root, file string) string {
	if rel, err := filepath.Rel(root, file); err == nil {
		return filepath.ToSlash(rel)
	}
	return file
}
