package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/dshills/gocontext-analysis/internal/engine"
	"github.com/dshills/gocontext-analysis/internal/mcp"
	"github.com/dshills/gocontext-analysis/internal/storage"
)

var log = commonlog.GetLogger("gocontext.cmd")

func newServeCmd(opts *rootOptions) *cobra.Command {
	var noIndex bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis engine as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Infof("gocontext-analysis %s starting (build mode %s, driver %s)", version, storage.BuildMode, storage.DriverName)

			eng, err := engine.New(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := eng.Shutdown(); err != nil {
					log.Errorf("shutdown: %v", err)
				}
			}()

			server, err := mcp.NewServer(eng)
			if err != nil {
				return err
			}

			if opts.cfg.Workspace != "" && !noIndex {
				go func() {
					if _, err := eng.IndexWorkspace(ctx, false); err != nil {
						log.Warningf("initial indexing failed: %v", err)
					}
				}()
			}

			errChan := make(chan error, 1)
			go func() {
				log.Infof("MCP server ready, listening on stdio")
				errChan <- server.Serve(ctx)
			}()

			select {
			case <-ctx.Done():
				log.Infof("received shutdown signal")
				return nil
			case err := <-errChan:
				return err
			}
		},
	}
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "Skip indexing the workspace on startup")
	return cmd
}
