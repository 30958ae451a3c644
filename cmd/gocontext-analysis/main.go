package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/dshills/gocontext-analysis/internal/config"
	"github.com/dshills/gocontext-analysis/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	workspace  string
	verbosity  int
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "gocontext-analysis",
		Short:         "Incremental Go source analysis engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			if opts.workspace != "" {
				cfg.Workspace = opts.workspace
			}
			if cmd.Flags().Changed("verbose") {
				cfg.Log.Verbosity = opts.verbosity
			}
			opts.cfg = cfg
			configureLogging(cfg.Log)
			return nil
		},
	}
	root.SetVersionTemplate(versionText())

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to YAML config file")
	root.PersistentFlags().StringVar(&opts.workspace, "workspace", "", "Workspace root (overrides config)")
	root.PersistentFlags().IntVarP(&opts.verbosity, "verbose", "v", 1, "Log verbosity (0 notices, 1 info, 2 debug)")

	root.AddCommand(
		newServeCmd(opts),
		newCheckCmd(opts),
	)
	return root
}

// configureLogging sends logs to stderr or a file; stdout is reserved for
// the MCP protocol
func configureLogging(cfg config.LogConfig) {
	if cfg.File != "" {
		path := cfg.File
		commonlog.Configure(cfg.Verbosity, &path)
		return
	}
	commonlog.Configure(cfg.Verbosity, nil)
}

func versionText() string {
	return fmt.Sprintf("gocontext-analysis %s\nBuild Time: %s\nBuild Mode: %s\nSQLite Driver: %s\n",
		version, buildTime, storage.BuildMode, storage.DriverName)
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
