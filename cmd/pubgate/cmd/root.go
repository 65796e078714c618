package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"estate-backend/internal/config"
	"estate-backend/internal/logging"
	"estate-backend/internal/store"
)

type options struct {
	cfgFile string
	verbose bool
}

// NewRootCmd builds the pubgate command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "pubgate",
		Short: "Publication gate for property listings",
		Long: `pubgate manages the field requirements that must be filled before a
property listing may be published, and checks snapshots against them.

Commands:
  seed      - load requirements from a YAML file into the rule store
  rules     - list the required fields for a property type
  validate  - check a snapshot for a publication status change`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default: ./app.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newSeedCmd(opts), newRulesCmd(opts), newValidateCmd(opts))
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

func (o *options) load() (*config.Config, *zap.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.cfgFile != "" {
		cfg, err = config.LoadFile(o.cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	if o.verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store.Store, error) {
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Bootstrap(ctx, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
}
