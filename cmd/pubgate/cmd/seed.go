package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"estate-backend/internal/store"
)

func newSeedCmd(opts *options) *cobra.Command {
	var file string
	c := &cobra.Command{
		Use:   "seed",
		Short: "Upsert field requirements from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			reqs, err := store.ReadSeedFile(file)
			if err != nil {
				printError("read seed file", err)
				return err
			}

			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			db, err := openStore(ctx, cfg, logger)
			if err != nil {
				printError("open rule store", err)
				return err
			}
			defer db.Close()

			if err := db.Seed(ctx, reqs); err != nil {
				printError("seed", err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d field requirements\n", len(reqs))
			return nil
		},
	}
	c.Flags().StringVarP(&file, "file", "f", "", "YAML seed file")
	return c
}
