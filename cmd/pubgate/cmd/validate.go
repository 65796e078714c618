package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"estate-backend/internal/engine"
	"estate-backend/internal/metadata"
	"estate-backend/internal/store"
)

// ErrBlocked is returned by validate when the snapshot may not enter the
// requested status.
var ErrBlocked = errors.New("publication blocked")

func newValidateCmd(opts *options) *cobra.Command {
	var (
		snapshotFile string
		requested    string
		current      string
		rulesFile    string
	)
	c := &cobra.Command{
		Use:   "validate",
		Short: "Check a property snapshot for a publication status change",
		Long: `validate reads a JSON document of the form

  {"record": {...}, "pending": {...}, "requested_status": "公開", "current_status": "非公開"}

and reports whether the merged snapshot may enter the requested status.
--status and --current override the statuses in the document.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if snapshotFile == "" {
				return fmt.Errorf("--snapshot is required")
			}
			req, err := readValidateRequest(snapshotFile)
			if err != nil {
				printError("read snapshot", err)
				return err
			}
			if requested != "" {
				req.RequestedStatus = requested
			}
			if cmd.Flags().Changed("current") {
				req.CurrentStatus = &current
			}
			if req.RequestedStatus == "" {
				return fmt.Errorf("requested status is required (--status)")
			}

			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			src, closeFn, err := requirementSource(cmd, opts, rulesFile)
			if err != nil {
				return err
			}
			defer closeFn()

			v := engine.NewValidator(src, engine.ValidatorConfig{
				GatedStatuses:         cfg.Publication.GatedStatuses,
				PropertyTypeAttribute: cfg.Publication.PropertyTypeAttribute,
			}, logger)

			snap := engine.Merge(engine.SnapshotFromMap(req.Record), engine.SnapshotFromMap(req.Pending))
			cur := ""
			if req.CurrentStatus != nil {
				cur = *req.CurrentStatus
			}
			outcome, err := v.Validate(cmd.Context(), snap, req.RequestedStatus, cur)
			if err != nil {
				printError("validate", err)
				return err
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(outcome); err != nil {
				return err
			}
			if outcome.IsValid {
				return nil
			}
			fmt.Fprintln(out, engine.NewFormatter(cfg.Publication.LabelSeparator).Format(outcome, req.RequestedStatus))
			return ErrBlocked
		},
	}
	c.Flags().StringVarP(&snapshotFile, "snapshot", "s", "", "JSON snapshot document")
	c.Flags().StringVar(&requested, "status", "", "requested publication status")
	c.Flags().StringVar(&current, "current", "", "current publication status")
	c.Flags().StringVar(&rulesFile, "rules", "", "read requirements from a YAML file instead of the rule store")
	return c
}

func readValidateRequest(path string) (*engine.ValidateRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req engine.ValidateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &req, nil
}

// requirementSource returns a registry over the rules file when one is
// given, and over the configured rule store otherwise.
func requirementSource(cmd *cobra.Command, opts *options, rulesFile string) (engine.RequirementSource, func(), error) {
	if rulesFile != "" {
		reqs, err := store.ReadSeedFile(rulesFile)
		if err != nil {
			printError("read rules file", err)
			return nil, nil, err
		}
		return metadata.NewRegistry(metadata.StaticLoader(reqs), 0, nil), func() {}, nil
	}

	cfg, logger, err := opts.load()
	if err != nil {
		return nil, nil, err
	}
	db, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		printError("open rule store", err)
		return nil, nil, err
	}
	return metadata.NewRegistry(db, 0, logger), db.Close, nil
}
