package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"estate-backend/internal/metadata"
)

func newRulesCmd(opts *options) *cobra.Command {
	var (
		propertyType string
		rulesFile    string
	)
	c := &cobra.Command{
		Use:   "rules",
		Short: "List the required fields for a property type",
		RunE: func(cmd *cobra.Command, args []string) error {
			if propertyType == "" {
				return fmt.Errorf("--type is required")
			}
			src, closeFn, err := requirementSource(cmd, opts, rulesFile)
			if err != nil {
				return err
			}
			defer closeFn()

			fields, err := src.RequiredFields(cmd.Context(), propertyType)
			if err != nil {
				printError("load field requirements", err)
				return err
			}
			return printFields(cmd, fields)
		},
	}
	c.Flags().StringVarP(&propertyType, "type", "t", "", "property type")
	c.Flags().StringVar(&rulesFile, "rules", "", "read requirements from a YAML file instead of the rule store")
	return c
}

func printFields(cmd *cobra.Command, fields []metadata.RequiredField) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tATTRIBUTE\tLABEL\tCONDITION")
	for _, f := range fields {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Entity, f.Attribute, f.Label, f.Condition)
	}
	return w.Flush()
}
