package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func (c *cli) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-model <dataset> <out.gob>",
		Short: "Fit the baseline forest on a dataset and save it as a model artifact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.export(cmd.Context(), cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func (c *cli) export(ctx context.Context, out io.Writer, datasetPath, outPath string) error {
	summary, err := c.newService().ExportModel(ctx, datasetPath, outPath)
	if err != nil {
		renderError(out, describeFailure(err))
		return err
	}
	renderSaved(out, "Saved model", summary.Path)
	fmt.Fprintln(out, field("Samples", fmt.Sprint(summary.Samples)))
	fmt.Fprintln(out, field("Features", fmt.Sprint(summary.Features)))
	fmt.Fprintln(out, field("Holdout accuracy", fmt.Sprintf("%.3f", summary.Accuracy)))
	return nil
}
