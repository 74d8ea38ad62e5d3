package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/ecoaudit/internal/auditclient"
)

func (c *cli) submitCmd() *cobra.Command {
	var (
		url    string
		epochs int
	)
	cmd := &cobra.Command{
		Use:   "submit <path>",
		Short: "Upload a dataset or model to a running server and print its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = c.cfg.ServerURL
			}
			return c.submit(cmd.Context(), cmd.OutOrStdout(), url, args[0], epochs)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "server base URL (overrides server_url)")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "measured epochs (server default when unset)")
	return cmd
}

func (c *cli) submit(ctx context.Context, out io.Writer, url, path string, epochs int) error {
	client, err := auditclient.New(url)
	if err != nil {
		return err
	}
	rep, err := client.Submit(ctx, path, epochs)
	if err != nil {
		renderError(out, err.Error())
		return err
	}
	data, err := json.MarshalIndent(rep, "", "    ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
