package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	app "github.com/okian/ecoaudit/internal/app"
	"github.com/okian/ecoaudit/internal/domain/artifact"
	"github.com/okian/ecoaudit/internal/domain/model"
)

func (c *cli) auditCmd() *cobra.Command {
	var epochs int
	cmd := &cobra.Command{
		Use:   "audit [path]",
		Short: "Audit a local dataset (.csv, .tsv) or model (.gob)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				askEpochs := !cmd.Flags().Changed("epochs")
				prompted, n, err := promptAudit(askEpochs)
				if err != nil {
					return err
				}
				path = prompted
				if askEpochs {
					epochs = n
				}
			}
			return c.audit(cmd.Context(), cmd.OutOrStdout(), path, epochs)
		},
	}
	cmd.Flags().IntVar(&epochs, "epochs", 0, "measured epochs (default default_epochs)")
	return cmd
}

// promptAudit asks for the file path, and for epochs unless the flag was given.
func promptAudit(askEpochs bool) (string, int, error) {
	var path, epochs string
	form := huh.NewForm(huh.NewGroup(auditFields(&path, &epochs, askEpochs)...))
	if err := form.Run(); err != nil {
		return "", 0, err
	}
	return strings.TrimSpace(path), parseEpochInput(epochs), nil
}

func auditFields(path, epochs *string, askEpochs bool) []huh.Field {
	fields := []huh.Field{
		huh.NewInput().
			Title("Dataset or model file").
			Description(strings.Join(artifact.Extensions(), ", ")).
			Value(path).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("a file path is required")
				}
				return nil
			}),
	}
	if askEpochs {
		fields = append(fields, huh.NewInput().
			Title("Number of epochs").
			Placeholder("1").
			Value(epochs))
	}
	return fields
}

// parseEpochInput falls back to one epoch for anything that is not a positive integer.
func parseEpochInput(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (c *cli) audit(ctx context.Context, out io.Writer, path string, epochs int) error {
	svc := c.newService()
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	rep, err := svc.AuditFile(ctx, path, epochs)
	if err != nil {
		renderError(out, describeFailure(err))
		return err
	}
	renderReport(out, rep)

	saved, err := svc.SaveReport(rep)
	if err != nil {
		renderError(out, "Could not save report: "+err.Error())
		return err
	}
	renderSaved(out, "Saved JSON", saved)
	return nil
}

func describeFailure(err error) string {
	var missing *model.MissingDependencyError
	switch {
	case errors.Is(err, app.ErrFileNotFound):
		return "File not found."
	case errors.As(err, &missing):
		return "Missing dependency: " + missing.Name + ". Rebuild ecoaudit with this model type linked in."
	case errors.Is(err, artifact.ErrUnknownArtifact):
		return "Unsupported file structure."
	default:
		return "Audit failed: " + err.Error()
	}
}
