package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bibneat/internal/bibtex"
	"bibneat/internal/config"
	"bibneat/internal/library"
	"bibneat/internal/services"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.bib|->",
		Short: "Append BibTeX entries to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return validationErr("import", err)
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			return ctx.withLibrary(logger, func(store *library.Store) error {
				summary, err := store.Import(cmd.Context(), string(data))
				if err != nil {
					var syntax *bibtex.SyntaxError
					if errors.As(err, &syntax) {
						return validationErr("import", err)
					}
					return services.Wrap(services.ErrStore, "library", "import", "", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d entries", summary.Added)
				if summary.Skipped > 0 {
					fmt.Fprintf(out, ", skipped %d", summary.Skipped)
				}
				fmt.Fprintln(out)
				for _, key := range summary.Duplicates {
					fmt.Fprintf(out, "  duplicate key: %s\n", key)
				}
				return nil
			})
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the library as BibTeX (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			return ctx.withLibrary(logger, func(store *library.Store) error {
				if len(args) == 0 || args[0] == "-" {
					return store.Export(cmd.Context(), cmd.OutOrStdout())
				}
				target, err := config.ExpandPath(args[0])
				if err != nil {
					return validationErr("export", err)
				}
				file, err := os.Create(target)
				if err != nil {
					return fmt.Errorf("create %s: %w", target, err)
				}
				if err := store.Export(cmd.Context(), file); err != nil {
					file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return fmt.Errorf("close %s: %w", target, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported library to %s\n", target)
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List library entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			return ctx.withLibrary(logger, func(store *library.Store) error {
				entries, err := store.List(cmd.Context())
				if err != nil {
					return services.Wrap(services.ErrStore, "library", "list", "", err)
				}
				if jsonOutput {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Library is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					preprint, doi, title := describeEntry(e)
					key := e.Key
					if key == "" {
						key = "@" + e.Type
					}
					rows = append(rows, []string{
						strconv.FormatInt(int64(e.Index), 10),
						key,
						truncate(title, 48),
						preprint,
						doi,
						sourceLabel(e.Source),
						strconv.Itoa(e.Revision),
					})
				}
				fmt.Fprintln(out, renderTable("", entryColumns, rows))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output entries as JSON")
	return cmd
}

func describeEntry(e library.Entry) (preprint, doi, title string) {
	if !e.IsRecord() {
		return "", "", ""
	}
	block, err := bibtex.ParseEntry(e.Content)
	if err != nil {
		return "", "", ""
	}
	title, _ = block.Field("title")
	return bibtex.PreprintCandidate(block), bibtex.DOICandidate(block), strings.Trim(title, "{}")
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every entry in the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return validationErr("reset", errors.New("refusing to clear the library without --yes"))
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			return ctx.withLibrary(logger, func(store *library.Store) error {
				if err := store.Reset(cmd.Context()); err != nil {
					return services.Wrap(services.ErrStore, "library", "reset", "", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Library cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm clearing the library")
	return cmd
}
