package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bibneat/internal/library"
	"bibneat/internal/policy"
	"bibneat/internal/reconcile"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add an entry fetched from arXiv or doi.org",
	}
	addCmd.AddCommand(newAddArxivCommand(ctx))
	addCmd.AddCommand(newAddDOICommand(ctx))
	return addCmd
}

func newAddArxivCommand(ctx *commandContext) *cobra.Command {
	var noFollow bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "arxiv <id-or-url>",
		Aliases: []string{"preprint"},
		Short:   "Add an arXiv preprint, upgrading to the published record when one exists",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []reconcile.AddOption
			if noFollow {
				opts = append(opts, reconcile.WithImmediateFollow(false))
			}
			return runAdd(cmd, ctx, jsonOutput, func(orch *reconcile.Orchestrator) (*reconcile.AddResult, error) {
				return orch.AddPreprint(cmd.Context(), args[0], opts...)
			})
		},
	}
	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "Keep the preprint record even if it carries a DOI")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the added entry as JSON")
	return cmd
}

func newAddDOICommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "doi <doi-or-url>",
		Aliases: []string{"resolver"},
		Short:   "Add a published record by DOI",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, ctx, jsonOutput, func(orch *reconcile.Orchestrator) (*reconcile.AddResult, error) {
				return orch.AddResolver(cmd.Context(), args[0])
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the added entry as JSON")
	return cmd
}

func runAdd(cmd *cobra.Command, ctx *commandContext, jsonOutput bool, add func(*reconcile.Orchestrator) (*reconcile.AddResult, error)) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.logger(cmd)
	if err != nil {
		return err
	}
	return ctx.withLibrary(logger, func(store *library.Store) error {
		lock, err := lockPass(store)
		if err != nil {
			return err
		}
		defer lock.Unlock()

		orch, cleanup, err := ctx.orchestrator(store, logger, orchestratorOptions{policies: policy.FromConfig(cfg.Policy)})
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := add(orch)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, result)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Added %s from %s %s\n", result.Entry.Key, sourceLabel(result.Entry.Source), result.Identifier)
		if f := result.Followed; f != nil {
			if f.Applied == reconcile.AppliedReplaced {
				fmt.Fprintf(out, "Upgraded to published record %s\n", f.Identifier)
			} else {
				fmt.Fprintf(out, "Published record %s: %s; kept the preprint\n", f.Identifier, f.Status.Describe())
			}
		}
		return nil
	})
}

func sourceLabel(source string) string {
	switch source {
	case library.SourcePreprint:
		return "arXiv"
	case library.SourceResolver:
		return "DOI"
	default:
		return source
	}
}
