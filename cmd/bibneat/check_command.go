package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bibneat/internal/identifier"
	"bibneat/internal/library"
	"bibneat/internal/logging"
	"bibneat/internal/policy"
	"bibneat/internal/reconcile"
	"bibneat/internal/registry"
)

type checkOptions struct {
	replace     bool
	follow      bool
	maxInFlight int
	jsonOutput  bool
}

type checkResult struct {
	Reports []*reconcile.Report `json:"reports"`
	Events  []logging.LogEvent  `json:"events"`
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:       "check [preprint|resolver|all]",
		Short:     "Look up every arXiv and DOI identifier in the library",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"preprint", "arxiv", "resolver", "doi", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}
			kinds, err := checkKinds(target)
			if err != nil {
				return err
			}
			return runCheck(cmd, ctx, kinds, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.replace, "replace", false, "Replace found entries with registry metadata")
	cmd.Flags().BoolVar(&opts.follow, "follow", false, "Follow found preprints to their published DOI record")
	cmd.Flags().IntVar(&opts.maxInFlight, "max-in-flight", 0, "Cap concurrent lookups (0 keeps reconcile.max_in_flight)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the pass reports as JSON")
	return cmd
}

func checkKinds(target string) ([]identifier.Kind, error) {
	if strings.EqualFold(strings.TrimSpace(target), "all") {
		return identifier.Kinds, nil
	}
	kind, err := identifier.ParseKind(target)
	if err != nil {
		return nil, validationErr("check", err)
	}
	return []identifier.Kind{kind}, nil
}

func runCheck(cmd *cobra.Command, ctx *commandContext, kinds []identifier.Kind, opts checkOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	set := policy.FromConfig(cfg.Policy)
	if cmd.Flags().Changed("replace") {
		set.Preprint.ReplaceOnFound = opts.replace
		set.Resolver.ReplaceOnFound = opts.replace
	}
	if cmd.Flags().Changed("follow") {
		set.Preprint.FollowToPublished = opts.follow
	}

	hub := logging.NewStreamHub(1024)
	var extra []slog.Handler
	if opts.jsonOutput {
		extra = append(extra, hub.Handler(slog.LevelInfo))
	}
	logger, err := ctx.logger(cmd, extra...)
	if err != nil {
		return err
	}

	reconcileOpts := []reconcile.Option{}
	if opts.maxInFlight > 0 {
		reconcileOpts = append(reconcileOpts, reconcile.WithMaxInFlight(opts.maxInFlight))
	}
	if !opts.jsonOutput && shouldColorize(cmd.ErrOrStderr()) {
		reconcileOpts = append(reconcileOpts, reconcile.WithProgress(progressPrinter(cmd.ErrOrStderr())))
	}

	return ctx.withLibrary(logger, func(store *library.Store) error {
		lock, err := lockPass(store)
		if err != nil {
			return err
		}
		defer lock.Unlock()

		orch, cleanup, err := ctx.orchestrator(store, logger, orchestratorOptions{policies: set, opts: reconcileOpts})
		if err != nil {
			return err
		}
		defer cleanup()

		result := checkResult{}
		for _, kind := range kinds {
			report, err := orch.Run(cmd.Context(), kind)
			if err != nil {
				return err
			}
			result.Reports = append(result.Reports, report)
		}

		if opts.jsonOutput {
			result.Events, _ = hub.Tail(0)
			return writeJSON(cmd, result)
		}
		renderCheck(cmd.OutOrStdout(), result.Reports, shouldColorize(cmd.OutOrStdout()))
		return nil
	})
}

func progressPrinter(w io.Writer) reconcile.ProgressFunc {
	return func(_ library.EntryIndex, _ registry.Result, settled, total int) {
		fmt.Fprintf(w, "\rlooked up %d/%d", settled, total)
		if settled == total {
			fmt.Fprint(w, "\r\x1b[K")
		}
	}
}

func renderCheck(out io.Writer, reports []*reconcile.Report, colorize bool) {
	for _, report := range reports {
		title := fmt.Sprintf("%s identifiers", identifierRegistry(report.Kind))
		if len(report.Outcomes) == 0 {
			if report.Discarded {
				fmt.Fprintf(out, "%s: library was reset during the pass; results discarded\n", title)
			} else {
				fmt.Fprintf(out, "%s: none in library\n", title)
			}
			continue
		}

		rows := make([][]string, 0, len(report.Outcomes))
		for _, o := range report.Outcomes {
			follow := ""
			if o.Followed != nil {
				follow = fmt.Sprintf("%s %s (%s)", o.Followed.Identifier, renderStatus(o.Followed.Status, colorize), o.Followed.Applied)
			} else if o.Alternate != "" {
				follow = o.Alternate
			}
			rows = append(rows, []string{
				o.Key,
				o.Identifier,
				renderStatus(o.Status, colorize),
				renderApplied(o.Applied, colorize),
				follow,
			})
		}
		fmt.Fprintln(out, renderTable(title, outcomeColumns, rows))
		fmt.Fprintln(out, summarizeReport(report))
	}
}

func summarizeReport(report *reconcile.Report) string {
	counts := report.Counts()
	parts := make([]string, 0, len(registry.Statuses))
	for _, status := range registry.Statuses {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ReplaceAll(status.String(), "_", " ")))
		}
	}
	line := fmt.Sprintf("Checked %d entries in %s: %s", len(report.Outcomes), report.Duration().Round(time.Millisecond), strings.Join(parts, ", "))
	if n := report.Replaced(); n > 0 {
		line += fmt.Sprintf("; %d replaced", n)
	}
	if report.Discarded {
		line += "; results discarded after reset"
	}
	return line
}

func identifierRegistry(kind string) string {
	parsed, err := identifier.ParseKind(kind)
	if err != nil {
		return kind
	}
	return parsed.Registry()
}
