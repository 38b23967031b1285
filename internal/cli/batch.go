package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/storyqa/internal/evaluate"
	"github.com/ppiankov/storyqa/internal/filter"
	"github.com/ppiankov/storyqa/internal/jira"
	"github.com/ppiankov/storyqa/internal/model"
	"github.com/ppiankov/storyqa/internal/render"
)

var (
	batchCriteria    []string
	fromJira         bool
	concurrency      int
	batchTimeout     time.Duration
	ambiguityFilter  string
	wellFormedFilter string
	searchTerm       string
	dismissRefs      []string
	improvements     []string
	batchSuggest     bool
	batchLocal       bool
	outPath          string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Evaluate many stories from a file or Jira",
	Long: `Batch evaluates a working set of stories concurrently:
- Read stories from a text file (one per line), a YAML file, or Jira
- Evaluate every story against the selected criteria in parallel
- Dismiss stories or apply improved text, re-evaluating the edits
- Fetch suggestions for stories that need work
- Filter the result by verdict or search term

Example:
  storyqa batch stories.txt
  storyqa batch stories.yaml --concurrency 4 --out report.json
  storyqa batch --jira --ambiguity ambiguous --suggest
  storyqa batch stories.yaml --dismiss ABC-3 --improve "ABC-1=As a user, I want ..."`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringSliceVar(&batchCriteria, "criteria", []string{string(model.CriterionAmbiguity), string(model.CriterionWellFormed)}, "criteria to evaluate (ambiguity, well-formed)")
	batchCmd.Flags().BoolVar(&fromJira, "jira", false, "import stories from the configured Jira project")
	batchCmd.Flags().IntVar(&concurrency, "concurrency", -1, "stories in flight at once (0 = all, default from config)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")

	batchCmd.Flags().StringVar(&ambiguityFilter, "ambiguity", "all", "show only: all, clear, ambiguous")
	batchCmd.Flags().StringVar(&wellFormedFilter, "well-formed", "all", "show only: all, well-formed, not-well-formed")
	batchCmd.Flags().StringVar(&searchTerm, "search", "", "show only stories containing this text")

	batchCmd.Flags().StringArrayVar(&dismissRefs, "dismiss", nil, "remove a story by key or id (repeatable)")
	batchCmd.Flags().StringArrayVar(&improvements, "improve", nil, "replace a story's text: KEY=new text (repeatable)")
	batchCmd.Flags().BoolVar(&batchSuggest, "suggest", false, "fetch suggestions for stories that need improvement")
	batchCmd.Flags().BoolVar(&batchLocal, "local", false, "generate suggestions with the configured LLM provider")
	batchCmd.Flags().StringVar(&outPath, "out", "", "also write the JSON report to this path")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if fromJira == (len(args) == 1) {
		return &model.ValidationError{Field: "input", Message: "give either a file or --jira"}
	}
	sel, err := model.ParseSelection(batchCriteria)
	if err != nil {
		return err
	}
	if sel.Empty() {
		return &model.ValidationError{Field: "criteria", Message: "select at least one criterion"}
	}
	filters, err := parseFilters()
	if err != nil {
		return err
	}

	svc, err := newServices()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	records, source, err := loadBatch(ctx, svc, args)
	if err != nil {
		return err
	}

	opts := []evaluate.WorkingSetOption{
		evaluate.WithWorkingSetLogger(svc.logger),
		evaluate.WithOnEmpty(func() {
			fmt.Fprintln(os.Stderr, "All stories dismissed.")
		}),
	}
	if batchSuggest {
		client, err := svc.suggester(batchLocal)
		if err != nil {
			return err
		}
		opts = append(opts, evaluate.WithSuggestions(svc.suggestions(client)))
	}

	ws, err := evaluate.NewWorkingSet(svc.orchestrator(concurrency), records, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  storyqa batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Source:     %s\n", source)
	fmt.Fprintf(os.Stderr, "  Stories:    %d\n", ws.Len())
	fmt.Fprintf(os.Stderr, "  Criteria:   %s\n", joinCriteria(sel))
	fmt.Fprintf(os.Stderr, "\n")

	for _, ref := range dismissRefs {
		dismiss(ws, ref)
	}

	start := time.Now()
	outcomes := ws.Evaluate(ctx, sel)
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	fmt.Fprintf(os.Stderr, "✓ Evaluated %d stories in %v (%d failed)\n", len(outcomes), time.Since(start).Round(time.Millisecond), failed)

	for _, arg := range improvements {
		improve(ctx, ws, arg)
	}

	if batchSuggest {
		fetchSuggestions(ctx, ws, sel)
	}

	visible := filter.Apply(ws.Records(), filters)
	report := render.NewReport(visible, sel, ws.Err, render.WithSuggestionStatus(ws.SuggestionStatus))

	if outPath != "" {
		if err := render.WriteJSONFile(outPath, report); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outPath)
	}
	fmt.Fprintln(os.Stderr)

	if svc.cfg.Output.Format == "json" {
		return render.WriteJSON(cmd.OutOrStdout(), report)
	}
	render.NewPrinter(cmd.OutOrStdout()).Report(report)
	return nil
}

func parseFilters() (filter.Filters, error) {
	amb, err := filter.ParseAmbiguity(ambiguityFilter)
	if err != nil {
		return filter.Filters{}, err
	}
	wf, err := filter.ParseWellFormed(wellFormedFilter)
	if err != nil {
		return filter.Filters{}, err
	}
	return filter.Filters{Ambiguity: amb, WellFormed: wf, Search: searchTerm}, nil
}

// loadBatch returns the records to evaluate and a description of where they came from
func loadBatch(ctx context.Context, svc *services, args []string) ([]model.StoryRecord, string, error) {
	if !fromJira {
		records, err := evaluate.LoadStories(args[0])
		if err != nil {
			return nil, "", err
		}
		return records, args[0], nil
	}

	client, err := svc.jiraClient()
	if err != nil {
		return nil, "", err
	}
	stories, err := client.FetchStories(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("import from jira: %w", err)
	}
	return jira.ToRecords(stories), "jira " + svc.cfg.Jira.Project, nil
}

func dismiss(ws *evaluate.WorkingSet, ref string) {
	id, ok := ws.Lookup(ref)
	if !ok {
		fmt.Fprintf(os.Stderr, "✗ dismiss %s: no such story\n", ref)
		return
	}
	if _, err := ws.Dismiss(id); err != nil {
		fmt.Fprintf(os.Stderr, "✗ dismiss %s: %v\n", ref, err)
		return
	}
	fmt.Fprintf(os.Stderr, "✓ Dismissed %s\n", ref)
}

func improve(ctx context.Context, ws *evaluate.WorkingSet, arg string) {
	ref, text, ok := strings.Cut(arg, "=")
	if !ok {
		fmt.Fprintf(os.Stderr, "✗ improve %q: want KEY=text\n", arg)
		return
	}
	id, found := ws.Lookup(strings.TrimSpace(ref))
	if !found {
		fmt.Fprintf(os.Stderr, "✗ improve %s: no such story\n", ref)
		return
	}

	verdicts, err := ws.ApplyImprovement(ctx, id, strings.TrimSpace(text))
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ improve %s: %v (story left unchanged)\n", ref, err)
		return
	}
	fmt.Fprintf(os.Stderr, "✓ Improved %s (%s)\n", ref, verdicts)
}

func fetchSuggestions(ctx context.Context, ws *evaluate.WorkingSet, sel model.CriteriaSelection) {
	for _, rec := range ws.Records() {
		if !rec.Evaluated() || !model.NeedsImprovement(rec.Verdicts, sel) {
			continue
		}
		if _, err := ws.FetchSuggestions(ctx, rec.ID); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			fmt.Fprintf(os.Stderr, "✗ suggestions for %s: %v\n", rec.Label(), err)
		}
	}
}

func joinCriteria(sel model.CriteriaSelection) string {
	names := make([]string, 0, len(sel))
	for _, c := range sel.Selected() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
