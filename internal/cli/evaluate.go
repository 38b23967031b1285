package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/storyqa/internal/evaluate"
	"github.com/ppiankov/storyqa/internal/model"
	"github.com/ppiankov/storyqa/internal/render"
	"github.com/ppiankov/storyqa/internal/suggest"
)

const defaultRunTimeout = 2 * time.Minute

var (
	criteria        []string
	withSuggestions bool
	localSuggest    bool
	runTimeout      time.Duration
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate <story>",
	Short: "Evaluate a single user story",
	Long: `Evaluate sends one user story to the prediction service for every
selected criterion and prints the verdicts with improvement tips.

Example:
  storyqa evaluate "As a user, I want to reset my password so that I can log in"
  storyqa evaluate "fast login" --criteria ambiguity --suggest
  storyqa evaluate "fast login" --suggest --local --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringSliceVar(&criteria, "criteria", []string{string(model.CriterionAmbiguity), string(model.CriterionWellFormed)}, "criteria to evaluate (ambiguity, well-formed)")
	evaluateCmd.Flags().BoolVar(&withSuggestions, "suggest", false, "fetch improvement suggestions when a criterion fails")
	evaluateCmd.Flags().BoolVar(&localSuggest, "local", false, "generate suggestions with the configured LLM provider")
	evaluateCmd.Flags().DurationVar(&runTimeout, "timeout", defaultRunTimeout, "overall timeout")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	sel, err := model.ParseSelection(criteria)
	if err != nil {
		return err
	}

	svc, err := newServices()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	var form *evaluate.Form
	if withSuggestions {
		client, err := svc.suggester(localSuggest)
		if err != nil {
			return err
		}
		form = evaluate.NewForm(svc.evaluator(), svc.suggestions(client))
	} else {
		form = evaluate.NewForm(svc.evaluator(), nil)
	}

	rec, err := form.Submit(ctx, text, sel)
	if err != nil {
		return fmt.Errorf("evaluate story: %w", err)
	}

	var status suggest.Status
	if withSuggestions && form.CanImprove() {
		parsed, err := form.Suggestions(ctx)
		if err != nil {
			svc.logger.Warn("suggestions unavailable", "error", err)
			fmt.Fprintf(os.Stderr, "⚠ Suggestions unavailable: %v\n", err)
			status = suggest.Status{State: suggest.StateFailed, Err: err}
		} else {
			rec.Suggestions = parsed
			rec.SuggestionsFetched = true
			status = suggest.Status{State: suggest.StateReady, Count: len(parsed)}
			if len(parsed) == 0 {
				status.State = suggest.StateEmpty
			}
		}
	}

	view := render.NewStoryView(rec, sel, nil)
	view.SetSuggestionStatus(status)
	if svc.cfg.Output.Format == "json" {
		return render.WriteJSON(cmd.OutOrStdout(), view)
	}

	p := render.NewPrinter(cmd.OutOrStdout())
	p.Story(view)
	if withSuggestions && rec.SuggestionsFetched && len(rec.Suggestions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No suggestions.")
	}
	return nil
}
