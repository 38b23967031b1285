package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ppiankov/storyqa/internal/model"
	"github.com/ppiankov/storyqa/internal/render"
	"github.com/ppiankov/storyqa/internal/suggest"
)

var suggestLocal bool

// suggestCmd represents the suggest command
var suggestCmd = &cobra.Command{
	Use:   "suggest <story>",
	Short: "Get improvement suggestions for a story with known verdicts",
	Long: `Suggest asks for improvement advice for a story whose verdicts are
already known, and prints it as an outline. Verdicts use the wire values:
ambiguity 1 = clear, 0 = ambiguous; well-formed 1 = well-formed, 0 = not.

Example:
  storyqa suggest "fast login" --ambiguity 0 --well-formed 0
  storyqa suggest "fast login" --ambiguity 0 --local`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	suggestCmd.Flags().Int("ambiguity", 0, "ambiguity verdict (0 or 1)")
	suggestCmd.Flags().Int("well-formed", 0, "well-formed verdict (0 or 1)")
	suggestCmd.Flags().BoolVar(&suggestLocal, "local", false, "generate suggestions with the configured LLM provider")
	suggestCmd.Flags().DurationVar(&runTimeout, "timeout", defaultRunTimeout, "overall timeout")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	verdicts, err := verdictsFromFlags(cmd)
	if err != nil {
		return err
	}

	svc, err := newServices()
	if err != nil {
		return err
	}
	client, err := svc.suggester(suggestLocal)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	raw, err := svc.suggestions(client).GetSuggestions(ctx, uuid.NewString(), text, verdicts)
	if err != nil {
		return fmt.Errorf("get suggestions: %w", err)
	}
	parsed := suggest.ParseAll(raw)

	if svc.cfg.Output.Format == "json" {
		return render.WriteJSON(cmd.OutOrStdout(), struct {
			Story       string                       `json:"user_story"`
			Verdicts    model.VerdictMap             `json:"verdicts"`
			Tips        []string                     `json:"tips,omitempty"`
			Suggestions []model.StructuredSuggestion `json:"suggestions"`
		}{text, verdicts, suggest.Tips(verdicts), parsed})
	}

	p := render.NewPrinter(cmd.OutOrStdout())
	for _, tip := range suggest.Tips(verdicts) {
		fmt.Fprintf(cmd.OutOrStdout(), "• %s\n", tip)
	}
	p.Suggestions(parsed)
	return nil
}

// verdictsFromFlags includes only the verdicts the user actually set
func verdictsFromFlags(cmd *cobra.Command) (model.VerdictMap, error) {
	verdicts := model.VerdictMap{}
	for flag, c := range map[string]model.Criterion{
		"ambiguity":   model.CriterionAmbiguity,
		"well-formed": model.CriterionWellFormed,
	} {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		v, err := cmd.Flags().GetInt(flag)
		if err != nil {
			return nil, err
		}
		verdict := model.Verdict(v)
		if !verdict.Valid() {
			return nil, &model.ValidationError{Field: flag, Message: "verdict must be 0 or 1"}
		}
		verdicts[c] = verdict
	}
	return verdicts, nil
}
