// Package evaluate runs criterion checks for one story or a batch of them
// and owns the working set those verdicts attach to.
package evaluate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/storyqa/internal/model"
)

// CriterionClient scores one story against one criterion
type CriterionClient interface {
	Evaluate(ctx context.Context, criterion model.Criterion, text string) (model.Verdict, error)
}

// Evaluator fans a story out over the selected criteria
type Evaluator struct {
	client CriterionClient
}

// NewEvaluator creates an evaluator over client
func NewEvaluator(client CriterionClient) *Evaluator {
	return &Evaluator{client: client}
}

// EvaluateOne checks text against every selected criterion concurrently.
// The first failure cancels the rest and no partial map is returned. An
// empty selection yields an empty map without any call.
func (e *Evaluator) EvaluateOne(ctx context.Context, text string, sel model.CriteriaSelection) (model.VerdictMap, error) {
	criteria := sel.Selected()
	if len(criteria) == 0 {
		return model.VerdictMap{}, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, &model.ValidationError{Field: "user_story", Message: "story text is empty"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	verdicts := make([]model.Verdict, len(criteria))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range criteria {
		g.Go(func() error {
			v, err := e.client.Evaluate(gctx, c, text)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", c, err)
			}
			verdicts[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(model.VerdictMap, len(criteria))
	for i, c := range criteria {
		out[c] = verdicts[i]
	}
	return out, nil
}
