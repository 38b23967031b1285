package evaluate

import (
	"context"
	"log/slog"

	"github.com/ppiankov/storyqa/internal/model"
	"github.com/ppiankov/storyqa/internal/worker"
)

// Outcome is the per-story result of a batch run
type Outcome struct {
	ID       string
	Verdicts model.VerdictMap
	Err      error
	Skipped  bool // Already evaluated; no call was made
}

type storyResult struct {
	index    int
	verdicts model.VerdictMap
	err      error
}

func (r *storyResult) GetError() error {
	return r.err
}

// Orchestrator evaluates batches of stories
type Orchestrator struct {
	evaluator *Evaluator
	batch     *worker.BatchProcessor
	logger    *slog.Logger
}

// NewOrchestrator creates a batch orchestrator. workers bounds how many
// stories are in flight at once; zero means all pending stories.
func NewOrchestrator(evaluator *Evaluator, workers int, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		evaluator: evaluator,
		batch:     worker.NewBatchProcessor(workers),
		logger:    logger,
	}
}

// Evaluator returns the single-story evaluator the orchestrator uses
func (o *Orchestrator) Evaluator() *Evaluator {
	return o.evaluator
}

// EvaluateBatch evaluates every story that has no verdict map yet and
// passes evaluated ones through untouched. Outcomes follow input order;
// one story's failure does not affect the others.
func (o *Orchestrator) EvaluateBatch(ctx context.Context, stories []model.StoryRecord, sel model.CriteriaSelection) []Outcome {
	outcomes := make([]Outcome, len(stories))
	var jobs []worker.Job

	for i, s := range stories {
		outcomes[i].ID = s.ID
		if s.Evaluated() {
			outcomes[i].Verdicts = s.Verdicts.Clone()
			outcomes[i].Skipped = true
			continue
		}

		text := s.Text
		jobs = append(jobs, worker.JobFunc(func(ctx context.Context) worker.Result {
			v, err := o.evaluator.EvaluateOne(ctx, text, sel)
			return &storyResult{index: i, verdicts: v, err: err}
		}))
	}

	o.logger.Info("evaluating batch",
		"stories", len(stories),
		"pending", len(jobs),
		"workers", o.batch.Width(len(jobs)),
		"criteria", len(sel.Selected()))

	done := make([]bool, len(stories))
	for _, r := range o.batch.Run(ctx, jobs) {
		res := r.(*storyResult)
		done[res.index] = true
		outcomes[res.index].Verdicts = res.verdicts
		outcomes[res.index].Err = res.err
		if res.err != nil {
			o.logger.Warn("story evaluation failed", "id", stories[res.index].ID, "error", res.err)
		}
	}

	for i := range outcomes {
		if !outcomes[i].Skipped && !done[i] {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			outcomes[i].Err = err
		}
	}
	return outcomes
}
