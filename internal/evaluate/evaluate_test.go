package evaluate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/storyqa/internal/model"
	"github.com/ppiankov/storyqa/internal/suggest"
)

type mockCriterionClient struct {
	calls    atomic.Int32
	mu       sync.Mutex
	verdicts map[model.Criterion]model.Verdict
	failText map[string]error
	perCall  map[model.Criterion]error
	delay    time.Duration
	seen     []string
}

func (m *mockCriterionClient) Evaluate(ctx context.Context, c model.Criterion, text string) (model.Verdict, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.seen = append(m.seen, text)
	failText := m.failText[text]
	perCall := m.perCall[c]
	v := m.verdicts[c]
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if failText != nil {
		return 0, failText
	}
	if perCall != nil {
		return 0, perCall
	}
	return v, nil
}

func scenarioClient() *mockCriterionClient {
	return &mockCriterionClient{verdicts: map[model.Criterion]model.Verdict{
		model.CriterionAmbiguity:  model.Ambiguous,
		model.CriterionWellFormed: model.WellFormed,
	}}
}

func TestEvaluateOne_ScenarioVerdicts(t *testing.T) {
	client := scenarioClient()
	got, err := NewEvaluator(client).EvaluateOne(context.Background(), "As a user I want to login", model.SelectAll())
	require.NoError(t, err)

	assert.Equal(t, model.VerdictMap{"ambiguity": 0, "well-formed": 1}, got)
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestEvaluateOne_OnlySelected(t *testing.T) {
	client := scenarioClient()
	sel := model.CriteriaSelection{model.CriterionWellFormed: true, model.CriterionAmbiguity: false}

	got, err := NewEvaluator(client).EvaluateOne(context.Background(), "story", sel)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictMap{model.CriterionWellFormed: model.WellFormed}, got)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestEvaluateOne_EmptySelection(t *testing.T) {
	client := scenarioClient()
	got, err := NewEvaluator(client).EvaluateOne(context.Background(), "", model.CriteriaSelection{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, client.calls.Load())
}

func TestEvaluateOne_FailFast(t *testing.T) {
	client := scenarioClient()
	client.perCall = map[model.Criterion]error{
		model.CriterionWellFormed: &model.RemoteUnavailableError{Endpoint: "/predict/well-formed", StatusCode: 503},
	}

	got, err := NewEvaluator(client).EvaluateOne(context.Background(), "story", model.SelectAll())
	assert.Nil(t, got)
	assert.ErrorIs(t, err, model.ErrRemoteUnavailable)
}

func TestEvaluateOne_RunsConcurrently(t *testing.T) {
	client := scenarioClient()
	client.delay = 50 * time.Millisecond

	start := time.Now()
	_, err := NewEvaluator(client).EvaluateOne(context.Background(), "story", model.SelectAll())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 95*time.Millisecond)
}

func TestEvaluateOne_EmptyText(t *testing.T) {
	client := scenarioClient()
	_, err := NewEvaluator(client).EvaluateOne(context.Background(), "  ", model.SelectAll())
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Zero(t, client.calls.Load())
}

func records(texts ...string) []model.StoryRecord {
	out := make([]model.StoryRecord, len(texts))
	for i, text := range texts {
		out[i] = model.StoryRecord{ID: "id-" + text, Key: text, Text: text}
	}
	return out
}

func TestEvaluateBatch_SkipsEvaluatedRecords(t *testing.T) {
	client := scenarioClient()
	o := NewOrchestrator(NewEvaluator(client), 0, nil)

	stories := records("a", "b", "c")
	stories[1].Verdicts = model.VerdictMap{model.CriterionAmbiguity: model.Clear}

	outcomes := o.EvaluateBatch(context.Background(), stories, model.SelectAll())

	require.Len(t, outcomes, 3)
	assert.Equal(t, int32(4), client.calls.Load(), "two pending stories times two criteria")
	assert.True(t, outcomes[1].Skipped)
	assert.Equal(t, model.VerdictMap{model.CriterionAmbiguity: model.Clear}, outcomes[1].Verdicts)

	client.mu.Lock()
	assert.NotContains(t, client.seen, "b")
	client.mu.Unlock()

	for i, id := range []string{"id-a", "id-b", "id-c"} {
		assert.Equal(t, id, outcomes[i].ID)
	}
}

func TestEvaluateBatch_PartialFailure(t *testing.T) {
	client := scenarioClient()
	client.failText = map[string]error{"b": &model.DecodeError{Endpoint: "/predict/ambiguity", Message: "bad"}}
	o := NewOrchestrator(NewEvaluator(client), 2, nil)

	outcomes := o.EvaluateBatch(context.Background(), records("a", "b", "c", "d"), model.SelectAll())

	require.Len(t, outcomes, 4)
	assert.ErrorIs(t, outcomes[1].Err, model.ErrDecodeFailure)
	assert.Nil(t, outcomes[1].Verdicts)
	for _, i := range []int{0, 2, 3} {
		assert.NoError(t, outcomes[i].Err)
		assert.Equal(t, model.VerdictMap{"ambiguity": 0, "well-formed": 1}, outcomes[i].Verdicts)
	}
}

func TestEvaluateBatch_MapsByIdentityNotCompletionOrder(t *testing.T) {
	client := &slowFirstClient{}
	o := NewOrchestrator(NewEvaluator(client), 0, nil)

	outcomes := o.EvaluateBatch(context.Background(), records("slow", "fast"),
		model.CriteriaSelection{model.CriterionAmbiguity: true})

	assert.Equal(t, model.Ambiguous, outcomes[0].Verdicts[model.CriterionAmbiguity])
	assert.Equal(t, model.Clear, outcomes[1].Verdicts[model.CriterionAmbiguity])
}

type slowFirstClient struct{}

func (slowFirstClient) Evaluate(_ context.Context, _ model.Criterion, text string) (model.Verdict, error) {
	if text == "slow" {
		time.Sleep(30 * time.Millisecond)
		return model.Ambiguous, nil
	}
	return model.Clear, nil
}

func TestEvaluateBatch_Cancelled(t *testing.T) {
	client := scenarioClient()
	o := NewOrchestrator(NewEvaluator(client), 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := o.EvaluateBatch(ctx, records("a", "b"), model.SelectAll())
	for _, oc := range outcomes {
		assert.Error(t, oc.Err)
	}
}

func newSet(t *testing.T, client CriterionClient, recs []model.StoryRecord, opts ...WorkingSetOption) *WorkingSet {
	t.Helper()
	ws, err := NewWorkingSet(NewOrchestrator(NewEvaluator(client), 0, nil), recs, opts...)
	require.NoError(t, err)
	return ws
}

func TestNewWorkingSet_RejectsDuplicates(t *testing.T) {
	recs := append(records("a"), records("a")...)
	_, err := NewWorkingSet(NewOrchestrator(NewEvaluator(scenarioClient()), 0, nil), recs)
	assert.ErrorIs(t, err, ErrDuplicateStory)
}

func TestWorkingSet_EvaluateAttachesVerdicts(t *testing.T) {
	client := scenarioClient()
	ws := newSet(t, client, records("a", "b"))

	ws.Evaluate(context.Background(), model.SelectAll())
	for _, r := range ws.Records() {
		assert.True(t, r.Evaluated())
	}

	ws.Evaluate(context.Background(), model.SelectAll())
	assert.Equal(t, int32(4), client.calls.Load(), "second run skips evaluated records")
}

func TestWorkingSet_FailedRecordStaysUnevaluated(t *testing.T) {
	client := scenarioClient()
	client.failText = map[string]error{"b": &model.RemoteUnavailableError{Endpoint: "/predict/ambiguity"}}
	ws := newSet(t, client, records("a", "b"))

	ws.Evaluate(context.Background(), model.SelectAll())

	b, ok := ws.Get("id-b")
	require.True(t, ok)
	assert.False(t, b.Evaluated())
	assert.ErrorIs(t, ws.Err("id-b"), model.ErrRemoteUnavailable)
	assert.NoError(t, ws.Err("id-a"))
}

func TestWorkingSet_DismissLastSignalsOnce(t *testing.T) {
	var fired atomic.Int32
	ws := newSet(t, scenarioClient(), records("a", "b"), WithOnEmpty(func() { fired.Add(1) }))

	emptied, err := ws.Dismiss("id-a")
	require.NoError(t, err)
	assert.False(t, emptied)

	emptied, err = ws.Dismiss("id-b")
	require.NoError(t, err)
	assert.True(t, emptied)
	assert.True(t, ws.Empty())

	_, err = ws.Dismiss("id-b")
	assert.ErrorIs(t, err, ErrUnknownStory)
	assert.Equal(t, int32(1), fired.Load())
	assert.True(t, ws.Retired("id-a"))
}

func TestWorkingSet_DismissedRecordNotEvaluated(t *testing.T) {
	client := scenarioClient()
	ws := newSet(t, client, records("a", "b"))

	_, err := ws.Dismiss("id-a")
	require.NoError(t, err)
	ws.Evaluate(context.Background(), model.SelectAll())

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.NotContains(t, client.seen, "a")
	assert.Len(t, ws.Records(), 1)
}

func TestWorkingSet_ApplyImprovementSuccess(t *testing.T) {
	client := scenarioClient()
	ws := newSet(t, client, records("a"))
	ws.Evaluate(context.Background(), model.CriteriaSelection{model.CriterionAmbiguity: true})

	client.mu.Lock()
	client.verdicts[model.CriterionAmbiguity] = model.Clear
	client.mu.Unlock()

	got, err := ws.ApplyImprovement(context.Background(), "id-a", "As a shopper, I want to save my cart so that I can finish later.")
	require.NoError(t, err)

	want := model.VerdictMap{model.CriterionAmbiguity: model.Clear, model.CriterionWellFormed: model.WellFormed}
	assert.Equal(t, want, got, "improvement always checks every criterion")

	rec, _ := ws.Get("id-a")
	assert.Equal(t, "As a shopper, I want to save my cart so that I can finish later.", rec.Text)
	assert.Equal(t, want, rec.Verdicts)
}

func TestWorkingSet_ApplyImprovementFailureLeavesRecord(t *testing.T) {
	client := scenarioClient()
	ws := newSet(t, client, records("a"))
	ws.Evaluate(context.Background(), model.SelectAll())
	before, _ := ws.Get("id-a")

	client.mu.Lock()
	client.failText = map[string]error{"better": &model.RemoteUnavailableError{Endpoint: "/predict/ambiguity", StatusCode: 500}}
	client.mu.Unlock()

	_, err := ws.ApplyImprovement(context.Background(), "id-a", "better")
	require.ErrorIs(t, err, model.ErrRemoteUnavailable)

	after, _ := ws.Get("id-a")
	assert.Equal(t, before, after)
}

func TestWorkingSet_ApplyImprovementValidation(t *testing.T) {
	client := scenarioClient()
	ws := newSet(t, client, records("a"))

	_, err := ws.ApplyImprovement(context.Background(), "id-a", " ")
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = ws.ApplyImprovement(context.Background(), "nope", "text")
	assert.ErrorIs(t, err, ErrUnknownStory)
	assert.Zero(t, client.calls.Load())
}

func TestWorkingSet_ApplyImprovementAfterDismiss(t *testing.T) {
	client := scenarioClient()
	client.delay = 30 * time.Millisecond
	ws := newSet(t, client, records("a", "b"))

	errc := make(chan error, 1)
	go func() {
		_, err := ws.ApplyImprovement(context.Background(), "id-a", "new text")
		errc <- err
	}()
	require.Eventually(t, func() bool { return client.calls.Load() > 0 }, time.Second, time.Millisecond)
	_, err := ws.Dismiss("id-a")
	require.NoError(t, err)

	assert.ErrorIs(t, <-errc, ErrUnknownStory)
	_, ok := ws.Get("id-a")
	assert.False(t, ok)
}

func TestWorkingSet_Lookup(t *testing.T) {
	ws := newSet(t, scenarioClient(), []model.StoryRecord{{ID: "u1", Key: "SCRUM-7", Text: "x"}})

	id, ok := ws.Lookup("scrum-7")
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
	id, ok = ws.Lookup("u1")
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
	_, ok = ws.Lookup("SCRUM-8")
	assert.False(t, ok)
}

type countingSuggester struct {
	calls atomic.Int32
	out   []string
	err   error
}

func (c *countingSuggester) Suggest(context.Context, model.SuggestionRequest) ([]string, error) {
	c.calls.Add(1)
	return c.out, c.err
}

func TestWorkingSet_FetchSuggestions(t *testing.T) {
	sugg := &countingSuggester{out: []string{"Enhancing clarity: Name the role.\n* Say who logs in."}}
	ws := newSet(t, scenarioClient(), records("a"), WithSuggestions(suggest.NewOrchestrator(sugg)))
	ws.Evaluate(context.Background(), model.SelectAll())

	first, err := ws.FetchSuggestions(context.Background(), "id-a")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "Enhancing clarity", first[0].Sections[0].Heading)
	assert.Equal(t, []string{"Say who logs in."}, first[0].Sections[0].BulletPoints())

	second, err := ws.FetchSuggestions(context.Background(), "id-a")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), sugg.calls.Load())

	rec, _ := ws.Get("id-a")
	assert.True(t, rec.SuggestionsFetched)

	_, err = ws.ApplyImprovement(context.Background(), "id-a", "As a user, I want to log in so that I see my orders.")
	require.NoError(t, err)
	rec, _ = ws.Get("id-a")
	assert.False(t, rec.SuggestionsFetched)

	_, err = ws.FetchSuggestions(context.Background(), "id-a")
	require.NoError(t, err)
	assert.Equal(t, int32(2), sugg.calls.Load())
}

func TestWorkingSet_SuggestionStatus(t *testing.T) {
	boom := &model.RemoteUnavailableError{Endpoint: "/suggestions", StatusCode: 503}
	sugg := &countingSuggester{err: boom}
	ws := newSet(t, scenarioClient(), records("a", "b"), WithSuggestions(suggest.NewOrchestrator(sugg)))
	ws.Evaluate(context.Background(), model.SelectAll())

	assert.Equal(t, suggest.StateIdle, ws.SuggestionStatus("id-a").State)

	_, err := ws.FetchSuggestions(context.Background(), "id-a")
	require.ErrorIs(t, err, model.ErrRemoteUnavailable)

	st := ws.SuggestionStatus("id-a")
	assert.Equal(t, suggest.StateFailed, st.State)
	assert.ErrorIs(t, st.Err, model.ErrRemoteUnavailable)
	assert.Equal(t, suggest.StateIdle, ws.SuggestionStatus("id-b").State, "never asked")

	unconfigured := newSet(t, scenarioClient(), records("a"))
	assert.Equal(t, suggest.StateIdle, unconfigured.SuggestionStatus("id-a").State)
}

func TestForm_Submit(t *testing.T) {
	client := scenarioClient()
	sugg := &countingSuggester{out: []string{}}
	form := NewForm(NewEvaluator(client), suggest.NewOrchestrator(sugg))
	ctx := context.Background()

	_, err := form.Submit(ctx, "", model.SelectAll())
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = form.Submit(ctx, "story", model.CriteriaSelection{})
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Zero(t, client.calls.Load())

	rec, err := form.Submit(ctx, "As a user I want to login", model.SelectAll())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.VerdictMap{"ambiguity": 0, "well-formed": 1}, rec.Verdicts)
	assert.True(t, form.CanImprove())

	parsed, err := form.Suggestions(ctx)
	require.NoError(t, err)
	assert.Empty(t, parsed)
	_, err = form.Suggestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), sugg.calls.Load())

	again, err := form.Submit(ctx, "As a user I want to login", model.SelectAll())
	require.NoError(t, err)
	assert.NotEqual(t, rec.ID, again.ID)
}

func TestForm_FailedSubmitKeepsPrevious(t *testing.T) {
	client := scenarioClient()
	form := NewForm(NewEvaluator(client), nil)
	ctx := context.Background()

	first, err := form.Submit(ctx, "first", model.SelectAll())
	require.NoError(t, err)

	client.failText = map[string]error{"second": errors.New("network down")}
	_, err = form.Submit(ctx, "second", model.SelectAll())
	require.Error(t, err)

	cur, ok := form.Current()
	require.True(t, ok)
	assert.Equal(t, first.ID, cur.ID)

	_, err = form.Suggestions(ctx)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestForm_CanImproveFavourable(t *testing.T) {
	client := &mockCriterionClient{verdicts: map[model.Criterion]model.Verdict{
		model.CriterionAmbiguity:  model.Clear,
		model.CriterionWellFormed: model.PoorlyFormed,
	}}
	form := NewForm(NewEvaluator(client), nil)

	_, err := form.Submit(context.Background(), "story", model.CriteriaSelection{model.CriterionAmbiguity: true})
	require.NoError(t, err)
	assert.False(t, form.CanImprove())
}

func TestLoadStories_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stories.txt")
	content := "# sprint 12\nAs a user I want to login\n\nAs an admin I want reports\nAs a user I want to login\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := LoadStories(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "As a user I want to login", got[0].Text)
	assert.Equal(t, "1", got[0].Key)
	assert.Equal(t, "2", got[1].Key)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestLoadStories_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stories.yaml")
	content := `- key: SCRUM-1
  summary: As a user I want to login
  description: Login with SSO
  status: To Do
- key: SCRUM-2
  summary: "  "
- summary: As an admin I want reports
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := LoadStories(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "SCRUM-1", got[0].Key)
	assert.Equal(t, "Login with SSO", got[0].Description)
	assert.Equal(t, "To Do", got[0].Status)
	assert.Equal(t, "3", got[1].Key)
}

func TestLoadStories_YAMLDuplicateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stories.yml")
	content := "- key: A-1\n  summary: one\n- key: A-1\n  summary: two\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadStories(path)
	assert.ErrorIs(t, err, ErrDuplicateStory)
}

func TestLoadStories_Missing(t *testing.T) {
	_, err := LoadStories(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
