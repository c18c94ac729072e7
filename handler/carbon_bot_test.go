package handler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CarbonBot/model"
)

// fakeTelegram records outgoing traffic instead of hitting the network.
type fakeTelegram struct {
	sent   []*bot.SendMessageParams
	edited []*bot.EditMessageReplyMarkupParams
}

func (f *fakeTelegram) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.sent = append(f.sent, params)
	return &models.Message{ID: len(f.sent)}, nil
}

func (f *fakeTelegram) EditMessageReplyMarkup(ctx context.Context, params *bot.EditMessageReplyMarkupParams) (*models.Message, error) {
	f.edited = append(f.edited, params)
	return &models.Message{}, nil
}

func (f *fakeTelegram) AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	return true, nil
}

func (f *fakeTelegram) lastText() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Text
}

func (f *fakeTelegram) allText() string {
	var texts []string
	for _, params := range f.sent {
		texts = append(texts, params.Text)
	}
	return strings.Join(texts, "\n---\n")
}

type stubAnalyzer struct {
	footprintCalls int
	invoiceCalls   int
	footprintText  string
	invoiceText    string
	err            error
}

func (s *stubAnalyzer) AnalyzeFootprint(ctx context.Context, answers map[string]map[string]any) (string, error) {
	s.footprintCalls++
	if s.err != nil {
		return "", s.err
	}
	return s.footprintText, nil
}

func (s *stubAnalyzer) AnalyzeInvoice(ctx context.Context, imageB64 string) (string, error) {
	s.invoiceCalls++
	if s.err != nil {
		return "", s.err
	}
	return s.invoiceText, nil
}

type stubImages struct {
	fetchErr error
}

func (s *stubImages) FetchToFile(ctx context.Context, fileID, dir string) (string, error) {
	if s.fetchErr != nil {
		return "", s.fetchErr
	}
	return filepath.Join(dir, "invoice-test.jpg"), nil
}

func (s *stubImages) Encode(path string) (string, error) {
	return "ZmFrZQ==", nil
}

func newTestHandler(t *testing.T) (*CarbonBotHandler, *stubAnalyzer, *fakeTelegram) {
	t.Helper()
	analyzer := &stubAnalyzer{footprintText: "## Report\nTotal: 9 kg CO2e", invoiceText: "## Invoice\nMostly vegetarian"}
	h := NewCarbonBotHandler(model.NewSessionManager(), analyzer, &stubImages{}, false, t.TempDir())
	return h, analyzer, &fakeTelegram{}
}

func messageUpdate(chatID int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		Chat: models.Chat{ID: chatID},
		Text: text,
	}}
}

func photoUpdate(chatID int64, fileID string) *models.Update {
	return &models.Update{Message: &models.Message{
		Chat:  models.Chat{ID: chatID},
		Photo: []models.PhotoSize{{FileID: "small"}, {FileID: fileID}},
	}}
}

func callbackUpdate(chatID int64, data string) *models.Update {
	return &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb",
		Data: data,
		Message: models.MaybeInaccessibleMessage{
			Message: &models.Message{ID: 42, Chat: models.Chat{ID: chatID}},
		},
	}}
}

func TestStartBeginsTransportationStep(t *testing.T) {
	h, _, tg := newTestHandler(t)
	ctx := context.Background()

	h.dispatch(ctx, tg, messageUpdate(1, "/start"))

	s := h.Sessions.GetOrCreate(1)
	assert.Equal(t, model.StepTransportation, s.Step)
	assert.Equal(t, model.PhaseAsking, s.Phase)
	assert.Contains(t, tg.allText(), "Step 1 of 6")
	assert.Contains(t, tg.lastText(), "primary mode of transportation")
}

func TestBicycleSkipsVehicleQuestions(t *testing.T) {
	h, _, tg := newTestHandler(t)
	ctx := context.Background()

	h.dispatch(ctx, tg, messageUpdate(1, "/start"))
	// Bicycle is option index 3.
	h.dispatch(ctx, tg, callbackUpdate(1, "opt:3"))

	s := h.Sessions.GetOrCreate(1)
	assert.Equal(t, "Bicycle", s.Answers.Get("transportation", "primary_mode", model.Value{}).Text())
	assert.Contains(t, tg.lastText(), "kilometers")

	h.dispatch(ctx, tg, messageUpdate(1, "12.5"))
	assert.Equal(t, 12.5, s.Answers.Get("transportation", "distance_km", model.Value{}).Number())

	// No fuel, duration or passenger questions for a bicycle: the step is
	// done right after distance.
	assert.Equal(t, model.PhaseStepDone, s.Phase)
	assert.NotContains(t, tg.allText(), "fuel")
	assert.NotContains(t, tg.allText(), "public transport")
	assert.NotContains(t, tg.allText(), "people were in the vehicle")
}

func TestRevisitedStepShowsStoredAnswers(t *testing.T) {
	h, _, tg := newTestHandler(t)
	ctx := context.Background()

	h.dispatch(ctx, tg, messageUpdate(1, "/start"))
	h.dispatch(ctx, tg, callbackUpdate(1, "opt:2")) // Train
	h.dispatch(ctx, tg, messageUpdate(1, "30"))     // distance
	h.dispatch(ctx, tg, messageUpdate(1, "45"))     // duration
	h.dispatch(ctx, tg, callbackUpdate(1, cbNext))  // step 2

	s := h.Sessions.GetOrCreate(1)
	require.Equal(t, model.StepFoodDiet, s.Step)

	h.dispatch(ctx, tg, messageUpdate(1, "/back"))
	require.Equal(t, model.StepTransportation, s.Step)

	// The re-asked question pre-fills the stored answer, and the store is
	// unchanged by redisplay.
	last := tg.sent[len(tg.sent)-1]
	kb, ok := last.ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	var labels []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			labels = append(labels, btn.Text)
		}
	}
	assert.Contains(t, labels, "✓ Train")
	assert.Equal(t, "Train", s.Answers.Get("transportation", "primary_mode", model.Value{}).Text())
	assert.Equal(t, 30.0, s.Answers.Get("transportation", "distance_km", model.Value{}).Number())

	// Keeping every shown value walks through without changing anything.
	h.dispatch(ctx, tg, callbackUpdate(1, cbKeep))
	h.dispatch(ctx, tg, callbackUpdate(1, cbKeep))
	h.dispatch(ctx, tg, callbackUpdate(1, cbKeep))
	assert.Equal(t, model.PhaseStepDone, s.Phase)
	assert.Equal(t, "Train", s.Answers.Get("transportation", "primary_mode", model.Value{}).Text())
	assert.Equal(t, 30.0, s.Answers.Get("transportation", "distance_km", model.Value{}).Number())
	assert.Equal(t, 45, s.Answers.Get("transportation", "duration_minutes", model.Value{}).Int())
}

func TestMultiSelectToggle(t *testing.T) {
	h, _, tg := newTestHandler(t)
	ctx := context.Background()

	s := h.Sessions.GetOrCreate(1)
	s.Step = model.StepHomeEnergy
	h.enterStep(ctx, tg, s)

	// Walk to the electricity sources multi-select.
	h.dispatch(ctx, tg, callbackUpdate(1, cbKeep)) // home type
	h.dispatch(ctx, tg, callbackUpdate(1, cbKeep)) // household size
	require.Contains(t, tg.lastText(), "sources of electricity")

	h.dispatch(ctx, tg, callbackUpdate(1, "tog:0")) // Grid electricity
	h.dispatch(ctx, tg, callbackUpdate(1, "tog:1")) // Solar panels
	assert.Equal(t, []string{"Grid electricity", "Solar panels"},
		s.Answers.Get("energy", "electricity_sources", model.List()).List())
	assert.Len(t, tg.edited, 2)

	h.dispatch(ctx, tg, callbackUpdate(1, "tog:1")) // toggle Solar off
	assert.Equal(t, []string{"Grid electricity"},
		s.Answers.Get("energy", "electricity_sources", model.List()).List())

	h.dispatch(ctx, tg, callbackUpdate(1, cbDone))
	// Grid electricity selected, so the provider question follows.
	assert.Contains(t, tg.lastText(), "electricity provider")
}

func TestInvoiceStepOffersUploadWhenFlagged(t *testing.T) {
	h, _, tg := newTestHandler(t)
	ctx := context.Background()

	s := h.Sessions.GetOrCreate(1)
	s.Answers.Set("food", "has_lunch_invoice", model.Bool(true))
	s.Step = model.StepFoodInvoice
	h.enterStep(ctx, tg, s)

	assert.Equal(t, model.PhaseAwaitingInvoice, s.Phase)
	assert.Contains(t, tg.lastText(), "send a photo")
	assert.NotContains(t, tg.allText(), "didn't mention")
}

func TestInvoiceStepNothingToUpload(t *testing.T) {
	h, _, tg := newTestHandler(t)
	ctx := context.Background()

	s := h.Sessions.GetOrCreate(1)
	s.Step = model.StepFoodInvoice
	h.enterStep(ctx, tg, s)

	assert.Equal(t, model.PhaseStepDone, s.Phase)
	assert.Contains(t, tg.lastText(), "didn't mention having a food delivery invoice")
}

func TestInvoicePhotoAnalyzedOnce(t *testing.T) {
	h, analyzer, tg := newTestHandler(t)
	ctx := context.Background()

	s := h.Sessions.GetOrCreate(1)
	s.Answers.Set("food", "has_dinner_invoice", model.Bool(true))
	s.Step = model.StepFoodInvoice
	h.enterStep(ctx, tg, s)

	h.dispatch(ctx, tg, photoUpdate(1, "large-file-id"))
	assert.Equal(t, 1, analyzer.invoiceCalls)
	assert.Contains(t, tg.allText(), "Mostly vegetarian")
	assert.Equal(t, "## Invoice\nMostly vegetarian",
		s.Answers.Get("food", "invoice_analysis", model.Value{}).Text())

	// A second upload reuses the cached analysis.
	s.Phase = model.PhaseAwaitingInvoice
	h.dispatch(ctx, tg, photoUpdate(1, "large-file-id"))
	assert.Equal(t, 1, analyzer.invoiceCalls)
}

func TestInvoiceFetchFailureAbortsOnlyThatPath(t *testing.T) {
	h, analyzer, tg := newTestHandler(t)
	h.Images = &stubImages{fetchErr: errors.New("getFile failed")}
	ctx := context.Background()

	s := h.Sessions.GetOrCreate(1)
	s.Answers.Set("food", "has_lunch_invoice", model.Bool(true))
	s.Step = model.StepFoodInvoice
	h.enterStep(ctx, tg, s)

	h.dispatch(ctx, tg, photoUpdate(1, "file"))
	assert.Zero(t, analyzer.invoiceCalls)
	assert.Contains(t, tg.lastText(), "Failed to process the image")
	// The session survives; navigation still works.
	h.dispatch(ctx, tg, callbackUpdate(1, cbNext))
	assert.Equal(t, model.StepResults, s.Step)
}

func TestResultsComputedOncePerCycle(t *testing.T) {
	h, analyzer, tg := newTestHandler(t)
	ctx := context.Background()

	s := h.Sessions.GetOrCreate(1)
	s.Step = model.StepResults
	h.enterStep(ctx, tg, s)
	assert.Equal(t, 1, analyzer.footprintCalls)
	assert.Contains(t, tg.allText(), "Total: 9 kg CO2e")

	// Re-rendering the results never re-calls the service.
	h.showResults(ctx, tg, s)
	h.showResults(ctx, tg, s)
	assert.Equal(t, 1, analyzer.footprintCalls)

	// Recalculate clears only the final report and re-invokes exactly once.
	h.dispatch(ctx, tg, callbackUpdate(1, cbRecalc))
	assert.Equal(t, 2, analyzer.footprintCalls)
}

func TestResultsFailureIsCachedUntilRecalculate(t *testing.T) {
	h, analyzer, tg := newTestHandler(t)
	analyzer.err = errors.New("the analysis request failed with status 503")
	ctx := context.Background()

	s := h.Sessions.GetOrCreate(1)
	s.Step = model.StepResults
	h.enterStep(ctx, tg, s)

	cached, filled := s.FinalReport.Get()
	require.True(t, filled)
	assert.NotEmpty(t, cached)
	assert.Contains(t, cached, "status 503")
	assert.Equal(t, 1, analyzer.footprintCalls)

	// Re-render: still one call.
	h.showResults(ctx, tg, s)
	assert.Equal(t, 1, analyzer.footprintCalls)

	// Explicit recalculation retries exactly once more.
	h.dispatch(ctx, tg, callbackUpdate(1, cbRecalc))
	assert.Equal(t, 2, analyzer.footprintCalls)
}

func TestStartOverClearsEverything(t *testing.T) {
	h, _, tg := newTestHandler(t)
	ctx := context.Background()

	s := h.Sessions.GetOrCreate(1)
	s.Answers.Set("food", "had_lunch", model.Bool(true))
	s.InvoiceReport.ComputeOnce(func() (string, error) { return "invoice", nil })
	s.Step = model.StepResults
	h.enterStep(ctx, tg, s)

	h.dispatch(ctx, tg, callbackUpdate(1, cbRestart))

	assert.Equal(t, model.StepTransportation, s.Step)
	assert.Empty(t, s.Answers.Snapshot())
	assert.False(t, s.InvoiceReport.Filled())
	assert.False(t, s.FinalReport.Filled())
	assert.Contains(t, tg.lastText(), "primary mode of transportation")
}

func TestStrictStepsBlocksAdvance(t *testing.T) {
	h, _, tg := newTestHandler(t)
	h.StrictSteps = true
	ctx := context.Background()

	h.dispatch(ctx, tg, messageUpdate(1, "/start"))
	h.dispatch(ctx, tg, messageUpdate(1, "/next"))

	s := h.Sessions.GetOrCreate(1)
	assert.Equal(t, model.StepTransportation, s.Step)
	assert.Contains(t, tg.lastText(), "Please answer these questions")
}

func TestPermissiveAdvanceIsTheDefault(t *testing.T) {
	h, _, tg := newTestHandler(t)
	ctx := context.Background()

	h.dispatch(ctx, tg, messageUpdate(1, "/start"))
	h.dispatch(ctx, tg, messageUpdate(1, "/next"))

	s := h.Sessions.GetOrCreate(1)
	assert.Equal(t, model.StepFoodDiet, s.Step)
}

func TestRetreatFromFirstStepIsRefusedGently(t *testing.T) {
	h, _, tg := newTestHandler(t)
	ctx := context.Background()

	h.dispatch(ctx, tg, messageUpdate(1, "/start"))
	h.dispatch(ctx, tg, messageUpdate(1, "/back"))

	s := h.Sessions.GetOrCreate(1)
	assert.Equal(t, model.StepTransportation, s.Step)
	assert.Contains(t, tg.lastText(), "already at the first step")
}

func TestGarbageNumberReprompts(t *testing.T) {
	h, _, tg := newTestHandler(t)
	ctx := context.Background()

	h.dispatch(ctx, tg, messageUpdate(1, "/start"))
	h.dispatch(ctx, tg, callbackUpdate(1, "opt:4")) // Walking
	require.Contains(t, tg.lastText(), "kilometers")

	h.dispatch(ctx, tg, messageUpdate(1, "a few"))
	assert.Contains(t, tg.lastText(), "doesn't look like a number")

	s := h.Sessions.GetOrCreate(1)
	assert.False(t, s.Answers.Has("transportation", "distance_km"))
	assert.Equal(t, model.PhaseAsking, s.Phase)
}

func TestSessionsAreIsolated(t *testing.T) {
	h, _, tg := newTestHandler(t)
	ctx := context.Background()

	h.dispatch(ctx, tg, messageUpdate(1, "/start"))
	h.dispatch(ctx, tg, callbackUpdate(1, "opt:0")) // chat 1 answers Car

	h.dispatch(ctx, tg, messageUpdate(2, "/start"))

	one := h.Sessions.GetOrCreate(1)
	two := h.Sessions.GetOrCreate(2)
	assert.True(t, one.Answers.Has("transportation", "primary_mode"))
	assert.False(t, two.Answers.Has("transportation", "primary_mode"))
}
