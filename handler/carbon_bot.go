package handler

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"

	"CarbonBot/model"
	"CarbonBot/render"
	"CarbonBot/wizard"
)

// Analyzer produces the narrative reports. The production implementation
// lives in repo; tests inject a stub.
type Analyzer interface {
	AnalyzeFootprint(ctx context.Context, answers map[string]map[string]any) (string, error)
	AnalyzeInvoice(ctx context.Context, imageB64 string) (string, error)
}

// ImageFetcher pulls an uploaded photo down from Telegram and encodes it
// for the analysis request.
type ImageFetcher interface {
	FetchToFile(ctx context.Context, fileID, dir string) (string, error)
	Encode(path string) (string, error)
}

// telegramAPI is the slice of *bot.Bot the handler actually uses, so flow
// tests can run against a recorder instead of the network.
type telegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageReplyMarkup(ctx context.Context, params *bot.EditMessageReplyMarkupParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type CarbonBotHandler struct {
	Sessions    *model.SessionManager
	Analyzer    Analyzer
	Images      ImageFetcher
	StrictSteps bool
	UploadDir   string
}

func NewCarbonBotHandler(sessions *model.SessionManager, analyzer Analyzer, images ImageFetcher, strictSteps bool, uploadDir string) *CarbonBotHandler {
	return &CarbonBotHandler{
		Sessions:    sessions,
		Analyzer:    analyzer,
		Images:      images,
		StrictSteps: strictSteps,
		UploadDir:   uploadDir,
	}
}

const greeting = `Welcome to the Comprehensive Carbon Footprint Calculator!

This questionnaire helps you understand your daily carbon footprint based on your activities. Answer the questions below to get a detailed analysis of your environmental impact.

Use /next and /back to move between steps, /reset to start over and /help for the full command list.`

const helpText = `Commands:
/start – Begin the questionnaire.
/next – Move to the next step.
/back – Return to the previous step.
/reset – Discard all answers and start over.
/help – Show this message.`

// Handler is the bot's default update handler.
func (h *CarbonBotHandler) Handler(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.dispatch(ctx, b, update)
}

func (h *CarbonBotHandler) dispatch(ctx context.Context, tg telegramAPI, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, tg, update)
	case update.Message != nil:
		h.handleMessage(ctx, tg, update)
	}
}

func (h *CarbonBotHandler) handleMessage(ctx context.Context, tg telegramAPI, update *models.Update) {
	msg := update.Message
	s := h.Sessions.GetOrCreate(msg.Chat.ID)
	s.Lock()
	defer s.Unlock()

	log.Debug().Int64("chat_id", s.ChatID).Int("step", s.Step).Str("text", msg.Text).Msg("message received")

	switch msg.Text {
	case "/start":
		if s.Phase == model.PhaseIdle {
			h.send(ctx, tg, s.ChatID, greeting, nil)
			h.enterStep(ctx, tg, s)
		} else {
			h.send(ctx, tg, s.ChatID, "Your questionnaire is already in progress. Use /reset if you want to start over.", nil)
		}
		return
	case "/help":
		h.send(ctx, tg, s.ChatID, helpText, nil)
		return
	case "/reset":
		s.Reset()
		h.send(ctx, tg, s.ChatID, "All answers cleared. Starting over.", nil)
		h.enterStep(ctx, tg, s)
		return
	case "/next":
		h.tryAdvance(ctx, tg, s)
		return
	case "/back":
		h.goBack(ctx, tg, s)
		return
	}

	switch s.Phase {
	case model.PhaseIdle:
		h.send(ctx, tg, s.ChatID, "Use /start to begin the questionnaire.", nil)
	case model.PhaseAsking:
		h.handleTypedAnswer(ctx, tg, s, msg.Text)
	case model.PhaseAwaitingInvoice:
		if len(msg.Photo) > 0 {
			h.handleInvoicePhoto(ctx, tg, s, msg)
		} else {
			h.send(ctx, tg, s.ChatID, "Please send a photo of your invoice (JPG or PNG), or use Next to skip this step. PDF processing is not currently supported.", nil)
		}
	default:
		h.send(ctx, tg, s.ChatID, "Use the buttons above, or /next and /back to navigate.", nil)
	}
}

func (h *CarbonBotHandler) handleCallback(ctx context.Context, tg telegramAPI, update *models.Update) {
	cb := update.CallbackQuery

	if _, err := tg.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cb.ID}); err != nil {
		log.Error().Err(err).Msg("error answering callback query")
	}

	var chatID int64
	var messageID int
	if cb.Message.Message != nil {
		chatID = cb.Message.Message.Chat.ID
		messageID = cb.Message.Message.ID
	} else if cb.Message.InaccessibleMessage != nil {
		chatID = cb.Message.InaccessibleMessage.Chat.ID
	} else {
		return
	}

	s := h.Sessions.GetOrCreate(chatID)
	s.Lock()
	defer s.Unlock()

	log.Debug().Int64("chat_id", s.ChatID).Int("step", s.Step).Str("data", cb.Data).Msg("callback received")

	switch {
	case cb.Data == cbNext:
		h.tryAdvance(ctx, tg, s)
	case cb.Data == cbBack:
		h.goBack(ctx, tg, s)
	case cb.Data == cbRecalc:
		s.FinalReport.Reset()
		h.showResults(ctx, tg, s)
	case cb.Data == cbRestart:
		s.Reset()
		h.send(ctx, tg, s.ChatID, "All answers cleared. Starting over.", nil)
		h.enterStep(ctx, tg, s)
	case cb.Data == cbKeep:
		h.handleKeep(ctx, tg, s)
	case cb.Data == cbSkip:
		h.handleSkip(ctx, tg, s)
	case cb.Data == cbDone:
		h.handleMultiDone(ctx, tg, s)
	case strings.HasPrefix(cb.Data, cbOption):
		h.handleOption(ctx, tg, s, strings.TrimPrefix(cb.Data, cbOption))
	case strings.HasPrefix(cb.Data, cbToggle):
		h.handleToggle(ctx, tg, s, strings.TrimPrefix(cb.Data, cbToggle), messageID)
	}
}

// enterStep moves the session into its current step: question steps start
// asking, the invoice and results steps have their own flows.
func (h *CarbonBotHandler) enterStep(ctx context.Context, tg telegramAPI, s *model.Session) {
	st, ok := wizard.StepAt(s.Step)
	if !ok {
		return
	}
	s.QuestionIdx = -1

	h.send(ctx, tg, s.ChatID, fmt.Sprintf("<b>Step %d of %d — %s</b>", st.Ordinal, model.StepCount, html.EscapeString(st.Title)), nil)

	switch s.Step {
	case model.StepFoodInvoice:
		h.enterInvoiceStep(ctx, tg, s)
	case model.StepResults:
		h.showResults(ctx, tg, s)
	default:
		h.askNext(ctx, tg, s)
	}
}

// askNext asks the next visible question of the current step, emitting
// any notices along the way, or closes the step when nothing is left.
func (h *CarbonBotHandler) askNext(ctx context.Context, tg telegramAPI, s *model.Session) {
	st, ok := wizard.StepAt(s.Step)
	if !ok {
		return
	}

	for {
		q, idx, more := wizard.NextQuestion(st, s.Answers, s.QuestionIdx)
		if !more {
			s.QuestionIdx = len(st.Questions)
			h.stepDone(ctx, tg, s)
			return
		}
		s.QuestionIdx = idx

		if q.Kind == wizard.KindNote {
			h.send(ctx, tg, s.ChatID, q.Prompt, nil)
			continue
		}

		s.Phase = model.PhaseAsking
		h.askQuestion(ctx, tg, s, q)
		return
	}
}

func (h *CarbonBotHandler) askQuestion(ctx context.Context, tg telegramAPI, s *model.Session, q wizard.Question) {
	def := wizard.DefaultFor(q, s.Answers)

	var sb strings.Builder
	sb.WriteString("<b>" + html.EscapeString(q.Prompt) + "</b>")
	if q.Hint != "" {
		sb.WriteString("\n<i>" + html.EscapeString(q.Hint) + "</i>")
	}

	var kb *models.InlineKeyboardMarkup
	switch {
	case q.Kind == wizard.KindChoice:
		kb = choiceKeyboard(q, def.Text())
	case q.Kind == wizard.KindBool:
		kb = boolKeyboard(def.Bool())
	case q.Kind == wizard.KindMultiChoice:
		// Toggles operate on the stored list, so make sure it exists.
		s.Answers.Set(q.Category, q.Key, def)
		kb = multiKeyboard(q, def.List())
	case wizard.Buttoned(q):
		kb = scaleKeyboard(q, def.Int())
	case q.Kind == wizard.KindText:
		sb.WriteString(fmt.Sprintf("\nCurrent answer: %s\nType your answer.", html.EscapeString(def.Display())))
		kb = textKeyboard(def)
	case q.Kind == wizard.KindScale:
		sb.WriteString(fmt.Sprintf("\nCurrent answer: %s\nSend a number between %d and %d.", html.EscapeString(def.Display()), int(q.Min), int(q.Max)))
		kb = keepKeyboard(def)
	default:
		sb.WriteString(fmt.Sprintf("\nCurrent answer: %s\nSend a number.", html.EscapeString(def.Display())))
		kb = keepKeyboard(def)
	}

	h.send(ctx, tg, s.ChatID, sb.String(), kb)
}

func (h *CarbonBotHandler) currentQuestion(s *model.Session) (wizard.Question, bool) {
	st, ok := wizard.StepAt(s.Step)
	if !ok || s.QuestionIdx < 0 || s.QuestionIdx >= len(st.Questions) {
		return wizard.Question{}, false
	}
	return st.Questions[s.QuestionIdx], true
}

func (h *CarbonBotHandler) handleTypedAnswer(ctx context.Context, tg telegramAPI, s *model.Session, reply string) {
	q, ok := h.currentQuestion(s)
	if !ok {
		h.askNext(ctx, tg, s)
		return
	}
	if wizard.Buttoned(q) {
		h.send(ctx, tg, s.ChatID, "Please use the buttons above to answer.", nil)
		return
	}

	v, err := wizard.ParseReply(q, reply)
	if err != nil {
		h.send(ctx, tg, s.ChatID, "That doesn't look like a number. Please try again.", nil)
		return
	}

	s.Answers.Set(q.Category, q.Key, v)
	h.askNext(ctx, tg, s)
}

func (h *CarbonBotHandler) handleOption(ctx context.Context, tg telegramAPI, s *model.Session, idx string) {
	q, ok := h.currentQuestion(s)
	if !ok || !wizard.Buttoned(q) {
		return
	}
	i, err := strconv.Atoi(idx)
	if err != nil {
		return
	}

	var v model.Value
	switch q.Kind {
	case wizard.KindChoice:
		if i < 0 || i >= len(q.Options) {
			return
		}
		v = model.Text(q.Options[i])
	case wizard.KindBool:
		v = model.Bool(i == 0)
	case wizard.KindScale:
		n := q.Min + float64(i)
		if n < q.Min || n > q.Max {
			return
		}
		v = model.Number(n)
	default:
		return
	}

	s.Answers.Set(q.Category, q.Key, v)
	h.askNext(ctx, tg, s)
}

// handleKeep re-stores the shown default, which is the stored answer when
// revisiting a step. Redisplay without new input never changes answers.
func (h *CarbonBotHandler) handleKeep(ctx context.Context, tg telegramAPI, s *model.Session) {
	q, ok := h.currentQuestion(s)
	if !ok || q.Kind == wizard.KindNote {
		return
	}
	s.Answers.Set(q.Category, q.Key, wizard.DefaultFor(q, s.Answers))
	h.askNext(ctx, tg, s)
}

func (h *CarbonBotHandler) handleSkip(ctx context.Context, tg telegramAPI, s *model.Session) {
	q, ok := h.currentQuestion(s)
	if !ok || q.Kind != wizard.KindText {
		return
	}
	s.Answers.Set(q.Category, q.Key, model.Text(""))
	h.askNext(ctx, tg, s)
}

func (h *CarbonBotHandler) handleToggle(ctx context.Context, tg telegramAPI, s *model.Session, idx string, messageID int) {
	q, ok := h.currentQuestion(s)
	if !ok || q.Kind != wizard.KindMultiChoice {
		return
	}
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(q.Options) {
		return
	}
	option := q.Options[i]

	selected := s.Answers.Get(q.Category, q.Key, model.List()).List()
	var updated []string
	found := false
	for _, item := range selected {
		if item == option {
			found = true
			continue
		}
		updated = append(updated, item)
	}
	if !found {
		updated = append(updated, option)
	}
	s.Answers.Set(q.Category, q.Key, model.List(updated...))

	if messageID == 0 {
		return
	}
	if _, err := tg.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      s.ChatID,
		MessageID:   messageID,
		ReplyMarkup: multiKeyboard(q, updated),
	}); err != nil {
		log.Error().Err(err).Int64("chat_id", s.ChatID).Msg("error updating keyboard")
	}
}

func (h *CarbonBotHandler) handleMultiDone(ctx context.Context, tg telegramAPI, s *model.Session) {
	q, ok := h.currentQuestion(s)
	if !ok || q.Kind != wizard.KindMultiChoice {
		return
	}
	h.askNext(ctx, tg, s)
}

// stepDone shows the step's answers and the navigation keyboard.
func (h *CarbonBotHandler) stepDone(ctx context.Context, tg telegramAPI, s *model.Session) {
	st, ok := wizard.StepAt(s.Step)
	if !ok {
		return
	}
	s.Phase = model.PhaseStepDone

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s — your answers</b>\n", html.EscapeString(st.Title)))
	for _, q := range wizard.Visible(st, s.Answers) {
		if q.Kind == wizard.KindNote {
			continue
		}
		v := s.Answers.Get(q.Category, q.Key, q.Default)
		sb.WriteString(fmt.Sprintf("• %s — %s\n", html.EscapeString(q.Prompt), html.EscapeString(v.Display())))
	}
	h.send(ctx, tg, s.ChatID, sb.String(), navKeyboard(s.Step))
}

// tryAdvance applies the advance policy: permissive by default, and when
// strict steps are enabled it refuses until every visible question of the
// current step has a stored answer.
func (h *CarbonBotHandler) tryAdvance(ctx context.Context, tg telegramAPI, s *model.Session) {
	if s.Step >= model.StepCount {
		h.send(ctx, tg, s.ChatID, "You're already at the results step.", nil)
		return
	}

	if h.StrictSteps {
		st, ok := wizard.StepAt(s.Step)
		if ok {
			missing := wizard.Unanswered(st, s.Answers)
			if len(missing) > 0 {
				var sb strings.Builder
				sb.WriteString("Please answer these questions before moving on:\n")
				for _, q := range missing {
					sb.WriteString("• " + html.EscapeString(q.Prompt) + "\n")
				}
				h.send(ctx, tg, s.ChatID, sb.String(), nil)
				return
			}
		}
	}

	s.Advance()
	h.enterStep(ctx, tg, s)
}

func (h *CarbonBotHandler) goBack(ctx context.Context, tg telegramAPI, s *model.Session) {
	if s.Step <= 1 {
		h.send(ctx, tg, s.ChatID, "You're already at the first step.", nil)
		return
	}
	s.Retreat()
	h.enterStep(ctx, tg, s)
}

func (h *CarbonBotHandler) enterInvoiceStep(ctx context.Context, tg telegramAPI, s *model.Session) {
	hasInvoice := s.Answers.Get("food", "has_lunch_invoice", model.Bool(false)).Bool() ||
		s.Answers.Get("food", "has_dinner_invoice", model.Bool(false)).Bool()

	if !hasInvoice {
		s.Phase = model.PhaseStepDone
		h.send(ctx, tg, s.ChatID, "You didn't mention having a food delivery invoice. You can proceed to the next step.", navKeyboard(s.Step))
		return
	}

	s.Phase = model.PhaseAwaitingInvoice
	h.send(ctx, tg, s.ChatID, "You mentioned you have a food delivery invoice. Please send a photo of it for analysis, or use Next to skip.", navKeyboard(s.Step))
}

func (h *CarbonBotHandler) handleInvoicePhoto(ctx context.Context, tg telegramAPI, s *model.Session, msg *models.Message) {
	// The last entry is the largest rendition Telegram offers.
	photo := msg.Photo[len(msg.Photo)-1]

	if !s.InvoiceReport.Filled() {
		h.send(ctx, tg, s.ChatID, "Analyzing your food order... This may take up to 60 seconds.", nil)
	}

	path, err := h.Images.FetchToFile(ctx, photo.FileID, h.UploadDir)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", s.ChatID).Msg("error fetching invoice photo")
		h.send(ctx, tg, s.ChatID, "Failed to process the image. Please try another image.", navKeyboard(s.Step))
		return
	}

	imageB64, err := h.Images.Encode(path)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", s.ChatID).Str("path", path).Msg("error encoding invoice photo")
		h.send(ctx, tg, s.ChatID, "Failed to process the image. Please try another image.", navKeyboard(s.Step))
		return
	}

	analysis := s.InvoiceReport.ComputeOnce(func() (string, error) {
		return h.Analyzer.AnalyzeInvoice(ctx, imageB64)
	})
	s.Answers.Set("food", "invoice_analysis", model.Text(analysis))

	s.Phase = model.PhaseStepDone
	h.send(ctx, tg, s.ChatID, "<b>Food Order Analysis</b>", nil)
	h.sendReport(ctx, tg, s.ChatID, analysis)
	h.send(ctx, tg, s.ChatID, "Analysis complete!", navKeyboard(s.Step))
}

func (h *CarbonBotHandler) showResults(ctx context.Context, tg telegramAPI, s *model.Session) {
	s.Phase = model.PhaseResults

	if invoice, ok := s.InvoiceReport.Get(); ok {
		h.send(ctx, tg, s.ChatID, "<b>Food Order Carbon Footprint</b>", nil)
		h.sendReport(ctx, tg, s.ChatID, invoice)
	}

	if !s.FinalReport.Filled() {
		h.send(ctx, tg, s.ChatID, "Calculating your carbon footprint... This may take up to 60 seconds.", nil)
	}

	report := s.FinalReport.ComputeOnce(func() (string, error) {
		return h.Analyzer.AnalyzeFootprint(ctx, s.Answers.Snapshot())
	})

	h.send(ctx, tg, s.ChatID, "<b>Overall Carbon Footprint Analysis</b>", nil)
	h.sendReport(ctx, tg, s.ChatID, report)

	h.send(ctx, tg, s.ChatID, `<b>Next Steps</b>
• Track your footprint over time to see your progress
• Set goals to reduce your highest impact areas
• Share your journey with friends and family to inspire change`, resultsKeyboard())
}

// sendReport renders model markdown as Telegram HTML and splits it under
// the message length cap.
func (h *CarbonBotHandler) sendReport(ctx context.Context, tg telegramAPI, chatID int64, markdown string) {
	for _, chunk := range render.Split(render.TelegramHTML(markdown), render.MessageLimit) {
		h.send(ctx, tg, chatID, chunk, nil)
	}
}

func (h *CarbonBotHandler) send(ctx context.Context, tg telegramAPI, chatID int64, text string, kb *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := tg.SendMessage(ctx, params); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("error sending message")
	}
}
