package handler

import (
	"fmt"
	"strconv"

	"github.com/go-telegram/bot/models"

	"CarbonBot/model"
	"CarbonBot/wizard"
)

// Callback data protocol for inline keyboards.
const (
	cbOption  = "opt:" // buttoned answer by option index
	cbToggle  = "tog:" // multi-select toggle by option index
	cbKeep    = "keep" // re-store the shown default
	cbSkip    = "skip" // store an empty text answer
	cbDone    = "done" // finish a multi-select
	cbNext    = "nav:next"
	cbBack    = "nav:back"
	cbRecalc  = "nav:recalc"
	cbRestart = "nav:restart"
)

func button(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

func markup(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// choiceKeyboard lists one option per row, marking the pre-filled one.
func choiceKeyboard(q wizard.Question, def string) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	for i, option := range q.Options {
		label := option
		if option == def {
			label = "✓ " + option
		}
		rows = append(rows, []models.InlineKeyboardButton{
			button(label, cbOption+strconv.Itoa(i)),
		})
	}
	return markup(rows...)
}

func boolKeyboard(def bool) *models.InlineKeyboardMarkup {
	yes, no := "Yes", "No"
	if def {
		yes = "✓ Yes"
	} else {
		no = "✓ No"
	}
	return markup([]models.InlineKeyboardButton{
		button(yes, cbOption+"0"),
		button(no, cbOption+"1"),
	})
}

// scaleKeyboard shows one button per value of a narrow range.
func scaleKeyboard(q wizard.Question, def int) *models.InlineKeyboardMarkup {
	var row []models.InlineKeyboardButton
	for i := 0; q.Min+float64(i) <= q.Max; i++ {
		n := int(q.Min) + i
		label := strconv.Itoa(n)
		if n == def {
			label = "✓" + label
		}
		row = append(row, button(label, cbOption+strconv.Itoa(i)))
	}
	return markup(row)
}

// multiKeyboard shows toggles with the current selection checked, plus a
// Done row.
func multiKeyboard(q wizard.Question, selected []string) *models.InlineKeyboardMarkup {
	chosen := make(map[string]bool, len(selected))
	for _, item := range selected {
		chosen[item] = true
	}

	var rows [][]models.InlineKeyboardButton
	for i, option := range q.Options {
		label := option
		if chosen[option] {
			label = "✓ " + option
		}
		rows = append(rows, []models.InlineKeyboardButton{
			button(label, cbToggle+strconv.Itoa(i)),
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{button("Done", cbDone)})
	return markup(rows...)
}

// keepKeyboard accompanies typed questions so redisplay can confirm the
// stored value without retyping it.
func keepKeyboard(def model.Value) *models.InlineKeyboardMarkup {
	return markup([]models.InlineKeyboardButton{
		button(fmt.Sprintf("Keep: %s", truncate(def.Display(), 32)), cbKeep),
	})
}

func textKeyboard(def model.Value) *models.InlineKeyboardMarkup {
	return markup([]models.InlineKeyboardButton{
		button(fmt.Sprintf("Keep: %s", truncate(def.Display(), 32)), cbKeep),
		button("Skip", cbSkip),
	})
}

// navKeyboard offers step navigation; the first step has nothing to go
// back to and the results step has nothing next.
func navKeyboard(step int) *models.InlineKeyboardMarkup {
	var row []models.InlineKeyboardButton
	if step > 1 {
		row = append(row, button("◀ Back", cbBack))
	}
	if step < model.StepCount {
		row = append(row, button("Next ▶", cbNext))
	}
	return markup(row)
}

func resultsKeyboard() *models.InlineKeyboardMarkup {
	return markup(
		[]models.InlineKeyboardButton{button("◀ Back", cbBack)},
		[]models.InlineKeyboardButton{
			button("Recalculate", cbRecalc),
			button("Start Over", cbRestart),
		},
	)
}
