package wizard

import (
	"errors"
	"strconv"
	"strings"

	"CarbonBot/model"
)

var ErrNotANumber = errors.New("reply is not a number")

// Visible returns the step's questions whose preconditions currently hold,
// in catalog order.
func Visible(st Step, a *model.Answers) []Question {
	var visible []Question
	for _, q := range st.Questions {
		if q.When == nil || q.When(a) {
			visible = append(visible, q)
		}
	}
	return visible
}

// NextQuestion finds the first visible question after catalog index
// `after` (-1 starts at the top). Visibility is re-evaluated on every call
// because answers given earlier in the step open and close branches.
func NextQuestion(st Step, a *model.Answers, after int) (Question, int, bool) {
	for i := after + 1; i < len(st.Questions); i++ {
		q := st.Questions[i]
		if q.When == nil || q.When(a) {
			return q, i, true
		}
	}
	return Question{}, -1, false
}

// DefaultFor resolves what a prompt pre-fills: the stored answer when one
// exists, the catalog default otherwise. A stored choice that is no longer
// a member of the option list falls back to the first option instead of
// failing; stale multi-select members are dropped.
func DefaultFor(q Question, a *model.Answers) model.Value {
	v := a.Get(q.Category, q.Key, q.Default)

	switch q.Kind {
	case KindChoice:
		for _, option := range q.Options {
			if v.Text() == option {
				return v
			}
		}
		return model.Text(q.Options[0])
	case KindMultiChoice:
		var kept []string
		for _, item := range v.List() {
			for _, option := range q.Options {
				if item == option {
					kept = append(kept, item)
					break
				}
			}
		}
		return model.List(kept...)
	default:
		return v
	}
}

// Unanswered lists the visible questions of a step that have no stored
// answer yet. Notes never count.
func Unanswered(st Step, a *model.Answers) []Question {
	var missing []Question
	for _, q := range Visible(st, a) {
		if q.Kind == KindNote {
			continue
		}
		if !a.Has(q.Category, q.Key) {
			missing = append(missing, q)
		}
	}
	return missing
}

// ParseReply turns a typed reply into a stored value for questions that
// are answered by text rather than buttons. Numeric replies are clamped to
// the question's range.
func ParseReply(q Question, reply string) (model.Value, error) {
	reply = strings.TrimSpace(reply)

	switch q.Kind {
	case KindText:
		return model.Text(reply), nil
	case KindNumber:
		n, err := strconv.ParseFloat(reply, 64)
		if err != nil {
			return model.Value{}, ErrNotANumber
		}
		if n < q.Min {
			n = q.Min
		}
		return model.Number(n), nil
	case KindCount, KindScale:
		n, err := strconv.Atoi(reply)
		if err != nil {
			return model.Value{}, ErrNotANumber
		}
		if float64(n) < q.Min {
			n = int(q.Min)
		}
		if q.Kind == KindScale && float64(n) > q.Max {
			n = int(q.Max)
		}
		return model.Number(float64(n)), nil
	default:
		return model.Value{}, errors.New("question is answered with buttons")
	}
}

// Buttoned reports whether the question is answered through an inline
// keyboard instead of a typed reply. Wide scales (hours, percentages) are
// typed; narrow ones get one button per value.
func Buttoned(q Question) bool {
	switch q.Kind {
	case KindChoice, KindMultiChoice, KindBool:
		return true
	case KindScale:
		return q.Max-q.Min <= 5
	default:
		return false
	}
}
