package model

// Answers holds everything a session's user has answered so far, keyed by
// category and question. Re-answering overwrites; nothing is ever appended.
type Answers struct {
	data map[string]map[string]Value
}

func NewAnswers() *Answers {
	return &Answers{data: make(map[string]map[string]Value)}
}

// Get returns the stored value for (category, question), or def when the
// question was never answered.
func (a *Answers) Get(category, question string, def Value) Value {
	if questions, ok := a.data[category]; ok {
		if v, ok := questions[question]; ok {
			return v
		}
	}
	return def
}

// Set stores a value, creating the category on first use.
func (a *Answers) Set(category, question string, v Value) {
	if _, ok := a.data[category]; !ok {
		a.data[category] = make(map[string]Value)
	}
	a.data[category][question] = v
}

// Has reports whether (category, question) was ever answered.
func (a *Answers) Has(category, question string) bool {
	questions, ok := a.data[category]
	if !ok {
		return false
	}
	_, ok = questions[question]
	return ok
}

// Snapshot flattens the store into plain nested maps for submission.
func (a *Answers) Snapshot() map[string]map[string]any {
	snapshot := make(map[string]map[string]any, len(a.data))
	for category, questions := range a.data {
		snapshot[category] = make(map[string]any, len(questions))
		for question, v := range questions {
			snapshot[category][question] = v.Interface()
		}
	}
	return snapshot
}

// Reset drops every stored answer.
func (a *Answers) Reset() {
	a.data = make(map[string]map[string]Value)
}
