package wizard

import (
	"CarbonBot/model"
)

// Kind is the input type of a question, which decides how the handler
// solicits the answer (keyboard, typed reply, or a plain notice).
type Kind int

const (
	KindChoice Kind = iota
	KindMultiChoice
	KindBool
	KindNumber // free decimal, typed
	KindCount  // whole number with a floor, typed
	KindScale  // bounded whole number; narrow ranges become buttons
	KindText
	KindNote // informational only, nothing is stored
)

// Predicate decides whether a dependent question is asked, based purely on
// answers already in the store.
type Predicate func(a *model.Answers) bool

// Question is one entry of a step's catalog. Default is what the prompt
// pre-fills when the store has no answer yet; When guards dependent
// questions and is nil for primary ones.
type Question struct {
	Category string
	Key      string
	Prompt   string
	Hint     string
	Kind     Kind
	Options  []string
	Min, Max float64
	Default  model.Value
	When     Predicate
}

// Step is one page of the wizard. Definitions are static; only the cursor
// and the answer store move at runtime.
type Step struct {
	Ordinal   int
	Title     string
	Questions []Question
}

func chose(category, key string, options ...string) Predicate {
	return func(a *model.Answers) bool {
		v := a.Get(category, key, model.Value{}).Text()
		for _, option := range options {
			if v == option {
				return true
			}
		}
		return false
	}
}

func flagged(category, key string) Predicate {
	return func(a *model.Answers) bool {
		return a.Get(category, key, model.Bool(false)).Bool()
	}
}

func picked(category, key, option string) Predicate {
	return func(a *model.Answers) bool {
		for _, item := range a.Get(category, key, model.List()).List() {
			if item == option {
				return true
			}
		}
		return false
	}
}

func allOf(predicates ...Predicate) Predicate {
	return func(a *model.Answers) bool {
		for _, p := range predicates {
			if !p(a) {
				return false
			}
		}
		return true
	}
}

func not(p Predicate) Predicate {
	return func(a *model.Answers) bool { return !p(a) }
}

var steps = []Step{
	{
		Ordinal: model.StepTransportation,
		Title:   "Transportation",
		Questions: []Question{
			{
				Category: "transportation", Key: "primary_mode",
				Prompt:  "What was your primary mode of transportation today?",
				Kind:    KindChoice,
				Options: []string{"Car", "Bus", "Train", "Bicycle", "Walking", "Motorcycle", "Airplane", "Other"},
				Default: model.Text("Car"),
			},
			{
				Category: "transportation", Key: "fuel_type",
				Prompt:  "What type of fuel does your vehicle use?",
				Kind:    KindChoice,
				Options: []string{"Petrol/Gasoline", "Diesel", "Electric", "Hybrid", "CNG/LPG"},
				Default: model.Text("Petrol/Gasoline"),
				When:    chose("transportation", "primary_mode", "Car", "Motorcycle"),
			},
			{
				Category: "transportation", Key: "distance_km",
				Prompt:  "How many kilometers did you travel today?",
				Kind:    KindNumber,
				Min:     0,
				Default: model.Number(0),
			},
			{
				Category: "transportation", Key: "duration_minutes",
				Prompt:  "How many minutes did you spend on public transport?",
				Kind:    KindCount,
				Min:     0,
				Default: model.Number(0),
				When:    chose("transportation", "primary_mode", "Bus", "Train"),
			},
			{
				Category: "transportation", Key: "passengers",
				Prompt:  "Including yourself, how many people were in the vehicle?",
				Kind:    KindCount,
				Min:     1,
				Default: model.Number(1),
				When:    chose("transportation", "primary_mode", "Car"),
			},
		},
	},
	{
		Ordinal: model.StepFoodDiet,
		Title:   "Food & Diet",
		Questions: []Question{
			{
				Category: "diet", Key: "diet_type",
				Prompt: "How would you describe your diet?",
				Kind:   KindChoice,
				Options: []string{
					"Omnivore (regular meat consumption)",
					"Flexitarian (occasional meat)",
					"Pescatarian (fish but no meat)",
					"Vegetarian (no meat or fish)",
					"Vegan (no animal products)",
				},
				Default: model.Text("Omnivore (regular meat consumption)"),
			},
			{
				Category: "food", Key: "had_breakfast",
				Prompt:  "Did you have breakfast today?",
				Kind:    KindBool,
				Default: model.Bool(false),
			},
			{
				Category: "food", Key: "breakfast_description",
				Prompt:  "Please describe what you ate for breakfast",
				Kind:    KindText,
				Default: model.Text(""),
				When:    flagged("food", "had_breakfast"),
			},
			{
				Category: "food", Key: "breakfast_dairy_level",
				Prompt:  "How much dairy did your breakfast contain?",
				Hint:    "0 = none, 5 = large amounts (e.g., milk, cheese, yogurt)",
				Kind:    KindScale,
				Min:     0, Max: 5,
				Default: model.Number(0),
				When:    flagged("food", "had_breakfast"),
			},
			{
				Category: "food", Key: "breakfast_meat_level",
				Prompt:  "How much meat/eggs did your breakfast contain?",
				Hint:    "0 = none, 5 = large amounts",
				Kind:    KindScale,
				Min:     0, Max: 5,
				Default: model.Number(0),
				When:    flagged("food", "had_breakfast"),
			},
			{
				Category: "food", Key: "had_lunch",
				Prompt:  "Did you have lunch today?",
				Kind:    KindBool,
				Default: model.Bool(false),
			},
			{
				Category: "food", Key: "lunch_source",
				Prompt:  "Where did you get your lunch?",
				Kind:    KindChoice,
				Options: []string{"Home-cooked", "Restaurant", "Office/School Cafeteria", "Delivery/Takeout", "Other"},
				Default: model.Text("Home-cooked"),
				When:    flagged("food", "had_lunch"),
			},
			{
				Category: "food", Key: "has_lunch_invoice",
				Prompt:  "Do you have the delivery invoice/receipt?",
				Kind:    KindBool,
				Default: model.Bool(false),
				When: allOf(
					flagged("food", "had_lunch"),
					chose("food", "lunch_source", "Delivery/Takeout"),
				),
			},
			{
				Category: "food", Key: "lunch_invoice_notice",
				Prompt:  "You'll be able to upload the invoice in a later step.",
				Kind:    KindNote,
				When: allOf(
					flagged("food", "had_lunch"),
					chose("food", "lunch_source", "Delivery/Takeout"),
					flagged("food", "has_lunch_invoice"),
				),
			},
			{
				Category: "food", Key: "lunch_description",
				Prompt:  "Please describe what you ate for lunch",
				Kind:    KindText,
				Default: model.Text(""),
				When: allOf(
					flagged("food", "had_lunch"),
					not(allOf(
						chose("food", "lunch_source", "Delivery/Takeout"),
						flagged("food", "has_lunch_invoice"),
					)),
				),
			},
			{
				Category: "food", Key: "lunch_meat_level",
				Prompt:  "How much meat did your lunch contain?",
				Hint:    "0 = none, 5 = large amounts",
				Kind:    KindScale,
				Min:     0, Max: 5,
				Default: model.Number(0),
				When: allOf(
					flagged("food", "had_lunch"),
					not(allOf(
						chose("food", "lunch_source", "Delivery/Takeout"),
						flagged("food", "has_lunch_invoice"),
					)),
				),
			},
			{
				Category: "food", Key: "had_dinner",
				Prompt:  "Did you have dinner?",
				Kind:    KindBool,
				Default: model.Bool(false),
			},
			{
				Category: "food", Key: "dinner_source",
				Prompt:  "Where did you get your dinner?",
				Kind:    KindChoice,
				Options: []string{"Home-cooked", "Restaurant", "Delivery/Takeout", "Other"},
				Default: model.Text("Home-cooked"),
				When:    flagged("food", "had_dinner"),
			},
			{
				Category: "food", Key: "has_dinner_invoice",
				Prompt:  "Do you have the dinner delivery invoice/receipt?",
				Kind:    KindBool,
				Default: model.Bool(false),
				When: allOf(
					flagged("food", "had_dinner"),
					chose("food", "dinner_source", "Delivery/Takeout"),
				),
			},
			{
				Category: "food", Key: "dinner_invoice_notice",
				Prompt:  "You'll be able to upload the invoice in a later step.",
				Kind:    KindNote,
				When: allOf(
					flagged("food", "had_dinner"),
					chose("food", "dinner_source", "Delivery/Takeout"),
					flagged("food", "has_dinner_invoice"),
				),
			},
			{
				Category: "food", Key: "dinner_description",
				Prompt:  "Please describe what you ate for dinner",
				Kind:    KindText,
				Default: model.Text(""),
				When: allOf(
					flagged("food", "had_dinner"),
					not(allOf(
						chose("food", "dinner_source", "Delivery/Takeout"),
						flagged("food", "has_dinner_invoice"),
					)),
				),
			},
			{
				Category: "food", Key: "dinner_meat_level",
				Prompt:  "How much meat did your dinner contain?",
				Hint:    "0 = none, 5 = large amounts",
				Kind:    KindScale,
				Min:     0, Max: 5,
				Default: model.Number(0),
				When: allOf(
					flagged("food", "had_dinner"),
					not(allOf(
						chose("food", "dinner_source", "Delivery/Takeout"),
						flagged("food", "has_dinner_invoice"),
					)),
				),
			},
			{
				Category: "food", Key: "snacks_description",
				Prompt:  "Did you have any snacks or beverages today? Please describe",
				Kind:    KindText,
				Default: model.Text(""),
			},
			{
				Category: "food", Key: "food_waste_level",
				Prompt:  "How much food did you throw away today?",
				Hint:    "0 = none, 5 = significant amount",
				Kind:    KindScale,
				Min:     0, Max: 5,
				Default: model.Number(0),
			},
		},
	},
	{
		Ordinal: model.StepHomeEnergy,
		Title:   "Home Energy",
		Questions: []Question{
			{
				Category: "home", Key: "home_type",
				Prompt:  "What type of home do you live in?",
				Kind:    KindChoice,
				Options: []string{"Apartment", "Small house", "Medium house", "Large house", "Other"},
				Default: model.Text("Apartment"),
			},
			{
				Category: "home", Key: "household_size",
				Prompt:  "How many people live in your household?",
				Kind:    KindCount,
				Min:     1,
				Default: model.Number(1),
			},
			{
				Category: "energy", Key: "electricity_sources",
				Prompt:  "What are your sources of electricity? (Select all that apply)",
				Kind:    KindMultiChoice,
				Options: []string{"Grid electricity", "Solar panels", "Wind power", "Other renewable", "Don't know"},
				Default: model.List(),
			},
			{
				Category: "energy", Key: "electricity_provider",
				Prompt:  "Who is your electricity provider? (Optional)",
				Kind:    KindText,
				Default: model.Text(""),
				When:    picked("energy", "electricity_sources", "Grid electricity"),
			},
			{
				Category: "energy", Key: "ac_hours",
				Prompt:  "How many hours did you use air conditioning today?",
				Kind:    KindScale,
				Min:     0, Max: 24,
				Default: model.Number(0),
			},
			{
				Category: "energy", Key: "heating_hours",
				Prompt:  "How many hours did you use heating today?",
				Kind:    KindScale,
				Min:     0, Max: 24,
				Default: model.Number(0),
			},
			{
				Category: "water", Key: "shower_minutes",
				Prompt:  "How many minutes did you shower today?",
				Kind:    KindCount,
				Min:     0,
				Default: model.Number(0),
			},
			{
				Category: "water", Key: "did_laundry",
				Prompt:  "Did you do laundry today?",
				Kind:    KindBool,
				Default: model.Bool(false),
			},
			{
				Category: "water", Key: "laundry_loads",
				Prompt:  "How many loads of laundry?",
				Kind:    KindCount,
				Min:     1,
				Default: model.Number(1),
				When:    flagged("water", "did_laundry"),
			},
			{
				Category: "water", Key: "laundry_temperature",
				Prompt:  "At what temperature?",
				Kind:    KindChoice,
				Options: []string{"Cold", "Warm", "Hot"},
				Default: model.Text("Cold"),
				When:    flagged("water", "did_laundry"),
			},
			{
				Category: "water", Key: "used_dishwasher",
				Prompt:  "Did you use a dishwasher today?",
				Kind:    KindBool,
				Default: model.Bool(false),
			},
		},
	},
	{
		Ordinal: model.StepConsumerGoods,
		Title:   "Consumer Goods",
		Questions: []Question{
			{
				Category: "consumption", Key: "purchased_items",
				Prompt:  "Did you purchase any of the following items today? (Select all that apply)",
				Kind:    KindMultiChoice,
				Options: []string{"Clothing", "Electronics", "Furniture", "Books/Media", "Toys", "Household items", "None"},
				Default: model.List(),
			},
			{
				Category: "consumption", Key: "items_new_or_used",
				Prompt:  "Were these items new or second-hand?",
				Kind:    KindChoice,
				Options: []string{"All new", "Mixture of new and second-hand", "All second-hand"},
				Default: model.Text("All new"),
				When:    boughtSomething,
			},
			{
				Category: "consumption", Key: "item_packaging",
				Prompt:  "How was the packaging of these items?",
				Kind:    KindChoice,
				Options: []string{"Minimal/eco-friendly packaging", "Standard packaging", "Excessive packaging"},
				Default: model.Text("Standard packaging"),
				When:    boughtSomething,
			},
			{
				Category: "consumption", Key: "ordered_online",
				Prompt:  "Did you order anything online today?",
				Kind:    KindBool,
				Default: model.Bool(false),
			},
			{
				Category: "consumption", Key: "delivery_option",
				Prompt:  "What delivery option did you choose?",
				Kind:    KindChoice,
				Options: []string{"Standard", "Express/Next day", "Same day"},
				Default: model.Text("Standard"),
				When:    flagged("consumption", "ordered_online"),
			},
			{
				Category: "waste", Key: "recycling_percentage",
				Prompt:  "How much of your waste today did you recycle?",
				Hint:    "Estimated percentage",
				Kind:    KindScale,
				Min:     0, Max: 100,
				Default: model.Number(0),
			},
			{
				Category: "waste", Key: "does_compost",
				Prompt:  "Do you compost food waste?",
				Kind:    KindBool,
				Default: model.Bool(false),
			},
			{
				Category: "waste", Key: "single_use_plastic_count",
				Prompt:  "How many single-use plastic items did you use today?",
				Hint:    "E.g., straws, bags, utensils, packaging",
				Kind:    KindScale,
				Min:     0, Max: 20,
				Default: model.Number(0),
			},
		},
	},
	{
		Ordinal: model.StepFoodInvoice,
		Title:   "Food Order Invoice",
	},
	{
		Ordinal: model.StepResults,
		Title:   "Your Carbon Footprint Results",
	},
}

// boughtSomething: purchase follow-ups are suppressed when nothing was
// bought or the selection is just "None".
func boughtSomething(a *model.Answers) bool {
	items := a.Get("consumption", "purchased_items", model.List()).List()
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if item == "None" {
			return false
		}
	}
	return true
}

// Steps returns the fixed six-step catalog.
func Steps() []Step { return steps }

// StepAt returns the definition for ordinal n (1-based).
func StepAt(n int) (Step, bool) {
	if n < 1 || n > len(steps) {
		return Step{}, false
	}
	return steps[n-1], true
}
