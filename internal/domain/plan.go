package domain

// Plan is the structured output an AI completion must conform to before it is
// trusted. The four top-level totals and the four per-food macro fields are
// all required by the schema contract.
type Plan struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Meals    []Meal  `json:"meals"`
}

// Meal is one meal slot within a plan.
type Meal struct {
	Name  string `json:"name"`
	Time  string `json:"time"`
	Foods []Food `json:"foods"`
}

// Food is a single item within a meal.
type Food struct {
	Name     string  `json:"name"`
	Serving  string  `json:"serving"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}
