package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"fitai/fitness-tracker/internal/domain"
)

// refusalSentinelKey is the agreed-upon flag the model returns to signal an
// out-of-domain request: an object whose only member is this key set to true.
const refusalSentinelKey = "off_topic"

// evaluateResponse runs the contract gate over one raw model completion:
//
//  1. strip optional surrounding code fences and parse as a single JSON
//     object — failure is a RejectParse contract error;
//  2. the refusal sentinel shape becomes ErrOffDomainRequest (the only
//     outcome that feeds moderation);
//  3. anything else is validated against the strict plan schema — failure is
//     a RejectSchema contract error.
//
// On acceptance it returns the decoded plan and the normalized raw text that
// callers persist verbatim.
func evaluateResponse(rawText string) (*domain.Plan, string, error) {
	raw := stripCodeFences(rawText)

	dec := json.NewDecoder(strings.NewReader(raw))
	var object map[string]json.RawMessage
	if err := dec.Decode(&object); err != nil {
		return nil, "", &SchemaContractError{Kind: RejectParse, Reason: "not a single JSON object"}
	}
	if dec.More() {
		return nil, "", &SchemaContractError{Kind: RejectParse, Reason: "trailing content after JSON object"}
	}

	if isRefusalSentinel(object) {
		return nil, "", ErrOffDomainRequest
	}

	plan, err := decodePlan(raw)
	if err != nil {
		return nil, "", err
	}
	return plan, raw, nil
}

// isRefusalSentinel matches exactly {"off_topic": true}. Any other shape,
// including a false flag or extra members, falls through to the schema.
func isRefusalSentinel(object map[string]json.RawMessage) bool {
	if len(object) != 1 {
		return false
	}
	value, ok := object[refusalSentinelKey]
	if !ok {
		return false
	}
	var flag bool
	if err := json.Unmarshal(value, &flag); err != nil {
		return false
	}
	return flag
}

// Wire shapes with pointer leaves so "missing" is distinguishable from zero.
type planPayload struct {
	Calories *float64       `json:"calories"`
	Protein  *float64       `json:"protein"`
	Carbs    *float64       `json:"carbs"`
	Fat      *float64       `json:"fat"`
	Meals    []*mealPayload `json:"meals"`
}

type mealPayload struct {
	Name  *string        `json:"name"`
	Time  *string        `json:"time"`
	Foods []*foodPayload `json:"foods"`
}

type foodPayload struct {
	Name     *string  `json:"name"`
	Serving  *string  `json:"serving"`
	Calories *float64 `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fat      *float64 `json:"fat"`
}

// decodePlan validates the strict plan schema and converts to the domain
// type. The input is known to be a syntactically valid single JSON object.
func decodePlan(raw string) (*domain.Plan, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var payload planPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, &SchemaContractError{Kind: RejectSchema, Reason: err.Error()}
	}

	totals := map[string]*float64{
		"calories": payload.Calories,
		"protein":  payload.Protein,
		"carbs":    payload.Carbs,
		"fat":      payload.Fat,
	}
	for field, value := range totals {
		if value == nil {
			return nil, schemaErr("missing numeric total %q", field)
		}
		if *value < 0 {
			return nil, schemaErr("total %q must be non-negative", field)
		}
	}
	if len(payload.Meals) == 0 {
		return nil, schemaErr("meals must be a non-empty array")
	}

	plan := &domain.Plan{
		Calories: *payload.Calories,
		Protein:  *payload.Protein,
		Carbs:    *payload.Carbs,
		Fat:      *payload.Fat,
		Meals:    make([]domain.Meal, 0, len(payload.Meals)),
	}
	for mi, meal := range payload.Meals {
		if meal == nil || meal.Name == nil || *meal.Name == "" {
			return nil, schemaErr("meal %d is missing its name", mi)
		}
		if meal.Time == nil || *meal.Time == "" {
			return nil, schemaErr("meal %d is missing its time", mi)
		}
		if len(meal.Foods) == 0 {
			return nil, schemaErr("meal %d has an empty food list", mi)
		}
		converted := domain.Meal{Name: *meal.Name, Time: *meal.Time, Foods: make([]domain.Food, 0, len(meal.Foods))}
		for fi, food := range meal.Foods {
			if food == nil || food.Name == nil || *food.Name == "" {
				return nil, schemaErr("meal %d food %d is missing its name", mi, fi)
			}
			if food.Serving == nil || *food.Serving == "" {
				return nil, schemaErr("meal %d food %d is missing its serving", mi, fi)
			}
			macros := map[string]*float64{
				"calories": food.Calories,
				"protein":  food.Protein,
				"carbs":    food.Carbs,
				"fat":      food.Fat,
			}
			for field, value := range macros {
				if value == nil {
					return nil, schemaErr("meal %d food %d is missing %q", mi, fi, field)
				}
				if *value < 0 {
					return nil, schemaErr("meal %d food %d: %q must be non-negative", mi, fi, field)
				}
			}
			converted.Foods = append(converted.Foods, domain.Food{
				Name:     *food.Name,
				Serving:  *food.Serving,
				Calories: *food.Calories,
				Protein:  *food.Protein,
				Carbs:    *food.Carbs,
				Fat:      *food.Fat,
			})
		}
		plan.Meals = append(plan.Meals, converted)
	}
	return plan, nil
}

func schemaErr(format string, args ...any) error {
	return &SchemaContractError{Kind: RejectSchema, Reason: fmt.Sprintf(format, args...)}
}

// stripCodeFences removes an optional surrounding markdown fence
// (``` or ```json) from a completion.
func stripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	} else {
		return strings.TrimSpace(strings.TrimPrefix(t, "```"))
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}
