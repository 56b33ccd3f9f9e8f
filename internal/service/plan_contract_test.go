package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateResponseAcceptsConformantPlan(t *testing.T) {
	plan, raw, err := evaluateResponse(validPlanJSON)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, validPlanJSON, raw)
	assert.Equal(t, 160.0, plan.Protein)
	require.Len(t, plan.Meals, 1)
	require.Len(t, plan.Meals[0].Foods, 1)
	assert.Equal(t, "80g", plan.Meals[0].Foods[0].Serving)
}

func TestEvaluateResponseSentinelShapes(t *testing.T) {
	_, _, err := evaluateResponse(`{"off_topic": true}`)
	assert.ErrorIs(t, err, ErrOffDomainRequest)

	_, _, err = evaluateResponse("```json\n{\"off_topic\": true}\n```")
	assert.ErrorIs(t, err, ErrOffDomainRequest, "fenced sentinel still counts")

	// Anything short of the exact shape falls through to the schema gate.
	var contractErr *SchemaContractError
	_, _, err = evaluateResponse(`{"off_topic": false}`)
	require.ErrorAs(t, err, &contractErr)
	assert.Equal(t, RejectSchema, contractErr.Kind)

	_, _, err = evaluateResponse(`{"off_topic": true, "note": "sorry"}`)
	require.ErrorAs(t, err, &contractErr)
	assert.Equal(t, RejectSchema, contractErr.Kind)

	_, _, err = evaluateResponse(`{"off_topic": "true"}`)
	require.ErrorAs(t, err, &contractErr)
	assert.Equal(t, RejectSchema, contractErr.Kind)
}

func TestEvaluateResponseParseRejections(t *testing.T) {
	cases := map[string]string{
		"prose":            "Sure, here is your plan.",
		"array":            `[{"calories": 2000}]`,
		"truncated":        `{"calories": 2000,`,
		"trailing content": validPlanJSON + "\nHope that helps!",
		"two objects":      `{"off_topic": true} {"off_topic": true}`,
	}
	for name, input := range cases {
		_, _, err := evaluateResponse(input)
		var contractErr *SchemaContractError
		require.ErrorAs(t, err, &contractErr, name)
		assert.Equal(t, RejectParse, contractErr.Kind, name)
	}
}

func TestEvaluateResponseSchemaRejections(t *testing.T) {
	cases := map[string]string{
		"missing total": `{"protein":150,"carbs":200,"fat":60,"meals":[{"name":"Lunch","time":"13:00",` +
			`"foods":[{"name":"Rice","serving":"100g","calories":130,"protein":3,"carbs":28,"fat":0}]}]}`,
		"negative total": `{"calories":-1,"protein":150,"carbs":200,"fat":60,"meals":[{"name":"Lunch","time":"13:00",` +
			`"foods":[{"name":"Rice","serving":"100g","calories":130,"protein":3,"carbs":28,"fat":0}]}]}`,
		"empty meals": `{"calories":2000,"protein":150,"carbs":200,"fat":60,"meals":[]}`,
		"meal without time": `{"calories":2000,"protein":150,"carbs":200,"fat":60,"meals":[{"name":"Lunch",` +
			`"foods":[{"name":"Rice","serving":"100g","calories":130,"protein":3,"carbs":28,"fat":0}]}]}`,
		"empty foods": `{"calories":2000,"protein":150,"carbs":200,"fat":60,"meals":[{"name":"Lunch","time":"13:00","foods":[]}]}`,
		"food without serving": `{"calories":2000,"protein":150,"carbs":200,"fat":60,"meals":[{"name":"Lunch","time":"13:00",` +
			`"foods":[{"name":"Rice","calories":130,"protein":3,"carbs":28,"fat":0}]}]}`,
		"food missing macro": `{"calories":2000,"protein":150,"carbs":200,"fat":60,"meals":[{"name":"Lunch","time":"13:00",` +
			`"foods":[{"name":"Rice","serving":"100g","calories":130,"protein":3,"carbs":28}]}]}`,
		"unknown field": `{"calories":2000,"protein":150,"carbs":200,"fat":60,"notes":"enjoy","meals":[{"name":"Lunch","time":"13:00",` +
			`"foods":[{"name":"Rice","serving":"100g","calories":130,"protein":3,"carbs":28,"fat":0}]}]}`,
	}
	for name, input := range cases {
		_, _, err := evaluateResponse(input)
		var contractErr *SchemaContractError
		require.ErrorAs(t, err, &contractErr, name)
		assert.Equal(t, RejectSchema, contractErr.Kind, name)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"bare":              {`{"a":1}`, `{"a":1}`},
		"plain fence":       {"```\n{\"a\":1}\n```", `{"a":1}`},
		"json fence":        {"```json\n{\"a\":1}\n```", `{"a":1}`},
		"padded":            {"  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
		"single line fence": {"```{\"a\":1}", `{"a":1}`},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, stripCodeFences(tc.in), name)
	}
}
