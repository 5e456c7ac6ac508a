// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tooluse

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"converser/pkg/errors"
)

type weatherInput struct {
	City string `json:"city"`
	Unit string `json:"unit,omitempty"`
}

const weatherDoc = `Get the current weather for a city.

Args:
    city (str): Name of the city
    unit: Temperature unit

Returns:
    The forecast.`

type annotatedInput struct {
	City string `json:"city" jsonschema:"description=City name,required,minLength=2,maxLength=40"`
	Days int    `json:"days,omitempty" jsonschema:"description=Forecast days,minimum=1,maximum=7"`
}

type noArgs struct{}

func TestParseDocstring(t *testing.T) {
	main, params := ParseDocstring(weatherDoc)
	assert.Equal(t, "Get the current weather for a city.\n\nReturns:\nThe forecast.", main)
	assert.Equal(t, map[string]string{
		"city": "Name of the city",
		"unit": "Temperature unit",
	}, params)
}

func TestParseDocstring_ParametersHeaderAndNoColonLines(t *testing.T) {
	doc := "Add numbers.\nParameters\n----------\na : first\nb: second\n\nTrailing line."
	main, params := ParseDocstring(doc)
	assert.Equal(t, "Add numbers.\nTrailing line.", main)
	assert.Equal(t, "first", params["a"])
	assert.Equal(t, "second", params["b"])
	assert.Len(t, params, 2)
}

func TestGenerate_DocstringStrategy(t *testing.T) {
	d, err := Generate[weatherInput]("get_weather", weatherDoc)
	require.NoError(t, err)

	assert.Equal(t, "get_weather", d.Name)
	assert.Equal(t, "Get the current weather for a city.\n\nReturns:\nThe forecast.", d.Description)
	assert.Equal(t, "object", d.InputSchema["type"])

	props, ok := d.InputSchema["properties"].(map[string]any)
	require.True(t, ok)
	require.Len(t, props, 2)
	city := props["city"].(map[string]any)
	assert.Equal(t, "string", city["type"])
	assert.Equal(t, "Name of the city", city["description"])
	unit := props["unit"].(map[string]any)
	assert.Equal(t, "Temperature unit", unit["description"])

	assert.ElementsMatch(t, []string{"city"}, RequiredOf(d))
}

func TestGenerate_MissingDocstring(t *testing.T) {
	_, err := Generate[weatherInput]("get_weather", "   ")
	assert.ErrorIs(t, err, errors.ErrMissingDocstring)
}

func TestGenerate_AnnotatedStrategy(t *testing.T) {
	d, err := Generate[annotatedInput]("forecast", "  Forecast for a city.  ")
	require.NoError(t, err)

	assert.Equal(t, "Forecast for a city.", d.Description)
	assert.Equal(t, "object", d.InputSchema["type"])
	props, ok := d.InputSchema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "city")
	require.Contains(t, props, "days")
	assert.Equal(t, "City name", props["city"].(map[string]any)["description"])
	assert.Equal(t, "integer", props["days"].(map[string]any)["type"])

	// 数值与长度约束原样进入 schema
	city, days := props["city"].(map[string]any), props["days"].(map[string]any)
	assert.EqualValues(t, 2, city["minLength"])
	assert.EqualValues(t, 40, city["maxLength"])
	assert.EqualValues(t, 1, days["minimum"])
	assert.EqualValues(t, 7, days["maximum"])

	req := RequiredOf(d)
	assert.Contains(t, req, "city")
	assert.NotContains(t, req, "days")
}

func TestGenerate_AnnotatedStrategyAllowsEmptyDoc(t *testing.T) {
	d, err := Generate[annotatedInput]("forecast", "")
	require.NoError(t, err)
	assert.Equal(t, "", d.Description)
}

func TestGenerate_ZeroParams(t *testing.T) {
	d, err := Generate[noArgs]("ping", "Ping the service.")
	require.NoError(t, err)
	assert.Equal(t, "Ping the service.", d.Description)
	assert.Empty(t, d.InputSchema["properties"])
	assert.Empty(t, RequiredOf(d))
}

func TestGenerate_RejectsNonStruct(t *testing.T) {
	_, err := Generate[string]("bad", "doc")
	assert.ErrorIs(t, err, errors.ErrInvalidArg)

	_, err = Generate[weatherInput]("", weatherDoc)
	assert.ErrorIs(t, err, errors.ErrInvalidArg)
}

func TestFromParams(t *testing.T) {
	d, err := FromParams("add", "Add two numbers.\nArgs:\n  a: first\n  b: second",
		Param{Name: "a", Type: "integer", Required: true},
		Param{Name: "b", Type: "number", Required: true},
		Param{Name: "tags", Type: "array"},
		Param{Name: "mode", Type: "weird", Description: "explicit"},
	)
	require.NoError(t, err)
	assert.Equal(t, "Add two numbers.", d.Description)

	props := d.InputSchema["properties"].(map[string]any)
	assert.Equal(t, "integer", props["a"].(map[string]any)["type"])
	assert.Equal(t, "first", props["a"].(map[string]any)["description"])
	assert.Equal(t, "array", props["tags"].(map[string]any)["type"])
	assert.Equal(t, "", props["tags"].(map[string]any)["description"])
	assert.Equal(t, "string", props["mode"].(map[string]any)["type"])
	assert.Equal(t, "explicit", props["mode"].(map[string]any)["description"])
	assert.Equal(t, []string{"a", "b"}, RequiredOf(d))
}

func TestJSONType(t *testing.T) {
	var p *int
	cases := []struct {
		v    any
		want string
	}{
		{"s", "string"},
		{1, "integer"},
		{uint8(1), "integer"},
		{1.5, "number"},
		{true, "boolean"},
		{[]string{}, "array"},
		{[]byte{}, "string"},
		{map[string]int{}, "object"},
		{struct{}{}, "object"},
		{p, "integer"},
		{make(chan int), "string"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, JSONType(reflect.TypeOf(tc.v)), "%T", tc.v)
	}
}

func TestDescriptor_ToolInfo(t *testing.T) {
	d, err := Generate[weatherInput]("get_weather", weatherDoc)
	require.NoError(t, err)
	info, err := d.ToolInfo()
	require.NoError(t, err)
	assert.Equal(t, "get_weather", info.Name)
	assert.Equal(t, d.Description, info.Desc)
	require.NotNil(t, info.ParamsOneOf)

	js, err := info.ParamsOneOf.ToJSONSchema()
	require.NoError(t, err)
	require.NotNil(t, js)
	assert.Equal(t, "object", js.Type)
	assert.ElementsMatch(t, []string{"city"}, js.Required)
}
