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

// Package tooluse 从 Go 输入类型生成模型可用的工具描述（name / description / JSON Schema）。
//
// 两种策略：
//   - 字段带 jsonschema 标签时，交给 eino 的结构体反射生成 schema，描述取整段 doc；
//   - 否则按 doc 解析 Args 段，字段类型映射为 JSON 类型，未标 omitempty 的字段为必填。
package tooluse

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/eino-contrib/jsonschema"

	"converser/pkg/errors"
)

// Descriptor 工具描述，InputSchema 形如 {type: object, properties, required}
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Param 显式参数表的一项（Go 无法在运行时取得函数参数名）
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Generate 基于结构体 T 生成工具描述
func Generate[T any](name, doc string) (Descriptor, error) {
	if name == "" {
		return Descriptor{}, errors.Wrap(errors.ErrInvalidArg, "tool name is required")
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return Descriptor{}, errors.Wrapf(errors.ErrInvalidArg, "tool %s input must be a struct, got %s", name, t.Kind())
	}
	if hasSchemaTags(t) {
		po, err := utils.GoStruct2ParamsOneOf[T]()
		if err != nil {
			return Descriptor{}, fmt.Errorf("tool %s: build params: %w", name, err)
		}
		inputSchema, err := paramsToSchema(po, nil)
		if err != nil {
			return Descriptor{}, fmt.Errorf("tool %s: %w", name, err)
		}
		return Descriptor{Name: name, Description: strings.TrimSpace(doc), InputSchema: inputSchema}, nil
	}
	return FromParams(name, doc, structParams(t)...)
}

// FromParams 按 doc 与显式参数表生成描述；doc 为空返回 ErrMissingDocstring
func FromParams(name, doc string, params ...Param) (Descriptor, error) {
	if name == "" {
		return Descriptor{}, errors.Wrap(errors.ErrInvalidArg, "tool name is required")
	}
	if strings.TrimSpace(doc) == "" {
		return Descriptor{}, fmt.Errorf("tool %s: %w", name, errors.ErrMissingDocstring)
	}
	mainDesc, paramDesc := ParseDocstring(doc)

	infos := make(map[string]*schema.ParameterInfo, len(params))
	order := make([]string, 0, len(params))
	for _, p := range params {
		if p.Name == "" {
			return Descriptor{}, errors.Wrapf(errors.ErrInvalidArg, "tool %s: parameter without name", name)
		}
		jsonType := normalizeType(p.Type)
		desc := p.Description
		if desc == "" {
			desc = paramDesc[p.Name]
		}
		info := &schema.ParameterInfo{
			Type:     schema.DataType(jsonType),
			Desc:     desc,
			Required: p.Required,
		}
		if jsonType == "array" {
			info.ElemInfo = &schema.ParameterInfo{Type: schema.String}
		}
		infos[p.Name] = info
		order = append(order, p.Name)
	}

	required := make([]string, 0, len(params))
	for _, p := range params {
		if p.Required {
			required = append(required, p.Name)
		}
	}
	inputSchema, err := paramsToSchema(schema.NewParamsOneOfByParams(infos), required)
	if err != nil {
		return Descriptor{}, fmt.Errorf("tool %s: %w", name, err)
	}
	ensureDescriptions(inputSchema, order)
	return Descriptor{Name: name, Description: mainDesc, InputSchema: inputSchema}, nil
}

// ToolInfo 转换为 eino 工具元信息，供模型后端绑定
func (d Descriptor) ToolInfo() (*schema.ToolInfo, error) {
	raw, err := json.Marshal(d.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema: %w", err)
	}
	js := &jsonschema.Schema{}
	if err := json.Unmarshal(raw, js); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	return &schema.ToolInfo{
		Name:        d.Name,
		Desc:        d.Description,
		ParamsOneOf: schema.NewParamsOneOfByJSONSchema(js),
	}, nil
}

// ToolInfos 批量转换
func ToolInfos(ds []Descriptor) ([]*schema.ToolInfo, error) {
	out := make([]*schema.ToolInfo, 0, len(ds))
	for _, d := range ds {
		info, err := d.ToolInfo()
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", d.Name, err)
		}
		out = append(out, info)
	}
	return out, nil
}

// JSONType 将 Go 类型映射为 JSON Schema 类型名，无法识别时为 string
func JSONType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return "string"
		}
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	}
	return "string"
}

func normalizeType(s string) string {
	switch s {
	case "string", "integer", "number", "boolean", "array", "object":
		return s
	}
	return "string"
}

// hasSchemaTags 任一导出字段带 jsonschema 注解即视为注解策略
func hasSchemaTags(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if _, ok := f.Tag.Lookup("jsonschema"); ok {
			return true
		}
		if _, ok := f.Tag.Lookup("jsonschema_description"); ok {
			return true
		}
	}
	return false
}

// structParams 由结构体字段得出参数表：json 标签名优先，omitempty 视为有默认值
func structParams(t reflect.Type) []Param {
	var params []Param
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		omitempty := false
		if tag, ok := f.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" || opt == "omitzero" {
					omitempty = true
				}
			}
		}
		params = append(params, Param{
			Name:        name,
			Type:        JSONType(f.Type),
			Description: f.Tag.Get("desc"),
			Required:    !omitempty,
		})
	}
	return params
}

// paramsToSchema 经 eino 生成 JSON Schema 后转为通用 map，并补齐 object/properties/required
func paramsToSchema(po *schema.ParamsOneOf, required []string) (map[string]any, error) {
	js, err := po.ToJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("build json schema: %w", err)
	}
	out := map[string]any{}
	if js != nil {
		raw, err := json.Marshal(js)
		if err != nil {
			return nil, fmt.Errorf("marshal json schema: %w", err)
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode json schema: %w", err)
		}
	}
	out["type"] = "object"
	if _, ok := out["properties"].(map[string]any); !ok {
		out["properties"] = map[string]any{}
	}
	if required != nil {
		out["required"] = required
	} else if _, ok := out["required"].([]any); !ok {
		out["required"] = []string{}
	}
	return out, nil
}

func ensureDescriptions(inputSchema map[string]any, order []string) {
	props, _ := inputSchema["properties"].(map[string]any)
	for _, name := range order {
		p, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		if _, ok := p["description"]; !ok {
			p["description"] = ""
		}
	}
}

// RequiredOf 读取描述中的必填字段名，兼容 []string 与 []any
func RequiredOf(d Descriptor) []string {
	switch v := d.InputSchema["required"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
