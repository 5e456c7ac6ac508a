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

package catalog

// Bedrock 模型能力表（Converse API 功能检测结果）
var (
	AmazonTitanTg1Large = Model{
		Name:           "Titan Text Large",
		ID:             "amazon.titan-tg1-large",
		Converse:       true,
		ConverseStream: true,
		DocumentChat:   true,
		Guardrails:     true,
	}

	AmazonTitanTextLiteV1 = Model{
		Name:           "Titan Text G1 - Lite",
		ID:             "amazon.titan-text-lite-v1",
		Converse:       true,
		ConverseStream: true,
		DocumentChat:   true,
		Guardrails:     true,
	}

	AmazonTitanTextExpressV1 = Model{
		Name:           "Titan Text G1 - Express",
		ID:             "amazon.titan-text-express-v1",
		Converse:       true,
		ConverseStream: true,
		DocumentChat:   true,
		Guardrails:     true,
	}

	AmazonTitanTextAgileV1 = Model{
		Name: "Titan Text G1 - Agile",
		ID:   "amazon.titan-text-agile-v1",
	}

	AI21J2GrandeInstruct = Model{
		Name:       "J2 Grande Instruct",
		ID:         "ai21.j2-grande-instruct",
		Converse:   true,
		Guardrails: true,
	}

	AI21J2JumboInstruct = Model{
		Name:         "J2 Jumbo Instruct",
		ID:           "ai21.j2-jumbo-instruct",
		Converse:     true,
		DocumentChat: true,
		Guardrails:   true,
	}

	AI21J2Mid = Model{
		Name:       "Jurassic-2 Mid",
		ID:         "ai21.j2-mid",
		Converse:   true,
		Guardrails: true,
	}

	AI21J2MidV1 = Model{
		Name:       "Jurassic-2 Mid",
		ID:         "ai21.j2-mid-v1",
		Converse:   true,
		Guardrails: true,
	}

	AI21J2Ultra = Model{
		Name:         "Jurassic-2 Ultra",
		ID:           "ai21.j2-ultra",
		Converse:     true,
		DocumentChat: true,
		Guardrails:   true,
	}

	AI21J2UltraV1 = Model{
		Name:         "Jurassic-2 Ultra",
		ID:           "ai21.j2-ultra-v1",
		Converse:     true,
		DocumentChat: true,
		Guardrails:   true,
	}

	AnthropicClaudeInstantV1 = Model{
		Name:           "Claude Instant",
		ID:             "anthropic.claude-instant-v1",
		Converse:       true,
		ConverseStream: true,
		SystemPrompts:  true,
		DocumentChat:   true,
		Guardrails:     true,
	}

	AnthropicClaudeV21 = Model{
		Name:           "Claude",
		ID:             "anthropic.claude-v2:1",
		Converse:       true,
		ConverseStream: true,
		SystemPrompts:  true,
		DocumentChat:   true,
		Guardrails:     true,
	}

	AnthropicClaudeV2 = Model{
		Name:           "Claude",
		ID:             "anthropic.claude-v2",
		Converse:       true,
		ConverseStream: true,
		SystemPrompts:  true,
		DocumentChat:   true,
		Guardrails:     true,
	}

	AnthropicClaude3Sonnet20240229V10 = Model{
		Name:             "Claude 3 Sonnet",
		ID:               "anthropic.claude-3-sonnet-20240229-v1:0",
		Converse:         true,
		ConverseStream:   true,
		SystemPrompts:    true,
		DocumentChat:     true,
		Vision:           true,
		ToolUse:          true,
		StreamingToolUse: true,
		Guardrails:       true,
	}

	AnthropicClaude3Haiku20240307V10 = Model{
		Name:             "Claude 3 Haiku",
		ID:               "anthropic.claude-3-haiku-20240307-v1:0",
		Converse:         true,
		ConverseStream:   true,
		SystemPrompts:    true,
		DocumentChat:     true,
		Vision:           true,
		ToolUse:          true,
		StreamingToolUse: true,
		Guardrails:       true,
	}

	AnthropicClaude3Opus20240229V10 = Model{
		Name:             "Claude 3 Opus",
		ID:               "anthropic.claude-3-opus-20240229-v1:0",
		Converse:         true,
		ConverseStream:   true,
		SystemPrompts:    true,
		DocumentChat:     true,
		Vision:           true,
		ToolUse:          true,
		StreamingToolUse: true,
		Guardrails:       true,
	}

	CohereCommandTextV14 = Model{
		Name:           "Command",
		ID:             "cohere.command-text-v14",
		Converse:       true,
		ConverseStream: true,
		DocumentChat:   true,
		Guardrails:     true,
	}

	CohereCommandRV10 = Model{
		Name:           "Command R",
		ID:             "cohere.command-r-v1:0",
		Converse:       true,
		ConverseStream: true,
		SystemPrompts:  true,
		DocumentChat:   true,
		ToolUse:        true,
		Guardrails:     true,
	}

	CohereCommandRPlusV10 = Model{
		Name:           "Command R+",
		ID:             "cohere.command-r-plus-v1:0",
		Converse:       true,
		ConverseStream: true,
		SystemPrompts:  true,
		DocumentChat:   true,
		ToolUse:        true,
		Guardrails:     true,
	}

	CohereCommandLightTextV14 = Model{
		Name:           "Command Light",
		ID:             "cohere.command-light-text-v14",
		Converse:       true,
		ConverseStream: true,
		Guardrails:     true,
	}

	MetaLlama38bInstructV10 = Model{
		Name:           "Llama 3 8B Instruct",
		ID:             "meta.llama3-8b-instruct-v1:0",
		Converse:       true,
		ConverseStream: true,
		SystemPrompts:  true,
		DocumentChat:   true,
		Guardrails:     true,
	}

	MetaLlama370bInstructV10 = Model{
		Name:           "Llama 3 70B Instruct",
		ID:             "meta.llama3-70b-instruct-v1:0",
		Converse:       true,
		ConverseStream: true,
		SystemPrompts:  true,
		DocumentChat:   true,
		Guardrails:     true,
	}

	MistralMistral7bInstructV02 = Model{
		Name:           "Mistral 7B Instruct",
		ID:             "mistral.mistral-7b-instruct-v0:2",
		Converse:       true,
		ConverseStream: true,
		DocumentChat:   true,
		Guardrails:     true,
	}

	MistralMixtral8x7bInstructV01 = Model{
		Name:           "Mixtral 8x7B Instruct",
		ID:             "mistral.mixtral-8x7b-instruct-v0:1",
		Converse:       true,
		ConverseStream: true,
		DocumentChat:   true,
		Guardrails:     true,
	}

	MistralMistralLarge2402V10 = Model{
		Name:           "Mistral Large",
		ID:             "mistral.mistral-large-2402-v1:0",
		Converse:       true,
		ConverseStream: true,
		SystemPrompts:  true,
		DocumentChat:   true,
		ToolUse:        true,
		Guardrails:     true,
	}

	AmazonTitanTextPremierV10 = Model{
		Name:           "Titan Text G1 - Premier",
		ID:             "amazon.titan-text-premier-v1:0",
		Converse:       true,
		ConverseStream: true,
		Guardrails:     true,
	}

	AI21JambaInstructV10 = Model{
		Name:          "Jamba-Instruct",
		ID:            "ai21.jamba-instruct-v1:0",
		Converse:      true,
		SystemPrompts: true,
		Guardrails:    true,
	}

	AnthropicClaude35Sonnet20240620V10 = Model{
		Name:             "Claude 3.5 Sonnet",
		ID:               "anthropic.claude-3-5-sonnet-20240620-v1:0",
		Converse:         true,
		ConverseStream:   true,
		SystemPrompts:    true,
		DocumentChat:     true,
		Vision:           true,
		ToolUse:          true,
		StreamingToolUse: true,
		Guardrails:       true,
	}

	MistralMistralSmall2402V10 = Model{
		Name:           "Mistral Small",
		ID:             "mistral.mistral-small-2402-v1:0",
		Converse:       true,
		ConverseStream: true,
		SystemPrompts:  true,
		ToolUse:        true,
		Guardrails:     true,
	}
)

// all 保持声明顺序
var all = []Model{
	AmazonTitanTg1Large,
	AmazonTitanTextLiteV1,
	AmazonTitanTextExpressV1,
	AmazonTitanTextAgileV1,
	AI21J2GrandeInstruct,
	AI21J2JumboInstruct,
	AI21J2Mid,
	AI21J2MidV1,
	AI21J2Ultra,
	AI21J2UltraV1,
	AnthropicClaudeInstantV1,
	AnthropicClaudeV21,
	AnthropicClaudeV2,
	AnthropicClaude3Sonnet20240229V10,
	AnthropicClaude3Haiku20240307V10,
	AnthropicClaude3Opus20240229V10,
	CohereCommandTextV14,
	CohereCommandRV10,
	CohereCommandRPlusV10,
	CohereCommandLightTextV14,
	MetaLlama38bInstructV10,
	MetaLlama370bInstructV10,
	MistralMistral7bInstructV02,
	MistralMixtral8x7bInstructV01,
	MistralMistralLarge2402V10,
	AmazonTitanTextPremierV10,
	AI21JambaInstructV10,
	AnthropicClaude35Sonnet20240620V10,
	MistralMistralSmall2402V10,
}
