// Package llm contains adapters for invoking large language models. It
// abstracts away provider-specific APIs and normalizes request/response
// lifecycles for use within the crew runtime. The provider is selected by
// model name prefix, mirroring the behaviour users expect from the CLI:
// claude* models are served by Anthropic, gpt* models by OpenAI.
package llm
