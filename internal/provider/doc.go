// Package provider implements C2's single-shot LLM gateway: a thin
// abstraction over Anthropic and OpenAI's chat completion APIs, plus the
// process-wide registry C5/C7 select a configured provider from.
package provider
