// Package llm provides a provider-neutral abstraction over Large Language Model
// vendors with per-provider retry and prioritized cross-provider fallback.
//
// # Core Concepts
//
//  1. Provider: the capability contract every vendor adapter implements:
//     Generate, GenerateCode, a cheap Available check, and identity
//     (Name/Model). Adapters live in subpackages (gemini, anthropic, openai,
//     ollama) and translate vendor wire formats and failures into the uniform
//     Request/Error model defined here.
//
//  2. RetryClient: wraps one Provider with a deterministic retry state
//     machine using linear backoff scaled by the attempt index, no jitter. Fatal
//     errors short-circuit; retryable errors are absorbed until the attempt
//     budget is spent.
//
//  3. Manager: an ordered registry of retry clients. It selects candidates by
//     priority, skips unavailable providers, and falls back to the next
//     candidate when one fails. The first success wins; total failure
//     surfaces as a single aggregated error.
//
//  4. Errors: the Error type carries a classified Kind, the originating
//     provider, and a retryable flag. Adapters classify; the retry loop and
//     the fallback loop only branch on the classification, never on vendor
//     details.
//
//  5. Keyring: a rotating multi-key credential source for vendors that
//     support several API keys, with per-key usage stats and cooldown.
//
// # Extension Points
//
// To add a vendor:
//  1. Implement the Provider interface in a subpackage.
//  2. Translate vendor responses into plain text and vendor failures into
//     *llm.Error values using the constructors in errors.go.
//  3. Wrap it in a RetryClient and register it with the Manager.
package llm
