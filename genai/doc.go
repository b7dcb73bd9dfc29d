// Package genai houses implementations of core.GenerationService.
//
// Resources carries the in-process bookkeeping every backend shares:
// knowledge stores, chat templates and transcript rows. InMemoryService
// completes it with deterministic canned replies, suitable for tests and
// demos. Provider-backed adapters live in sub-packages (openai, anthropic)
// so higher level packages depend only on the core contract and the wiring
// layer decides which backend to instantiate.
package genai
