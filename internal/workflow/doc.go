// Package workflow implements the staged reading-generation pipeline:
// Validate -> SelectCards -> Analyze -> Compose. Each stage is a pure
// function of the prior state that returns a partial update; the
// orchestrator merges updates and short-circuits as soon as a rejection
// or error is recorded. The workflow never retries; the only second
// attempt anywhere is the composer's one-shot fallback provider, and
// retry-by-resubmission belongs to the worker.
package workflow
