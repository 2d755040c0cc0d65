// Package generation defines the boundary between the reading pipeline
// and external model providers. The workflow consumes these interfaces;
// internal/platform/gemini implements them. Semantic accuracy of the
// providers is outside this package's contract; it only defines shapes
// and failure categories.
package generation
