// Package gemini implements the generation provider interfaces using
// Google's Gemini API. One client serves the classifier, analyzer and
// composer roles, each bound to its own configured model.
package gemini
