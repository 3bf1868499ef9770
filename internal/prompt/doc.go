// Package prompt holds the text detectors used around a math question:
// prohibited vocabulary, unsafe markup, prompt-injection patterns, and PII
// that must not reach the API-call log.
package prompt
