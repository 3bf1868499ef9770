// Package routing holds the values that flow through a search request:
// the validated query, the per-source candidate answers, and the routing
// decision that records which stages ran and which source won.
//
// The types are plain values. The state machine that produces a Decision
// lives in services/routing.
package routing
