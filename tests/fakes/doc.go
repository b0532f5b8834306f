// Package fakes provides manual fake implementations of the pkg/store
// collaborator interfaces for testing.
//
// Fakes are test doubles with working in-memory implementations that take
// shortcuts compared to production code. They are more realistic than mocks
// but simpler than real backends, and they track mutating calls so tests can
// assert on reconciliation behavior (exactly one create, version counts,
// never-touched protected resources).
package fakes
