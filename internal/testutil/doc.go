// Package testutil holds deterministic helpers shared by package tests and
// the conformance harness.
package testutil
