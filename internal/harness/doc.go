// Package harness provides a conformance testing framework for rootfinder
// plugins.
//
// A scenario names a problem file and a list of runs, each a solve of that
// problem with an optional solver, option overrides and input overrides.
// Every run is recorded in a fresh in-memory store. The harness then
// checks each run's expect clause and the scenario's assertions:
//
//   - roots_agree: the listed runs converged to the same root
//   - norm_decreasing: a run's residual norm never increased
//   - iterations_at_most: a run took at most count iterations
//   - sensitivities: forward and reverse derivatives of a run's root agree
//     with each other and with central differences
//   - stored_runs: the store holds count runs (optionally of one status)
//
// Iteration traces can be compared against golden files. Numbers in a
// golden trace are printed to four significant digits and magnitudes below
// 1e-9 print as 0, so traces are stable across platforms.
package harness
