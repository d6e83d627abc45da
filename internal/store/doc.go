// Package store is the solve history: a SQLite database with one row per
// recorded rootfinder run and one row per iteration of its trace.
//
// Runs get a seq number on insert. Listings order by seq, then id, and
// never by wall time, so two histories built from the same solves list
// identically.
//
// Options are stored as canonical JSON (variant.MarshalCanonical) next to
// their hash; RunFilter.OptionsHash groups runs that used the same option
// set. Vectors are JSON arrays with non-finite entries written as null.
//
// The schema lives in schema.sql. Indexes added later are applied as
// numbered migrations tracked in PRAGMA user_version.
package store
