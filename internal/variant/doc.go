// Package variant provides the tagged configuration value used to pass
// solver options and metadata between callers and plugins.
//
// A Value holds exactly one payload of a fixed set of kinds. The kind is
// chosen at construction and never changes; there are no mutators. To
// "change" a value, construct a new one.
//
// Access comes in two flavours:
//   - AsX returns the payload only if the tag is exactly X, otherwise a
//     *TypeError.
//   - ToX additionally applies a widening conversion when CanCastTo(X)
//     holds (e.g. Int → Double, Bool → Int).
//
// Equality compares tag first, then payload. Int(5) and Double(5) are
// never equal.
//
// Dict is the universal options container handed to plugin factories.
// Its JSON form uses RFC 8785 key ordering; MarshalCanonical additionally
// NFC-normalises strings so option sets can be hashed and stored.
package variant
