// Package plugin implements the generic name → factory registry used for
// every swappable capability (rootfinder algorithms, linear solvers).
//
// Each capability kind gets its own Registry[T, A] partition, where T is the
// capability interface and A the constructor argument the factory receives.
// Registries are process-wide values owned by the capability package, e.g.
//
//	var Solvers = plugin.NewRegistry[Solver, sparsity.Pattern]("linsol", "lu")
//
// Lookups are safe from any goroutine. Registration takes the same lock, so
// re-registering during lookups is serialised; it is meant for start-up and
// explicit overrides, not for hot paths.
//
// # Discovery
//
// When a name is not registered, Load asks each configured Locator to make
// it available before giving up with a *NotFoundError that lists the known
// names. FuncLocator wraps in-process lazy providers; DirLocator opens Go
// shared objects named <kind>_<name>.so from a list of directories and calls
// their exported Register function.
//
// # Options
//
// Every plugin publishes an OptionTable. Resolve validates a caller's
// variant.Dict against it: unknown keys and values that cannot be widened to
// the declared type are rejected with *OptionError at construction time.
// RenderTable prints the table as the fixed-width grid used in generated
// plugin documentation.
package plugin
