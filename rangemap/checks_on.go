//go:build memstatechecks

package rangemap

// Build with -tags memstatechecks to validate offset/length preconditions
// and internal scan invariants on every call. Violations panic. Intended for
// tests and debugging; production builds leave this off to keep the lookup
// and mutation paths free of bounds checks.
const debugChecks = true
