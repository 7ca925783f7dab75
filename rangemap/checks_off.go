//go:build !memstatechecks

package rangemap

// Precondition checking is compiled out by default. Out-of-bounds accesses
// are contract violations with undefined behaviour (in practice, a natural
// slice bounds panic). Build with -tags memstatechecks to get explicit
// checking.
const debugChecks = false
