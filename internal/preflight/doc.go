// Package preflight provides readiness checks for the directories and
// external services the daemon depends on.
//
// The daemon runs RunAll at startup and refuses to process work while any
// check fails; the CLI status command reuses the individual checks to show
// what is wrong. Directory checks create missing directories rather than
// failing on a fresh install.
package preflight
