// Package domain defines the data model and contracts shared across the
// gateway. It contains plain types, errors and interfaces only.
//
// Types live in the types subpackage and contracts in the interfaces
// subpackage; both are re-exported here so callers import a single package.
package domain
