// Package services defines the shared error taxonomy for harness components.
//
// Sentinel markers distinguish external engine failures, validation problems,
// configuration mistakes, and transient conditions. Wrap tags errors with a
// marker plus component/operation context so callers can classify failures
// without string matching.
package services
