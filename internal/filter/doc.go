// Package filter removes benchmark records whose video reference is absent.
//
// Lines are checked concurrently but emitted in their original order, and
// every removal carries an explicit reason rather than disappearing behind a
// console print.
package filter
