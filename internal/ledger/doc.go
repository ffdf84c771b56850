// Package ledger records run history in SQLite for reporting.
//
// Each generate or filter invocation gets a row with its counts; filter
// runs additionally persist per-line drop reasons. The ledger never drives
// resume decisions: whether an example is redone depends solely on its
// output file existing.
package ledger
