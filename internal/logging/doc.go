// Package logging wires log/slog for the harness.
//
// It offers a console handler for interactive runs (timestamp, level,
// component prefix, flattened k=v attributes) and a JSON handler for
// machine-readable logs, selected through configuration. Attr helpers and
// standardized field keys keep worker, device, and example identifiers
// consistent across components.
package logging
