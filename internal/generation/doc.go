// Package generation implements the second pipeline stage: drafting an
// unstyled slide structure from extracted content.
package generation
