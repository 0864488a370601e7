// Package validation provides common validation utilities for configuration
// parameters across the streamflow library.
//
// Stream, pipe and driver constructors use these helpers so that every
// rejected configuration surfaces as an errors.ValidationError wrapping
// errors.ErrInvalidConfiguration.
package validation
