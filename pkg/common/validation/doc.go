// Package validation provides the configuration checks shared by the
// reader, writer, channel and codec constructors.
//
// Every function returns a *errors.ValidationError, which matches
// errors.ErrInvalidConfiguration under errors.Is:
//
//	if err := validation.ValidatePositive("reader", "ChunkSize", cfg.ChunkSize); err != nil {
//		return nil, err
//	}
package validation
