package codec

import "github.com/gear6io/shuttle/pkg/errors"

// Codec-specific error codes
var (
	ErrFrameTooLarge = errors.MustNewCode("codec.frame_too_large")
)
