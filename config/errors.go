package config

import "github.com/gear6io/shuttle/pkg/errors"

// Config-specific error codes
var (
	ErrFileReadFailed     = errors.MustNewCode("config.file_read_failed")
	ErrFileParseFailed    = errors.MustNewCode("config.file_parse_failed")
	ErrEnvParseFailed     = errors.MustNewCode("config.env_parse_failed")
	ErrValidationFailed   = errors.MustNewCode("config.validation_failed")
	ErrInvalidLogLevel    = errors.MustNewCode("config.invalid_log_level")
	ErrInvalidLogFormat   = errors.MustNewCode("config.invalid_log_format")
	ErrInvalidBatchSize   = errors.MustNewCode("config.invalid_batch_size")
	ErrInvalidMessageSize = errors.MustNewCode("config.invalid_message_size")
	ErrInvalidQueueSize   = errors.MustNewCode("config.invalid_queue_size")
)
