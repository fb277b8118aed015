package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidParameter     ErrorCode = 101

	// Validation rejections (200-299). An order failing one of these checks is
	// never registered; the run continues.
	ErrCodeOrderValueExceeded ErrorCode = 200
	ErrCodeRateLimitExceeded  ErrorCode = 201
	ErrCodeInvalidQuantity    ErrorCode = 202
	ErrCodeInsufficientCash   ErrorCode = 203

	// Order lifecycle errors (300-399)
	ErrCodeUnknownOrder    ErrorCode = 300
	ErrCodeOverFill        ErrorCode = 301
	ErrCodeStaleFill       ErrorCode = 302
	ErrCodeInvalidFill     ErrorCode = 303
	ErrCodeGatewayRejected ErrorCode = 304

	// Gateway/stream errors (400-499)
	ErrCodeGatewayUnavailable ErrorCode = 400
	ErrCodeStreamFailed       ErrorCode = 401
	ErrCodeDataSourceFailed   ErrorCode = 402

	// Store errors (500-599)
	ErrCodeStoreFailed  ErrorCode = 500
	ErrCodeExportFailed ErrorCode = 501

	// Strategy errors (600-699)
	ErrCodeUnknownStrategy       ErrorCode = 600
	ErrCodeStrategyConfigError   ErrorCode = 601
	ErrCodeStrategyAlreadyExists ErrorCode = 602
)

// IsValidationRejection reports whether the code belongs to the admission
// control family: the order never reached a market.
func (c ErrorCode) IsValidationRejection() bool {
	return c >= 200 && c < 300
}
