package errs

const (
	ServerInternalError = 500
	ArgsError           = 1001
	NoPermissionError   = 1002
	DuplicateKeyError   = 1003
	RecordNotFoundError = 1004

	TokenExpiredError = 1501
	TokenInvalidError = 1502
	TokenMissingError = 1503
)

var (
	ErrInternalServer = NewCodeError(ServerInternalError, "ServerInternalError")
	ErrArgs           = NewCodeError(ArgsError, "ArgsError")
	ErrNoPermission   = NewCodeError(NoPermissionError, "NoPermissionError")
	ErrDuplicateKey   = NewCodeError(DuplicateKeyError, "DuplicateKeyError")
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "RecordNotFoundError")

	ErrTokenExpired = NewCodeError(TokenExpiredError, "TokenExpiredError")
	ErrTokenInvalid = NewCodeError(TokenInvalidError, "TokenInvalidError")
	ErrTokenMissing = NewCodeError(TokenMissingError, "TokenMissingError")
)
