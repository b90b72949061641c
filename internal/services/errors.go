package services

import "errors"

var (
	ErrFileTooLarge       = errors.New("file exceeds the upload size limit")
	ErrTooManyRows        = errors.New("sheet exceeds the row limit")
	ErrNoDateRange        = errors.New("replace mode requires a date range")
	ErrInvalidDateRange   = errors.New("date range end is before its start")
	ErrInvalidMode        = errors.New("mode must be replace or incremental")
	ErrRunNotFound        = errors.New("import run not found")
	ErrRunAlreadyPromoted = errors.New("import run already promoted")
	ErrRunFailed          = errors.New("import run failed")
	ErrRunNotStaged       = errors.New("import run has no staged rows yet")
	ErrInvalidTransition  = errors.New("import run status does not allow this transition")
	ErrTransactionFailure = errors.New("promotion transaction failed")
	ErrPlanConflict       = errors.New("requested mode or range differs from a processing run")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("account suspended")
	ErrInvalidReference   = errors.New("invalid reference row")
)
