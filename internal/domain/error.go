package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Checkout / reconciliation
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrMissingRedirect    = errors.New("payment gateway returned no redirect url")
	ErrMissingToken       = errors.New("return url has no payment token")
	ErrNotSettled         = errors.New("payment is not settled")
	ErrUnresolvedActor    = errors.New("payer could not be determined")
	ErrUnresolvedSubject  = errors.New("purchased content could not be determined")
	ErrAlreadyPurchased   = errors.New("content already purchased")
	ErrAlreadyCreator     = errors.New("account is already a creator")
	ErrPartialActivation  = errors.New("payment received but creator activation failed")
	ErrContentUnavailable = errors.New("content is not available for purchase")
	ErrOwnContent         = errors.New("cannot purchase own content")
	ErrInvalidSignature   = errors.New("invalid notification signature")
)
