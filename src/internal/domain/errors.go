package domain

import "errors"

var (
	ErrNotFound         = errors.New("user document not found")
	ErrInvalidDomain    = errors.New("invalid domain")
	ErrInvalidLimit     = errors.New("limit must be 0 or more")
	ErrInvalidPeriod    = errors.New("unknown period kind")
	ErrDuplicateSite    = errors.New("site already tracked")
	ErrSiteNotTracked   = errors.New("site not tracked")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAmountTooSmall   = errors.New("amount must be at least 50 cents")
)
