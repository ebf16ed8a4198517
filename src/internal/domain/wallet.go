package domain

type WalletState struct {
	BalanceCents      int64 `json:"walletBalance"`
	TotalDonatedCents int64 `json:"totalDonated"`
}

type ResultStatus string

const (
	StatusSuccess    ResultStatus = "success"
	StatusFailedTime ResultStatus = "failed_time"
	StatusFailedEdit ResultStatus = "failed_edit"
)

// DailyResult is the outcome of one reconciliation run for one user.
// At most one exists per user; a new run replaces the previous one.
type DailyResult struct {
	ForDate string       `json:"date"` // YYYY-MM-DD in the reference zone
	Status  ResultStatus `json:"status"`
	Seen    bool         `json:"seen"`
}
