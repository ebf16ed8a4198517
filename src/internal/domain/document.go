package domain

import "time"

// UserDocument is the authoritative per-user record. The local cache is a
// disposable projection of it; every write back is a partial-field merge
// except the one Overwrite at account creation.
type UserDocument struct {
	Email              string                `json:"email"`
	Sites              []TrackedSite         `json:"unallowed_urls"`
	Tracking           map[string]TimeRecord `json:"time_tracking"`
	WalletBalanceCents int64                 `json:"walletBalance"`
	TotalDonatedCents  int64                 `json:"totalDonated"`
	SelectedCharity    string                `json:"selectedCharity"`
	EditHistory        []EditLogEntry        `json:"editHistory"`
	DailyResult        *DailyResult          `json:"dailyResult,omitempty"`
	CreatedAt          time.Time             `json:"createdAt"`
}

// NewUserDocument is the document written at account creation: empty
// tracked list, zero wallet, and a pre-seen DailyResult so the first
// app-open does not surface a phantom notification.
func NewUserDocument(email string, now time.Time) *UserDocument {
	return &UserDocument{
		Email:           email,
		Sites:           []TrackedSite{},
		Tracking:        map[string]TimeRecord{},
		SelectedCharity: "none",
		EditHistory:     []EditLogEntry{},
		DailyResult:     &DailyResult{Seen: true},
		CreatedAt:       now,
	}
}

// PartialFields names the document fields a merge write replaces. A nil
// pointer means "leave the field alone"; a set pointer replaces the whole
// field (last-write-wins at field granularity, no per-item merging).
type PartialFields struct {
	Sites              *[]TrackedSite         `json:"unallowed_urls,omitempty"`
	Tracking           *map[string]TimeRecord `json:"time_tracking,omitempty"`
	WalletBalanceCents *int64                 `json:"walletBalance,omitempty"`
	TotalDonatedCents  *int64                 `json:"totalDonated,omitempty"`
	SelectedCharity    *string                `json:"selectedCharity,omitempty"`
	EditHistory        *[]EditLogEntry        `json:"editHistory,omitempty"`
	DailyResult        *DailyResult           `json:"dailyResult,omitempty"`
}

// IsEmpty reports whether the merge would touch nothing.
func (p PartialFields) IsEmpty() bool {
	return p.Sites == nil && p.Tracking == nil &&
		p.WalletBalanceCents == nil && p.TotalDonatedCents == nil &&
		p.SelectedCharity == nil && p.EditHistory == nil && p.DailyResult == nil
}

// Apply merges the set fields into the document.
func (d *UserDocument) Apply(p PartialFields) {
	if p.Sites != nil {
		d.Sites = *p.Sites
	}
	if p.Tracking != nil {
		d.Tracking = *p.Tracking
	}
	if p.WalletBalanceCents != nil {
		d.WalletBalanceCents = *p.WalletBalanceCents
	}
	if p.TotalDonatedCents != nil {
		d.TotalDonatedCents = *p.TotalDonatedCents
	}
	if p.SelectedCharity != nil {
		d.SelectedCharity = *p.SelectedCharity
	}
	if p.EditHistory != nil {
		d.EditHistory = *p.EditHistory
	}
	if p.DailyResult != nil {
		r := *p.DailyResult
		d.DailyResult = &r
	}
}

// Clone returns a deep copy so callers can mutate freely.
func (d *UserDocument) Clone() *UserDocument {
	out := *d
	out.Sites = append([]TrackedSite(nil), d.Sites...)
	out.Tracking = make(map[string]TimeRecord, len(d.Tracking))
	for k, v := range d.Tracking {
		out.Tracking[k] = v
	}
	out.EditHistory = append([]EditLogEntry(nil), d.EditHistory...)
	if d.DailyResult != nil {
		r := *d.DailyResult
		out.DailyResult = &r
	}
	return &out
}

// Wallet returns the financial fields as one value.
func (d *UserDocument) Wallet() WalletState {
	return WalletState{
		BalanceCents:      d.WalletBalanceCents,
		TotalDonatedCents: d.TotalDonatedCents,
	}
}

// Principal is the identity collaborator's answer for a presented token.
// An unverified principal is treated as unauthenticated everywhere.
type Principal struct {
	UserID   string
	Email    string
	Verified bool
}
