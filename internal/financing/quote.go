package financing

import (
	"fmt"
	"time"
)

// SyncStatus tracks the export of a quote to the quotes spreadsheet.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// Quote is a saved simulation. Summary holds the rounded figures without the
// schedule; Plan recomputes the full plan from the stored inputs.
type Quote struct {
	ID           int64            `json:"id"`
	Values       SimulatorValues  `json:"values"`
	FeePolicy    FeePolicy        `json:"feePolicy"`
	Disbursement time.Time        `json:"disbursement"`
	Summary      SimulatorResults `json:"summary"`
	CreatedAt    time.Time        `json:"createdAt"`
	Version      int64            `json:"version"`
	SyncStatus   SyncStatus       `json:"syncStatus"`
	SheetsRef    string           `json:"sheetsRef,omitempty"`
}

// NewQuote computes the plan for v and returns an unsaved quote.
func NewQuote(v SimulatorValues, disbursement time.Time, policy FeePolicy) (Quote, error) {
	if !policy.IsValid() {
		policy = FeesFinanced
	}
	res, err := Compute(v, disbursement, WithFeePolicy(policy))
	if err != nil {
		return Quote{}, err
	}
	summary := res.Rounded()
	summary.Schedule = nil

	return Quote{
		Values:       v,
		FeePolicy:    policy,
		Disbursement: disbursement,
		Summary:      summary,
		Version:      1,
		SyncStatus:   SyncPending,
	}, nil
}

// Plan recomputes the full, rounded payment plan of the quote.
func (q Quote) Plan() (SimulatorResults, error) {
	res, err := Compute(q.Values, q.Disbursement, WithFeePolicy(q.FeePolicy))
	if err != nil {
		return SimulatorResults{}, fmt.Errorf("quote %d: %w", q.ID, err)
	}
	return res.Rounded(), nil
}
