package domain

// Evidence is the snapshot of why a ledger movement was matched to an
// external transaction. It is stored with the link and never recomputed.
type Evidence struct {
	DateMatch   bool    `json:"date_match"`
	AmountMatch bool    `json:"amount_match"`
	DayDistance int     `json:"day_distance"`
	AmountDelta int64   `json:"amount_delta"`
	Similarity  float64 `json:"similarity"`
	EditRatio   float64 `json:"edit_ratio"`
}

// Scope restricts queries to a workspace's entities and, optionally,
// accounts. Empty slices mean no restriction on that axis.
type Scope struct {
	EntityIDs  []string
	AccountIDs []string
}
