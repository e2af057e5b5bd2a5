package domain

import "time"

// SnapshotVersion is bumped whenever the persisted bundle layout changes.
const SnapshotVersion = 1

// Snapshot is the persisted bundle of one session/period.
type Snapshot struct {
	Version      int           `json:"version"`
	PeriodID     string        `json:"periodId"`
	SavedAt      time.Time     `json:"savedAt"`
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`
	Entries      []Entry       `json:"entries"`
	Links        []Link        `json:"links"`
}
