package models

import "fmt"

// KudosEntry is one engagement record attached to an activity. The set
// of rows for an activity is a snapshot at fetch time; the sync engine
// only ever adds entries, it never reconciles removed kudos.
type KudosEntry struct {
	ActivityID    int64  `json:"activity_id"`
	FirstName     string `json:"firstname"`
	LastName      string `json:"lastname"`
	ResourceState string `json:"resource_state"`
}

// Validate checks if the kudos entry is structurally sound.
func (k *KudosEntry) Validate() error {
	if k.ActivityID <= 0 {
		return fmt.Errorf("kudos activity ID must be positive")
	}
	return nil
}
