package model

import "time"

// SyncStatus is the state of resource synchronization for an integration
type SyncStatus struct {
	IsSyncing       bool
	ChannelCount    int
	LastChannelSync *time.Time
	LastUserSync    *time.Time
	LastAttempt     *time.Time
	LastError       string
}

// Clone returns a deep copy of the status
func (s *SyncStatus) Clone() *SyncStatus {
	copied := *s
	copied.LastChannelSync = cloneTime(s.LastChannelSync)
	copied.LastUserSync = cloneTime(s.LastUserSync)
	copied.LastAttempt = cloneTime(s.LastAttempt)
	return &copied
}

// JobProgress is one observation of an asynchronous backend job
type JobProgress struct {
	Running   bool
	Completed int
	Total     int
	Message   string
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
