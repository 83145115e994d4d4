package project

import "time"

// IncrementalRecordType tags incremental backup payloads in the local store.
const IncrementalRecordType = "slayer_incremental_save"

// IncrementalRecord is a backup containing only the apps detected as changed
// since the last baseline. Apps holds exactly the keys listed in ChangedApps.
type IncrementalRecord struct {
	Type        string             `json:"type"`
	ProjectID   string             `json:"projectId"`
	Timestamp   time.Time          `json:"timestamp"`
	ChangedApps []string           `json:"changedApps"`
	Apps        map[string]AppSlot `json:"apps"`
}
