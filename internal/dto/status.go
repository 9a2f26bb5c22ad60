package dto

type HealthDTO struct {
	OK            bool   `json:"ok"`
	Name          string `json:"name"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	StartedAt     string `json:"started_at"`
	UptimeSec     int64  `json:"uptime_sec"`
	SafeMode      bool   `json:"safe_mode"`
	SchemaVersion int    `json:"schema_version"`
	Timezone      string `json:"timezone"`
	Subscribers   int    `json:"subscribers"`
}
