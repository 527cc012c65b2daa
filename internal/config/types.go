package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Reminders RemindersConfig `json:"reminders"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	storage: { driver: "sqlite", path: "./soatbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// RemindersConfig controls the reminder engine and its periodic triggers.
//
// DeliverySpec and ReconcileSpec are 5-field cron expressions evaluated in
// Timezone. Defaults keep deliveries inside weekday business hours and run
// the fleet reconciliation once a day before the delivery window opens.
type RemindersConfig struct {
	// Timezone is an IANA TZ name, e.g. "America/Bogota". Empty means local.
	Timezone string `json:"timezone,omitempty"`

	// DeliverySpec triggers the due-reminder batch. Default: "0 8-18 * * 1-5".
	DeliverySpec string `json:"delivery_spec,omitempty"`

	// ReconcileSpec triggers the fleet reconciliation. Default: "0 7 * * *".
	ReconcileSpec string `json:"reconcile_spec,omitempty"`

	// SendDelay is the fixed pause between consecutive sends (Go duration
	// string). The messaging channel is a single shared session; pacing is
	// required to avoid being throttled. Default: "2s".
	SendDelay string `json:"send_delay,omitempty"`
}
