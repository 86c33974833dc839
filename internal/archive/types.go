package archive

import "time"

// LogRecord is one archived notification log row. Phone numbers are hashed and
// message text is scrubbed before upload.
type LogRecord struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	AppointmentID    string     `json:"appointment_id,omitempty"`
	NotificationType string     `json:"notification_type"`
	Channel          string     `json:"channel"`
	PhoneHash        string     `json:"phone_hash,omitempty"`
	Message          string     `json:"message"`
	Status           string     `json:"status"`
	Error            string     `json:"error,omitempty"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ManifestEntry indexes one exported day in the monthly manifest.
type ManifestEntry struct {
	Day        string `json:"day"`
	S3Key      string `json:"s3_key"`
	Records    int    `json:"records"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	ExportedAt string `json:"exported_at"`
}
