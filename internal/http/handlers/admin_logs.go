package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/wolfman30/salonbook/pkg/logging"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// AdminLogsHandler lists notification log rows for support staff.
type AdminLogsHandler struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewAdminLogsHandler(db *sql.DB, logger *logging.Logger) *AdminLogsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminLogsHandler{db: db, logger: logger}
}

// NotificationLogItem is one row in the admin list.
type NotificationLogItem struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	AppointmentID    *string    `json:"appointment_id,omitempty"`
	NotificationType string     `json:"notification_type"`
	Channel          string     `json:"channel"`
	PhoneNumber      string     `json:"phone_number"`
	MessageContent   string     `json:"message_content"`
	Status           string     `json:"status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type NotificationLogsResponse struct {
	Logs  []NotificationLogItem `json:"logs"`
	Total int                   `json:"total"`
}

const listLogsQuery = `
	SELECT id, user_id, appointment_id, notification_type, channel, phone_number,
		message_content, status, COALESCE(error_message, ''), sent_at, created_at
	FROM notification_logs
	WHERE ($1 = '' OR user_id = $1)
		AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
	ORDER BY created_at DESC
	LIMIT $3`

// ListLogs returns recent notification log rows.
// GET /admin/notification-logs?user_id=&status=sent,failed&limit=
func (h *AdminLogsHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := strings.TrimSpace(q.Get("user_id"))
	statuses := []string{}
	for _, s := range strings.Split(q.Get("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, s)
		}
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	rows, err := h.db.QueryContext(r.Context(), listLogsQuery, userID, pq.Array(statuses), limit)
	if err != nil {
		h.logger.Error("failed to list notification logs", "error", err)
		jsonError(w, "failed to list logs", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	logs := []NotificationLogItem{}
	for rows.Next() {
		var (
			item   NotificationLogItem
			apptID sql.NullString
			sentAt sql.NullTime
		)
		if err := rows.Scan(&item.ID, &item.UserID, &apptID, &item.NotificationType, &item.Channel,
			&item.PhoneNumber, &item.MessageContent, &item.Status, &item.ErrorMessage, &sentAt, &item.CreatedAt); err != nil {
			h.logger.Error("failed to scan notification log", "error", err)
			jsonError(w, "failed to list logs", http.StatusInternalServerError)
			return
		}
		if apptID.Valid {
			item.AppointmentID = &apptID.String
		}
		if sentAt.Valid {
			item.SentAt = &sentAt.Time
		}
		logs = append(logs, item)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("failed to list notification logs", "error", err)
		jsonError(w, "failed to list logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, NotificationLogsResponse{Logs: logs, Total: len(logs)})
}
