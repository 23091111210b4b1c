package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/platform/logger"
	"github.com/pecal/pecal-reminders/internal/store"
)

const notificationColumns = 7

// PostgresNotificationStore writes in-app notifications.
type PostgresNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresNotificationStore creates a PostgresNotificationStore.
func NewPostgresNotificationStore(db store.DBTX, logger *slog.Logger) *PostgresNotificationStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresNotificationStore{
		db:     db,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

var _ store.NotificationStore = (*PostgresNotificationStore)(nil)

// CreateNotificationsBulk implements store.NotificationStore with a single
// multi-row insert, so either every row is written or none is.
func (s *PostgresNotificationStore) CreateNotificationsBulk(
	ctx context.Context,
	notifications []domain.Notification,
) (int, error) {
	if len(notifications) == 0 {
		return 0, nil
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	var sb strings.Builder
	sb.WriteString(`INSERT INTO notifications
		(member_id, type, title, message, payload_json, source_type, source_id)
		VALUES `)
	args := make([]any, 0, len(notifications)*notificationColumns)
	for i, n := range notifications {
		var payload []byte
		if n.Payload != nil {
			encoded, err := json.Marshal(n.Payload)
			if err != nil {
				return 0, fmt.Errorf("failed to encode notification payload: %w", err)
			}
			payload = encoded
		}

		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * notificationColumns
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, n.MemberID, n.Type, n.Title, n.Message, payload, n.SourceType, n.SourceID)
	}

	result, err := s.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		log.Error("failed to insert notifications",
			slog.Int("count", len(notifications)),
			slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to insert notifications: %w", MapError(err))
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return len(notifications), nil
	}
	return int(inserted), nil
}
