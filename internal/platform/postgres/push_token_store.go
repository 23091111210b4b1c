package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/platform/logger"
	"github.com/pecal/pecal-reminders/internal/store"
)

// PostgresPushTokenStore is the push destination registry.
type PostgresPushTokenStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPushTokenStore creates a PostgresPushTokenStore.
func NewPostgresPushTokenStore(db store.DBTX, logger *slog.Logger) *PostgresPushTokenStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPushTokenStore{
		db:     db,
		logger: logger.With(slog.String("component", "push_token_store")),
	}
}

var _ store.PushTokenStore = (*PostgresPushTokenStore)(nil)

// ListActiveByMemberIDs implements store.PushTokenStore. Rows with an
// unknown platform are reported as ios.
func (s *PostgresPushTokenStore) ListActiveByMemberIDs(
	ctx context.Context,
	memberIDs []int64,
) ([]domain.PushDestination, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT member_id, token, platform
		FROM member_push_tokens
		WHERE is_active AND member_id = ANY($1)
		ORDER BY member_id, token
	`, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list push tokens: %w", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var out []domain.PushDestination
	for rows.Next() {
		var (
			dest     domain.PushDestination
			platform string
		)
		if err := rows.Scan(&dest.MemberID, &dest.Token, &platform); err != nil {
			return nil, fmt.Errorf("failed to scan push token: %w", err)
		}
		if dest.MemberID <= 0 || dest.Token == "" {
			continue
		}
		dest.Platform = domain.PushPlatform(platform)
		if dest.Platform != domain.PushPlatformAndroid {
			dest.Platform = domain.PushPlatformIOS
		}
		out = append(out, dest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate push tokens: %w", err)
	}
	return out, nil
}

// DeactivateTokens implements store.PushTokenStore.
func (s *PostgresPushTokenStore) DeactivateTokens(ctx context.Context, tokens []string) error {
	unique := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}
	if len(unique) == 0 {
		return nil
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE member_push_tokens
		SET is_active = FALSE, updated_at = NOW()
		WHERE token = ANY($1)
	`, unique)
	if err != nil {
		return fmt.Errorf("failed to deactivate push tokens: %w", MapError(err))
	}
	if n, err := result.RowsAffected(); err == nil {
		logger.FromContextOrDefault(ctx, s.logger).Info("deactivated push tokens",
			slog.Int("requested", len(unique)),
			slog.Int64("deactivated", n))
	}
	return nil
}
