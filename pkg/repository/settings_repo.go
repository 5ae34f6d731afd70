package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// TrialDurationKey is the setting holding the trial length in days.
const TrialDurationKey = "trial_duration_days"

// SettingsRepository reads key/value rows from system_settings.
type SettingsRepository struct {
	db               *sql.DB
	defaultTrialDays int
	logger           *slog.Logger
}

// NewSettingsRepository creates a settings repository. defaultTrialDays is
// used when the table has no usable trial_duration_days value.
func NewSettingsRepository(db *sql.DB, defaultTrialDays int, logger *slog.Logger) *SettingsRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsRepository{db: db, defaultTrialDays: defaultTrialDays, logger: logger}
}

// ErrSettingNotFound is returned when a key has no row.
var ErrSettingNotFound = errors.New("setting not found")

// Get returns a setting's raw value and declared type.
func (r *SettingsRepository) Get(ctx context.Context, key string) (value, settingType string, err error) {
	query := `
		SELECT setting_value, setting_type
		FROM system_settings
		WHERE setting_key = $1
	`
	err = r.db.QueryRowContext(ctx, query, key).Scan(&value, &settingType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrSettingNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, settingType, nil
}

// TrialDurationDays returns the configured trial length, falling back to
// the default for a missing or unparsable row.
func (r *SettingsRepository) TrialDurationDays(ctx context.Context) (int, error) {
	value, _, err := r.Get(ctx, TrialDurationKey)
	if errors.Is(err, ErrSettingNotFound) {
		return r.defaultTrialDays, nil
	}
	if err != nil {
		return 0, err
	}
	days, ok := parseDays(value)
	if !ok {
		r.logger.Warn("invalid trial duration setting, using default", "value", value, "default", r.defaultTrialDays)
		return r.defaultTrialDays, nil
	}
	return days, nil
}

func parseDays(value string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
