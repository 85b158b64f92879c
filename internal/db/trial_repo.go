package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// DeviceTrialRepo persists device-fingerprint trial records. Implements
// trial.DeviceTrialRepository.
type DeviceTrialRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewDeviceTrialRepo creates a DeviceTrialRepo backed by the given
// connection.
func NewDeviceTrialRepo(db DBTX, logger *slog.Logger) *DeviceTrialRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceTrialRepo{db: db, logger: logger}
}

// Get returns the device trial record, or (nil, nil) when none exists.
func (r *DeviceTrialRepo) Get(ctx context.Context, deviceID string) (*types.DeviceTrial, error) {
	var t types.DeviceTrial
	err := r.db.QueryRow(ctx,
		`SELECT device_id, COALESCE(persistent_device_id, ''),
		        COALESCE(firm_activated, ''), COALESCE(activated_by, ''),
		        COALESCE(ip_prefix, ''), activated_at, created_at
		 FROM device_trials WHERE device_id = $1`,
		deviceID,
	).Scan(
		&t.DeviceID, &t.PersistentDeviceID,
		&t.FirmActivated, &t.ActivatedBy,
		&t.IPPrefix, &t.ActivatedAt, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load device trial", err)
	}
	return &t, nil
}

// MergeActivation creates the record or fills in missing activation fields.
// COALESCE on the stored side means existing activation data wins; a second
// activation attempt never rewrites history.
func (r *DeviceTrialRepo) MergeActivation(ctx context.Context, rec types.DeviceTrial) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO device_trials (
		     device_id, persistent_device_id, firm_activated, activated_by,
		     ip_prefix, activated_at, created_at
		 ) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, NOW())
		 ON CONFLICT (device_id) DO UPDATE SET
		     persistent_device_id = COALESCE(device_trials.persistent_device_id, EXCLUDED.persistent_device_id),
		     firm_activated = COALESCE(device_trials.firm_activated, EXCLUDED.firm_activated),
		     activated_by = COALESCE(device_trials.activated_by, EXCLUDED.activated_by),
		     ip_prefix = COALESCE(device_trials.ip_prefix, EXCLUDED.ip_prefix),
		     activated_at = COALESCE(device_trials.activated_at, EXCLUDED.activated_at)`,
		rec.DeviceID, rec.PersistentDeviceID, rec.FirmActivated, rec.ActivatedBy,
		rec.IPPrefix, rec.ActivatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to merge device activation", err)
	}
	return nil
}

// IPTrialRepo persists IP-prefix trial records. Implements
// trial.IPTrialRepository.
type IPTrialRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewIPTrialRepo creates an IPTrialRepo backed by the given connection.
func NewIPTrialRepo(db DBTX, logger *slog.Logger) *IPTrialRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &IPTrialRepo{db: db, logger: logger}
}

// Get returns the IP-prefix trial record, or (nil, nil) when none exists.
func (r *IPTrialRepo) Get(ctx context.Context, ipPrefix string) (*types.IPTrial, error) {
	var t types.IPTrial
	err := r.db.QueryRow(ctx,
		`SELECT ip_prefix, firm_ids, device_ids, user_ids, whitelisted,
		        created_at, updated_at
		 FROM ip_trials WHERE ip_prefix = $1`,
		ipPrefix,
	).Scan(
		&t.IPPrefix, &t.FirmIDs, &t.DeviceIDs, &t.UserIDs, &t.Whitelisted,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load ip trial", err)
	}
	return &t, nil
}

// UnionMerge creates the record or unions the linked id sets into it. The
// array_append guards keep the sets duplicate-free without rewriting them;
// linked sets only ever grow here.
func (r *IPTrialRepo) UnionMerge(ctx context.Context, ipPrefix string, firmID, deviceID, userID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ip_trials (ip_prefix, firm_ids, device_ids, user_ids, whitelisted, created_at, updated_at)
		 VALUES (
		     $1,
		     ARRAY(SELECT x FROM unnest(ARRAY[$2]::text[]) AS x WHERE x <> ''),
		     ARRAY(SELECT x FROM unnest(ARRAY[$3]::text[]) AS x WHERE x <> ''),
		     ARRAY(SELECT x FROM unnest(ARRAY[$4]::text[]) AS x WHERE x <> ''),
		     FALSE, NOW(), NOW()
		 )
		 ON CONFLICT (ip_prefix) DO UPDATE SET
		     firm_ids = CASE WHEN $2 <> '' AND NOT ($2 = ANY(ip_trials.firm_ids))
		                     THEN array_append(ip_trials.firm_ids, $2) ELSE ip_trials.firm_ids END,
		     device_ids = CASE WHEN $3 <> '' AND NOT ($3 = ANY(ip_trials.device_ids))
		                       THEN array_append(ip_trials.device_ids, $3) ELSE ip_trials.device_ids END,
		     user_ids = CASE WHEN $4 <> '' AND NOT ($4 = ANY(ip_trials.user_ids))
		                     THEN array_append(ip_trials.user_ids, $4) ELSE ip_trials.user_ids END,
		     updated_at = NOW()`,
		ipPrefix, firmID, deviceID, userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to merge ip activation", err)
	}
	return nil
}
