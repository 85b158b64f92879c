package trial

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/KabirBatra18/valoquick-sub001/internal/idempotency"
	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// DeviceTrialRepository is the persistence contract for device fingerprint
// trial records. Get returns (nil, nil) when no record exists.
type DeviceTrialRepository interface {
	Get(ctx context.Context, deviceID string) (*types.DeviceTrial, error)
	// MergeActivation creates the record or fills in missing activation
	// fields without overwriting existing ones.
	MergeActivation(ctx context.Context, rec types.DeviceTrial) error
}

// IPTrialRepository is the persistence contract for IP-prefix trial
// records. Get returns (nil, nil) when no record exists.
type IPTrialRepository interface {
	Get(ctx context.Context, ipPrefix string) (*types.IPTrial, error)
	// UnionMerge creates the record or unions the linked id sets into it.
	// Linked sets only grow; existing members are never removed.
	UnionMerge(ctx context.Context, ipPrefix string, firmID, deviceID, userID string) error
}

// Notifier publishes abuse alerts. Failures are swallowed; alerting is a
// non-critical side channel.
type Notifier interface {
	Publish(ctx context.Context, msg types.NotificationMessage) error
}

// CheckInput carries the identity signals for an eligibility decision.
type CheckInput struct {
	DeviceID           string
	PersistentDeviceID string
	UserID             string
	FirmID             string
	RemoteIP           string
}

// Engine is the trial eligibility decision engine. Checks are read-only;
// RecordActivation performs the union-merge writes once a firm is actually
// created or chosen.
type Engine struct {
	devices  DeviceTrialRepository
	ips      IPTrialRepository
	notifier Notifier
	cooldown idempotency.KeyValueTTLCache
	window   time.Duration
	clock    types.Clock
	logger   *slog.Logger
}

// NewEngine creates the Engine. The cooldown cache rate-limits abuse alerts
// to one per IP prefix per window.
func NewEngine(
	devices DeviceTrialRepository,
	ips IPTrialRepository,
	notifier Notifier,
	cooldown idempotency.KeyValueTTLCache,
	window time.Duration,
	clock types.Clock,
	logger *slog.Logger,
) *Engine {
	if window <= 0 {
		window = time.Hour
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		devices:  devices,
		ips:      ips,
		notifier: notifier,
		cooldown: cooldown,
		window:   window,
		clock:    clock,
		logger:   logger,
	}
}

// CheckEligibility decides whether the caller may consume a free trial
// report. The check is read-only and fails closed: any lookup error denies
// the trial by surfacing as an error to the caller.
func (e *Engine) CheckEligibility(ctx context.Context, in CheckInput) (*types.TrialDecision, error) {
	prefix := GetIPPrefix(in.RemoteIP)
	decision := &types.TrialDecision{Eligible: true, IPPrefix: prefix}

	blocked, err := e.deviceBlocked(ctx, in.DeviceID, in.FirmID)
	if err != nil {
		return nil, err
	}
	if !blocked && in.PersistentDeviceID != "" && in.PersistentDeviceID != in.DeviceID {
		blocked, err = e.deviceBlocked(ctx, in.PersistentDeviceID, in.FirmID)
		if err != nil {
			return nil, err
		}
	}
	if blocked {
		decision.Eligible = false
		decision.Reason = types.TrialBlockDeviceUsed
		return decision, nil
	}

	if prefix == "" {
		return decision, nil
	}

	ipRec, err := e.ips.Get(ctx, prefix)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load ip trial record", err)
	}
	if ipRec == nil || ipRec.Whitelisted || len(ipRec.FirmIDs) == 0 {
		return decision, nil
	}
	for _, id := range ipRec.FirmIDs {
		if id != "" && id == in.FirmID {
			// Repeat access from the owning firm is not abuse.
			return decision, nil
		}
	}

	decision.Eligible = false
	decision.Reason = types.TrialBlockNetworkUsed
	// Alerting must not delay the caller's answer.
	go e.fireAbuseAlert(context.WithoutCancel(ctx), prefix, in)
	return decision, nil
}

func (e *Engine) deviceBlocked(ctx context.Context, deviceID, firmID string) (bool, error) {
	if deviceID == "" {
		return false, nil
	}
	rec, err := e.devices.Get(ctx, deviceID)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to load device trial record", err)
	}
	if rec == nil || rec.FirmActivated == "" {
		return false, nil
	}
	return rec.FirmActivated != firmID, nil
}

// RecordActivation links the device fingerprint and IP prefix to the firm
// once a trial is actually consumed. All writes are union merges; existing
// activation data is never overwritten.
func (e *Engine) RecordActivation(ctx context.Context, in CheckInput) (string, error) {
	prefix := GetIPPrefix(in.RemoteIP)
	now := e.clock.Now()

	if in.DeviceID != "" {
		rec := types.DeviceTrial{
			DeviceID:           in.DeviceID,
			PersistentDeviceID: in.PersistentDeviceID,
			FirmActivated:      in.FirmID,
			ActivatedBy:        in.UserID,
			IPPrefix:           prefix,
			ActivatedAt:        &now,
		}
		if err := e.devices.MergeActivation(ctx, rec); err != nil {
			return "", types.NewAppError(types.ErrCodeInternalDB, "failed to record device activation", err)
		}
	}

	if in.PersistentDeviceID != "" && in.PersistentDeviceID != in.DeviceID {
		rec := types.DeviceTrial{
			DeviceID:           in.PersistentDeviceID,
			PersistentDeviceID: in.DeviceID,
			FirmActivated:      in.FirmID,
			ActivatedBy:        in.UserID,
			IPPrefix:           prefix,
			ActivatedAt:        &now,
		}
		if err := e.devices.MergeActivation(ctx, rec); err != nil {
			return "", types.NewAppError(types.ErrCodeInternalDB, "failed to record persistent device activation", err)
		}
	}

	if prefix != "" {
		if err := e.ips.UnionMerge(ctx, prefix, in.FirmID, in.DeviceID, in.UserID); err != nil {
			return "", types.NewAppError(types.ErrCodeInternalDB, "failed to record ip activation", err)
		}
	}

	return prefix, nil
}

// fireAbuseAlert publishes a trial-abuse notification, rate limited to one
// per prefix per cooldown window. Publish failures are logged and swallowed;
// alerting never blocks the caller's decision.
func (e *Engine) fireAbuseAlert(ctx context.Context, prefix string, in CheckInput) {
	if e.notifier == nil || e.cooldown == nil {
		return
	}

	// Atomic set-if-absent so concurrent blocked checks on the same prefix
	// publish exactly one alert per window.
	if !e.cooldown.Add("abuse:"+prefix, struct{}{}, e.window) {
		return
	}

	msg := types.NotificationMessage{
		MessageID: uuid.New().String(),
		TraceID:   types.GetRequestID(ctx),
		Kind:      types.NotifyAbuseAlert,
		FirmID:    in.FirmID,
		Timestamp: e.clock.Now(),
		IPPrefix:  prefix,
		DeviceID:  in.DeviceID,
		UserID:    in.UserID,
	}
	if err := e.notifier.Publish(ctx, msg); err != nil {
		e.logger.WarnContext(ctx, "failed to publish trial abuse alert",
			"ip_prefix", prefix,
			"error", err,
		)
	}
}
