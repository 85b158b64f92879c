package trial

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/KabirBatra18/valoquick-sub001/internal/idempotency"
	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

type mockDeviceRepo struct {
	mock.Mock
}

func (m *mockDeviceRepo) Get(ctx context.Context, deviceID string) (*types.DeviceTrial, error) {
	args := m.Called(ctx, deviceID)
	if r := args.Get(0); r != nil {
		return r.(*types.DeviceTrial), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeviceRepo) MergeActivation(ctx context.Context, rec types.DeviceTrial) error {
	return m.Called(ctx, rec).Error(0)
}

type mockIPRepo struct {
	mock.Mock
}

func (m *mockIPRepo) Get(ctx context.Context, ipPrefix string) (*types.IPTrial, error) {
	args := m.Called(ctx, ipPrefix)
	if r := args.Get(0); r != nil {
		return r.(*types.IPTrial), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockIPRepo) UnionMerge(ctx context.Context, ipPrefix, firmID, deviceID, userID string) error {
	return m.Called(ctx, ipPrefix, firmID, deviceID, userID).Error(0)
}

// chanNotifier delivers published messages on a channel so tests can wait
// for the asynchronous abuse alert.
type chanNotifier struct {
	ch chan types.NotificationMessage
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{ch: make(chan types.NotificationMessage, 8)}
}

func (n *chanNotifier) Publish(_ context.Context, msg types.NotificationMessage) error {
	n.ch <- msg
	return nil
}

func (n *chanNotifier) wait(t *testing.T) types.NotificationMessage {
	t.Helper()
	select {
	case msg := <-n.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for abuse alert")
		return types.NotificationMessage{}
	}
}

func (n *chanNotifier) expectNone(t *testing.T) {
	t.Helper()
	select {
	case msg := <-n.ch:
		t.Fatalf("unexpected alert published: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

type engineFixture struct {
	devices  *mockDeviceRepo
	ips      *mockIPRepo
	notifier *chanNotifier
	engine   *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		devices:  new(mockDeviceRepo),
		ips:      new(mockIPRepo),
		notifier: newChanNotifier(),
	}
	f.engine = NewEngine(
		f.devices, f.ips, f.notifier,
		idempotency.NewMemoryCache(time.Hour),
		time.Hour,
		nil, nil,
	)
	return f
}

func TestCheckEligibility_FreshDeviceAndNetwork(t *testing.T) {
	f := newEngineFixture(t)

	f.devices.On("Get", mock.Anything, "dev_1").Return(nil, nil)
	f.ips.On("Get", mock.Anything, "192.168.1").Return(nil, nil)

	dec, err := f.engine.CheckEligibility(context.Background(), CheckInput{
		DeviceID: "dev_1",
		FirmID:   "F1",
		RemoteIP: "192.168.1.42",
	})
	require.NoError(t, err)
	assert.True(t, dec.Eligible)
	assert.Equal(t, "192.168.1", dec.IPPrefix)
}

func TestCheckEligibility_DeviceActivatedByAnotherFirm(t *testing.T) {
	f := newEngineFixture(t)

	f.devices.On("Get", mock.Anything, "dev_1").
		Return(&types.DeviceTrial{DeviceID: "dev_1", FirmActivated: "F1"}, nil)

	dec, err := f.engine.CheckEligibility(context.Background(), CheckInput{
		DeviceID: "dev_1",
		FirmID:   "F2",
		RemoteIP: "192.168.1.42",
	})
	require.NoError(t, err)
	assert.False(t, dec.Eligible)
	assert.Equal(t, types.TrialBlockDeviceUsed, dec.Reason)

	// A device block never raises a network abuse alert.
	f.notifier.expectNone(t)
	f.ips.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestCheckEligibility_OwnFirmDeviceStaysEligible(t *testing.T) {
	f := newEngineFixture(t)

	f.devices.On("Get", mock.Anything, "dev_1").
		Return(&types.DeviceTrial{DeviceID: "dev_1", FirmActivated: "F1"}, nil)
	f.ips.On("Get", mock.Anything, "192.168.1").Return(nil, nil)

	dec, err := f.engine.CheckEligibility(context.Background(), CheckInput{
		DeviceID: "dev_1",
		FirmID:   "F1",
		RemoteIP: "192.168.1.42",
	})
	require.NoError(t, err)
	assert.True(t, dec.Eligible)
}

func TestCheckEligibility_PersistentIDCatchesReinstall(t *testing.T) {
	f := newEngineFixture(t)

	// The ephemeral fingerprint is fresh, but the persistent one is burned.
	f.devices.On("Get", mock.Anything, "dev_fresh").Return(nil, nil)
	f.devices.On("Get", mock.Anything, "persist_1").
		Return(&types.DeviceTrial{DeviceID: "persist_1", FirmActivated: "F1"}, nil)

	dec, err := f.engine.CheckEligibility(context.Background(), CheckInput{
		DeviceID:           "dev_fresh",
		PersistentDeviceID: "persist_1",
		FirmID:             "F2",
		RemoteIP:           "192.168.1.42",
	})
	require.NoError(t, err)
	assert.False(t, dec.Eligible)
	assert.Equal(t, types.TrialBlockDeviceUsed, dec.Reason)
}

func TestCheckEligibility_NetworkUsedByOtherFirm(t *testing.T) {
	f := newEngineFixture(t)

	f.devices.On("Get", mock.Anything, "dev_1").Return(nil, nil)
	f.ips.On("Get", mock.Anything, "192.168.1").
		Return(&types.IPTrial{IPPrefix: "192.168.1", FirmIDs: []string{"F1"}}, nil)

	dec, err := f.engine.CheckEligibility(context.Background(), CheckInput{
		DeviceID: "dev_1",
		UserID:   "u_2",
		FirmID:   "F2",
		RemoteIP: "192.168.1.42",
	})
	require.NoError(t, err)
	assert.False(t, dec.Eligible)
	assert.Equal(t, types.TrialBlockNetworkUsed, dec.Reason)

	msg := f.notifier.wait(t)
	assert.Equal(t, types.NotifyAbuseAlert, msg.Kind)
	assert.Equal(t, "192.168.1", msg.IPPrefix)
	assert.Equal(t, "F2", msg.FirmID)
	assert.NotEmpty(t, msg.MessageID)
}

func TestCheckEligibility_OwningFirmNetworkIsNotAbuse(t *testing.T) {
	f := newEngineFixture(t)

	f.devices.On("Get", mock.Anything, "dev_1").Return(nil, nil)
	f.ips.On("Get", mock.Anything, "192.168.1").
		Return(&types.IPTrial{IPPrefix: "192.168.1", FirmIDs: []string{"F1", "F3"}}, nil)

	dec, err := f.engine.CheckEligibility(context.Background(), CheckInput{
		DeviceID: "dev_1",
		FirmID:   "F3",
		RemoteIP: "192.168.1.42",
	})
	require.NoError(t, err)
	assert.True(t, dec.Eligible)
	f.notifier.expectNone(t)
}

func TestCheckEligibility_WhitelistedPrefixSkipsNetworkBlock(t *testing.T) {
	f := newEngineFixture(t)

	f.devices.On("Get", mock.Anything, "dev_1").Return(nil, nil)
	f.ips.On("Get", mock.Anything, "203.0.113").
		Return(&types.IPTrial{IPPrefix: "203.0.113", FirmIDs: []string{"F1"}, Whitelisted: true}, nil)

	dec, err := f.engine.CheckEligibility(context.Background(), CheckInput{
		DeviceID: "dev_1",
		FirmID:   "F2",
		RemoteIP: "203.0.113.9",
	})
	require.NoError(t, err)
	assert.True(t, dec.Eligible)
	f.notifier.expectNone(t)
}

func TestCheckEligibility_FailsClosedOnRepoError(t *testing.T) {
	f := newEngineFixture(t)

	f.devices.On("Get", mock.Anything, "dev_1").Return(nil, errors.New("connection reset"))

	_, err := f.engine.CheckEligibility(context.Background(), CheckInput{
		DeviceID: "dev_1",
		FirmID:   "F1",
		RemoteIP: "192.168.1.42",
	})
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestCheckEligibility_AlertRateLimitedPerPrefix(t *testing.T) {
	f := newEngineFixture(t)

	f.devices.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	f.ips.On("Get", mock.Anything, "192.168.1").
		Return(&types.IPTrial{IPPrefix: "192.168.1", FirmIDs: []string{"F1"}}, nil)

	in := CheckInput{DeviceID: "dev_1", FirmID: "F2", RemoteIP: "192.168.1.42"}

	_, err := f.engine.CheckEligibility(context.Background(), in)
	require.NoError(t, err)
	f.notifier.wait(t)

	// Repeat hits within the cooldown window stay silent.
	for i := 0; i < 3; i++ {
		_, err := f.engine.CheckEligibility(context.Background(), in)
		require.NoError(t, err)
	}
	f.notifier.expectNone(t)
}

func TestCheckEligibility_ConcurrentBlocksPublishOneAlert(t *testing.T) {
	f := newEngineFixture(t)

	f.devices.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	f.ips.On("Get", mock.Anything, "192.168.1").
		Return(&types.IPTrial{IPPrefix: "192.168.1", FirmIDs: []string{"F1"}}, nil)

	in := CheckInput{DeviceID: "dev_1", FirmID: "F2", RemoteIP: "192.168.1.42"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.CheckEligibility(context.Background(), in)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	f.notifier.wait(t)
	f.notifier.expectNone(t)
}

func TestRecordActivation_LinksDeviceAndNetwork(t *testing.T) {
	f := newEngineFixture(t)

	f.devices.On("MergeActivation", mock.Anything, mock.MatchedBy(func(rec types.DeviceTrial) bool {
		return rec.DeviceID == "dev_1" &&
			rec.PersistentDeviceID == "persist_1" &&
			rec.FirmActivated == "F1" &&
			rec.IPPrefix == "192.168.1"
	})).Return(nil).Once()
	f.devices.On("MergeActivation", mock.Anything, mock.MatchedBy(func(rec types.DeviceTrial) bool {
		// The persistent fingerprint gets its own cross-linked record.
		return rec.DeviceID == "persist_1" && rec.PersistentDeviceID == "dev_1"
	})).Return(nil).Once()
	f.ips.On("UnionMerge", mock.Anything, "192.168.1", "F1", "dev_1", "u_1").Return(nil)

	prefix, err := f.engine.RecordActivation(context.Background(), CheckInput{
		DeviceID:           "dev_1",
		PersistentDeviceID: "persist_1",
		UserID:             "u_1",
		FirmID:             "F1",
		RemoteIP:           "192.168.1.42",
	})
	require.NoError(t, err)
	assert.Equal(t, "192.168.1", prefix)
	f.devices.AssertExpectations(t)
	f.ips.AssertExpectations(t)
}

func TestRecordActivation_SkipsIPWriteForEmptyPrefix(t *testing.T) {
	f := newEngineFixture(t)

	f.devices.On("MergeActivation", mock.Anything, mock.Anything).Return(nil)

	prefix, err := f.engine.RecordActivation(context.Background(), CheckInput{
		DeviceID: "dev_1",
		FirmID:   "F1",
		RemoteIP: "",
	})
	require.NoError(t, err)
	assert.Empty(t, prefix)
	f.ips.AssertNotCalled(t, "UnionMerge", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
