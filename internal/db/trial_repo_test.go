package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// --- DeviceTrialRepo Tests ---

func TestDeviceTrialRepo_Get_Success(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewDeviceTrialRepo(dbm, nil)

	now := time.Now().UTC()
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "dev_1"
			*dest[1].(*string) = "persist_1"
			*dest[2].(*string) = "F1"
			*dest[3].(*string) = "u_1"
			*dest[4].(*string) = "192.168.1"
			*dest[5].(**time.Time) = &now
			*dest[6].(*time.Time) = now
			return nil
		},
	}
	dbm.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	rec, err := repo.Get(context.Background(), "dev_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "F1", rec.FirmActivated)
	assert.Equal(t, "192.168.1", rec.IPPrefix)
}

func TestDeviceTrialRepo_Get_NoneIsNotError(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewDeviceTrialRepo(dbm, nil)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	dbm.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	rec, err := repo.Get(context.Background(), "dev_fresh")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDeviceTrialRepo_MergeActivation_ExistingDataWins(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewDeviceTrialRepo(dbm, nil)

	var capturedSQL string
	dbm.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedSQL = args.String(1)
		}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	now := time.Now().UTC()
	err := repo.MergeActivation(context.Background(), types.DeviceTrial{
		DeviceID:      "dev_1",
		FirmActivated: "F2",
		ActivatedAt:   &now,
	})
	require.NoError(t, err)

	// A second activation attempt must not rewrite the original firm link.
	assert.Contains(t, capturedSQL, "COALESCE(device_trials.firm_activated, EXCLUDED.firm_activated)")
}

func TestDeviceTrialRepo_MergeActivation_DBError(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewDeviceTrialRepo(dbm, nil)

	dbm.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.MergeActivation(context.Background(), types.DeviceTrial{DeviceID: "dev_1"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

// --- IPTrialRepo Tests ---

func TestIPTrialRepo_Get_Success(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewIPTrialRepo(dbm, nil)

	now := time.Now().UTC()
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "192.168.1"
			*dest[1].(*[]string) = []string{"F1", "F2"}
			*dest[2].(*[]string) = []string{"dev_1"}
			*dest[3].(*[]string) = []string{"u_1"}
			*dest[4].(*bool) = false
			*dest[5].(*time.Time) = now
			*dest[6].(*time.Time) = now
			return nil
		},
	}
	dbm.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	rec, err := repo.Get(context.Background(), "192.168.1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []string{"F1", "F2"}, rec.FirmIDs)
	assert.False(t, rec.Whitelisted)
}

func TestIPTrialRepo_Get_NoneIsNotError(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewIPTrialRepo(dbm, nil)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	dbm.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	rec, err := repo.Get(context.Background(), "10.0.0")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestIPTrialRepo_UnionMerge_Success(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewIPTrialRepo(dbm, nil)

	var capturedArgs []any
	dbm.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedArgs = args.Get(2).([]any)
		}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.UnionMerge(context.Background(), "192.168.1", "F1", "dev_1", "u_1")
	require.NoError(t, err)
	require.Len(t, capturedArgs, 4)
	assert.Equal(t, "192.168.1", capturedArgs[0])
}

func TestIPTrialRepo_UnionMerge_DBError(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewIPTrialRepo(dbm, nil)

	dbm.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.UnionMerge(context.Background(), "192.168.1", "F1", "dev_1", "u_1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
