package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"servizephyr/internal/events"
	"servizephyr/internal/model"
	"servizephyr/internal/repository/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var riderNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func newTestRiderService(repo *mocks.RiderRepository, publisher *recordingPublisher) *riderService {
	svc := NewRiderService(repo, publisher, zerolog.Nop()).(*riderService)
	svc.now = func() time.Time { return riderNow }
	return svc
}

func TestRiderService_SetAvailability(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(repo *mocks.RiderRepository)
		value       model.RiderAvailability
		expectError bool
		events      []string
	}{
		{
			name: "Success",
			setupMock: func(repo *mocks.RiderRepository) {
				repo.On("SetProfileAvailability", mock.Anything, "rider-1", model.RiderOnline, riderNow).Return(nil)
				repo.On("SetRosterAvailability", mock.Anything, "tenant-1", "rider-1", model.RiderOnline, riderNow).Return(nil)
			},
			value:  model.RiderOnline,
			events: []string{events.TypeRiderAvailabilityChanged},
		},
		{
			name: "Profile write fails",
			setupMock: func(repo *mocks.RiderRepository) {
				repo.On("SetProfileAvailability", mock.Anything, "rider-1", model.RiderOffline, riderNow).Return(errors.New("db down"))
			},
			value:       model.RiderOffline,
			expectError: true,
		},
		{
			name: "Roster write fails",
			setupMock: func(repo *mocks.RiderRepository) {
				repo.On("SetProfileAvailability", mock.Anything, "rider-1", model.RiderOnline, riderNow).Return(nil)
				repo.On("SetRosterAvailability", mock.Anything, "tenant-1", "rider-1", model.RiderOnline, riderNow).Return(errors.New("roster missing"))
			},
			value:       model.RiderOnline,
			expectError: true,
		},
		{
			name:        "Unknown value",
			setupMock:   func(repo *mocks.RiderRepository) {},
			value:       model.RiderAvailability("sleeping"),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.RiderRepository)
			publisher := &recordingPublisher{}
			tt.setupMock(repo)
			svc := newTestRiderService(repo, publisher)

			err := svc.SetAvailability(context.Background(), "rider-1", "tenant-1", tt.value)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, len(tt.events), len(publisher.types()))
			repo.AssertExpectations(t)
		})
	}
}

func TestRiderService_SetAvailability_MissingIDs(t *testing.T) {
	repo := new(mocks.RiderRepository)
	svc := newTestRiderService(repo, &recordingPublisher{})

	err := svc.SetAvailability(context.Background(), "", "tenant-1", model.RiderOnline)

	assert.Equal(t, model.KindValidation, model.KindOf(err))
	repo.AssertNotCalled(t, "SetProfileAvailability", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRiderService_AuditAvailability(t *testing.T) {
	repo := new(mocks.RiderRepository)
	svc := newTestRiderService(repo, &recordingPublisher{})

	repo.On("ListDivergent", mock.Anything).Return([]model.AvailabilityDivergence{
		{TenantID: "tenant-1", RiderID: "rider-1", Profile: model.RiderOnline, Roster: model.RiderOnDelivery},
		{TenantID: "tenant-2", RiderID: "rider-1", Profile: model.RiderOnline, Roster: model.RiderOffline},
		{TenantID: "tenant-1", RiderID: "rider-2", Profile: model.RiderOffline, Roster: model.RiderOnline},
	}, nil)
	repo.On("SetRosterAvailability", mock.Anything, "tenant-1", "rider-1", model.RiderOnline, riderNow).Return(nil)
	repo.On("SetRosterAvailability", mock.Anything, "tenant-2", "rider-1", model.RiderOnline, riderNow).Return(errors.New("timeout"))
	repo.On("SetRosterAvailability", mock.Anything, "tenant-1", "rider-2", model.RiderOffline, riderNow).Return(nil)

	repaired, err := svc.AuditAvailability(context.Background())

	assert.Equal(t, 2, repaired)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rider rider-1 tenant tenant-2")
	repo.AssertExpectations(t)
}

func TestRiderService_AuditAvailability_ListFails(t *testing.T) {
	repo := new(mocks.RiderRepository)
	svc := newTestRiderService(repo, &recordingPublisher{})
	repo.On("ListDivergent", mock.Anything).Return(nil, errors.New("db down"))

	repaired, err := svc.AuditAvailability(context.Background())

	assert.Zero(t, repaired)
	assert.Error(t, err)
}
