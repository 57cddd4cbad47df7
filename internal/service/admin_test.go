package service

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/qbcart/internal/dto"
	"github.com/flicky/qbcart/internal/model"
)

func TestAdminService_Users(t *testing.T) {
	f := newFixture(t)
	svc := NewAdminService(f.store, nil)

	users, err := svc.ListUsers(f.ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	admin := true
	resp, err := svc.UpdateUser(f.ctx, f.buyer.ID, dto.AdminUpdateUserRequest{IsAdmin: &admin})
	require.NoError(t, err)
	assert.True(t, resp.IsAdmin)

	_, err = svc.UpdateUser(f.ctx, uuid.New(), dto.AdminUpdateUserRequest{})
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, svc.DeleteUser(f.ctx, f.seller.ID))
	p, err := f.store.Products().GetByID(f.ctx, f.lamp.ID)
	require.NoError(t, err)
	assert.Nil(t, p, "seller's products are removed with them")
	assert.ErrorIs(t, svc.DeleteUser(f.ctx, f.seller.ID), ErrUserNotFound)
}

func TestAdminService_Activity(t *testing.T) {
	f := newFixture(t)
	svc := NewAdminService(f.store, nil)
	for _, a := range []model.Action{model.ActionAddedToCart, model.ActionOrderPlaced} {
		require.NoError(t, f.store.Activity().Create(f.ctx, &model.ActivityLogEntry{
			Username: "bob", Action: a, Product: "Lamp", DateTime: "2024-01-01 10:00",
		}))
	}

	resp, err := svc.ListActivity(f.ctx, dto.ListActivityRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, model.ActionOrderPlaced, resp.Entries[0].Action, "newest first")
	assert.Equal(t, "Order Placed", resp.Entries[0].Label)

	require.NoError(t, svc.DeleteActivity(f.ctx, resp.Entries[0].ID))
	assert.ErrorIs(t, svc.DeleteActivity(f.ctx, resp.Entries[0].ID), ErrActivityNotFound)
}

func TestAdminService_UpdateSchedule(t *testing.T) {
	f := newFixture(t)
	errBad := errors.New("bad field")
	svc := NewAdminService(f.store, func(spec string) error {
		if spec == "bogus 0 * * *" {
			return errBad
		}
		return nil
	})

	_, err := f.store.Schedules().CreateIfAbsent(f.ctx, &model.Schedule{
		Name: "hourly-report", Task: string(model.TaskSendHourlyReport),
		Minute: "0", Hour: "*", DayOfWeek: "*", DayOfMonth: "*", MonthOfYear: "*", Enabled: true,
	})
	require.NoError(t, err)

	resp, err := svc.UpdateSchedule(f.ctx, "hourly-report", dto.UpdateScheduleRequest{
		Minute: "30", Hour: "*/2", DayOfWeek: "*", DayOfMonth: "*", MonthOfYear: "*",
	})
	require.NoError(t, err)
	assert.Equal(t, "30 */2 * * *", resp.Spec)
	assert.True(t, resp.Enabled)

	_, err = svc.UpdateSchedule(f.ctx, "hourly-report", dto.UpdateScheduleRequest{
		Minute: "bogus", Hour: "0", DayOfWeek: "*", DayOfMonth: "*", MonthOfYear: "*",
	})
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	stored, err := f.store.Schedules().GetByName(f.ctx, "hourly-report")
	require.NoError(t, err)
	assert.Equal(t, "30", stored.Minute, "rejected edits are not saved")

	_, err = svc.UpdateSchedule(f.ctx, "missing", dto.UpdateScheduleRequest{})
	assert.ErrorIs(t, err, ErrScheduleNotFound)

	list, err := svc.ListSchedules(f.ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
