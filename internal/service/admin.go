package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/flicky/qbcart/internal/dto"
	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/repository"
)

var (
	ErrActivityNotFound = errors.New("activity entry not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrInvalidSchedule  = errors.New("invalid schedule")
)

// AdminService backs the staff endpoints: users, the activity log and the
// periodic task schedules.
type AdminService struct {
	store        repository.Store
	validateSpec func(string) error
}

func NewAdminService(store repository.Store, validateSpec func(string) error) *AdminService {
	return &AdminService{store: store, validateSpec: validateSpec}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]dto.UserResponse, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserResponse(&u))
	}
	return out, nil
}

func (s *AdminService) UpdateUser(ctx context.Context, id uuid.UUID, req dto.AdminUpdateUserRequest) (*dto.UserResponse, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Address != nil {
		user.Address = *req.Address
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}
	if err := s.store.Users().Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	resp := ToUserResponse(user)
	return &resp, nil
}

// DeleteUser removes the user with their products, cart and orders. Activity
// entries are kept.
func (s *AdminService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Users().Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *AdminService) ListActivity(ctx context.Context, req dto.ListActivityRequest) (*dto.ActivityListResponse, error) {
	entries, total, err := s.store.Activity().List(ctx, req.Limit, (req.Page-1)*req.Limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	out := make([]dto.ActivityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.ActivityResponse{
			ID: e.ID, Username: e.Username, Email: e.Email,
			Action: e.Action, Label: e.Action.Label(),
			Product: e.Product, Comments: e.Comments, DateTime: e.DateTime,
		})
	}
	return &dto.ActivityListResponse{Entries: out, Total: total, Page: req.Page, Limit: req.Limit}, nil
}

func (s *AdminService) DeleteActivity(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Activity().Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrActivityNotFound
		}
		return fmt.Errorf("delete activity: %w", err)
	}
	return nil
}

func (s *AdminService) ListSchedules(ctx context.Context) ([]dto.ScheduleResponse, error) {
	schedules, err := s.store.Schedules().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	out := make([]dto.ScheduleResponse, 0, len(schedules))
	for _, sc := range schedules {
		out = append(out, toScheduleResponse(&sc))
	}
	return out, nil
}

// UpdateSchedule rewrites a stored crontab. Running workers pick the change
// up on their next sync.
func (s *AdminService) UpdateSchedule(ctx context.Context, name string, req dto.UpdateScheduleRequest) (*dto.ScheduleResponse, error) {
	sched, err := s.store.Schedules().GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if sched == nil {
		return nil, ErrScheduleNotFound
	}

	sched.Minute = req.Minute
	sched.Hour = req.Hour
	sched.DayOfWeek = req.DayOfWeek
	sched.DayOfMonth = req.DayOfMonth
	sched.MonthOfYear = req.MonthOfYear
	if req.Enabled != nil {
		sched.Enabled = *req.Enabled
	}
	if err := s.validateSpec(sched.CronSpec()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	if err := s.store.Schedules().Update(ctx, sched); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	resp := toScheduleResponse(sched)
	return &resp, nil
}

func toScheduleResponse(s *model.Schedule) dto.ScheduleResponse {
	return dto.ScheduleResponse{
		Name: s.Name, Task: s.Task,
		Minute: s.Minute, Hour: s.Hour, DayOfWeek: s.DayOfWeek,
		DayOfMonth: s.DayOfMonth, MonthOfYear: s.MonthOfYear,
		Enabled: s.Enabled, Spec: s.CronSpec(), UpdatedAt: s.UpdatedAt,
	}
}
