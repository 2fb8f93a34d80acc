package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

func TestDirectoryService_Upsert(t *testing.T) {
	dir := newMemDirectory(&entity.User{ID: "M1", OrgID: "org-1", Role: entity.RoleManager})
	svc := NewDirectoryService(dir, &mockLogger{})
	ctx := context.Background()

	user, err := svc.Upsert(ctx, admin, " E1 ", UserInput{Role: "Employee", ManagerID: "M1"})
	require.NoError(t, err)
	assert.Equal(t, "E1", user.ID)
	assert.Equal(t, "org-1", user.OrgID)
	assert.Equal(t, entity.RoleEmployee, user.Role)
	assert.False(t, user.UpdatedAt.IsZero())

	reports, err := dir.ReportsOf(ctx, "org-1", "M1")
	require.NoError(t, err)
	assert.Equal(t, []string{"E1"}, reports)

	tests := []struct {
		name    string
		actor   entity.Actor
		userID  string
		in      UserInput
		wantErr error
	}{
		{"not admin", manager, "E2", UserInput{Role: entity.RoleEmployee}, ErrForbidden},
		{"blank id", admin, " ", UserInput{Role: entity.RoleEmployee}, ErrInvalidInput},
		{"unknown role", admin, "E2", UserInput{Role: "cfo"}, ErrInvalidInput},
		{"self manager", admin, "E2", UserInput{Role: entity.RoleEmployee, ManagerID: "E2"}, ErrInvalidInput},
		{"unknown manager", admin, "E2", UserInput{Role: entity.RoleEmployee, ManagerID: "M9"}, ErrInvalidInput},
		{"manager from another org", entity.Actor{ID: "A2", Role: entity.RoleAdmin, OrgID: "org-2"}, "E2", UserInput{Role: entity.RoleEmployee, ManagerID: "M1"}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upsert(ctx, tt.actor, tt.userID, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDirectoryService_List(t *testing.T) {
	dir := newMemDirectory(
		&entity.User{ID: "M1", OrgID: "org-1", Role: entity.RoleManager},
		&entity.User{ID: "X1", OrgID: "org-2", Role: entity.RoleEmployee},
	)
	svc := NewDirectoryService(dir, &mockLogger{})

	users, err := svc.List(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "M1", users[0].ID)

	_, err = svc.List(context.Background(), finance)
	assert.ErrorIs(t, err, ErrForbidden)
}
