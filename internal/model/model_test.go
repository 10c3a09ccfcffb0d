package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidTaskStatus(t *testing.T) {
	assert.True(t, ValidTaskStatus(TaskStatusTodo))
	assert.True(t, ValidTaskStatus(TaskStatusInProgress))
	assert.True(t, ValidTaskStatus(TaskStatusCompleted))
	assert.False(t, ValidTaskStatus("done"))
	assert.False(t, ValidTaskStatus(""))
}

func TestValidPriority(t *testing.T) {
	assert.True(t, ValidPriority(PriorityLow))
	assert.True(t, ValidPriority(PriorityMedium))
	assert.True(t, ValidPriority(PriorityHigh))
	assert.False(t, ValidPriority("urgent"))
}

func TestValidProjectStatus(t *testing.T) {
	assert.True(t, ValidProjectStatus(ProjectStatusActive))
	assert.True(t, ValidProjectStatus(ProjectStatusArchived))
	assert.True(t, ValidProjectStatus(ProjectStatusCompleted))
	assert.False(t, ValidProjectStatus("paused"))
}

func TestValidTenantStatusAndPlan(t *testing.T) {
	assert.True(t, ValidTenantStatus(TenantStatusActive))
	assert.True(t, ValidTenantStatus(TenantStatusSuspended))
	assert.False(t, ValidTenantStatus("deleted"))

	assert.True(t, ValidPlan(PlanFree))
	assert.True(t, ValidPlan(PlanPro))
	assert.True(t, ValidPlan(PlanEnterprise))
	assert.False(t, ValidPlan("trial"))
}

func TestBeforeCreateAssignsID(t *testing.T) {
	tenant := Tenant{Name: "Acme", Subdomain: "acme"}
	require.NoError(t, tenant.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, tenant.ID)

	// An explicit id is kept
	fixed := uuid.New()
	task := Task{ID: fixed}
	require.NoError(t, task.BeforeCreate(nil))
	assert.Equal(t, fixed, task.ID)
}
