package seeders

import (
	"testing"

	"hrms_go/database/dbtest"
	"hrms_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedAllIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)

	require.NoError(t, SeedAll(db))
	require.NoError(t, SeedAll(db))

	var employees, projects, balances, holidays int64
	db.Model(&models.Employee{}).Count(&employees)
	db.Model(&models.Project{}).Count(&projects)
	db.Model(&models.LeaveBalance{}).Count(&balances)
	db.Model(&models.OptionalHolidayDay{}).Count(&holidays)

	assert.Equal(t, int64(5), employees)
	assert.Equal(t, int64(2), projects)
	assert.Equal(t, employees, balances)
	assert.Equal(t, balances*3, holidays)

	var project models.Project
	require.NoError(t, db.Preload("AssignTo").Where("status = ?", models.ProjectActive).First(&project).Error)
	assert.Len(t, project.AssignTo, 2)
}
