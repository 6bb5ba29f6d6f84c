package seeders

import (
	"fmt"
	"log"

	"hrms_go/models"

	"gorm.io/gorm"
)

// SeedAll runs all seeders
func SeedAll(db *gorm.DB) error {
	log.Println("Starting database seeding...")

	if err := SeedEmployees(db); err != nil {
		return err
	}
	if err := SeedProjects(db); err != nil {
		return err
	}
	if err := SeedLeaveBalances(db); err != nil {
		return err
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

// SeedEmployees seeds one employee per auth level plus two regular staff
func SeedEmployees(db *gorm.DB) error {
	var count int64
	db.Model(&models.Employee{}).Count(&count)
	if count > 0 {
		log.Println("Employees already seeded, skipping...")
		return nil
	}

	employees := []models.Employee{
		{EmpID: "EMP001", Name: "Asha Admin", Email: "admin@hrms.local", Auth: models.AuthAdmin, Status: "active"},
		{EmpID: "EMP002", Name: "Harish HR", Email: "hr@hrms.local", Auth: models.AuthHR, Status: "active"},
		{EmpID: "EMP003", Name: "Meera Manager", Email: "manager@hrms.local", Auth: models.AuthManager, Status: "active"},
		{EmpID: "EMP004", Name: "Ravi Kumar", Email: "ravi@hrms.local", Auth: models.AuthEmployee, Status: "active"},
		{EmpID: "EMP005", Name: "Sneha Patil", Email: "sneha@hrms.local", Auth: models.AuthEmployee, Status: "active"},
	}
	if err := db.Create(&employees).Error; err != nil {
		return fmt.Errorf("seed employees: %w", err)
	}

	log.Println("Employees seeded successfully")
	return nil
}

// SeedProjects seeds an active and an inactive project managed by the manager
func SeedProjects(db *gorm.DB) error {
	var count int64
	db.Model(&models.Project{}).Count(&count)
	if count > 0 {
		log.Println("Projects already seeded, skipping...")
		return nil
	}

	var manager models.Employee
	if err := db.Where("emp_id = ?", "EMP003").First(&manager).Error; err != nil {
		return fmt.Errorf("seed projects: manager not found: %w", err)
	}
	var staff []models.Employee
	if err := db.Where("auth = ?", models.AuthEmployee).Find(&staff).Error; err != nil {
		return fmt.Errorf("seed projects: %w", err)
	}

	projects := []models.Project{
		{Name: "Payroll Portal", ManagerID: manager.ID, Status: models.ProjectActive, AssignTo: staff},
		{Name: "Legacy Intranet", ManagerID: manager.ID, Status: models.ProjectInactive, AssignTo: staff},
	}
	if err := db.Create(&projects).Error; err != nil {
		return fmt.Errorf("seed projects: %w", err)
	}

	log.Println("Projects seeded successfully")
	return nil
}

// SeedLeaveBalances gives every employee a yearly allowance and the optional holiday catalogue
func SeedLeaveBalances(db *gorm.DB) error {
	var count int64
	db.Model(&models.LeaveBalance{}).Count(&count)
	if count > 0 {
		log.Println("Leave balances already seeded, skipping...")
		return nil
	}

	var employees []models.Employee
	if err := db.Find(&employees).Error; err != nil {
		return fmt.Errorf("seed leave balances: %w", err)
	}

	mandatory := models.JSON(`[{"name":"Republic Day","date":"2026-01-26"},{"name":"Independence Day","date":"2026-08-15"},{"name":"Gandhi Jayanti","date":"2026-10-02"}]`)
	weekend := models.JSON(`["Saturday","Sunday"]`)

	for _, e := range employees {
		balance := models.LeaveBalance{
			EmployeeID:       e.ID,
			Leaves:           models.BalanceCounter{Available: 18},
			OptionalHoliday:  models.BalanceCounter{Available: 2},
			MandatoryHoliday: mandatory,
			WeekendHoliday:   weekend,
			OptionalHolidays: []models.OptionalHolidayDay{
				{Name: "Holi", Date: "2026-03-04"},
				{Name: "Raksha Bandhan", Date: "2026-08-28"},
				{Name: "Christmas", Date: "2026-12-25"},
			},
		}
		if err := db.Create(&balance).Error; err != nil {
			return fmt.Errorf("seed leave balance for employee %d: %w", e.ID, err)
		}
	}

	log.Println("Leave balances seeded successfully")
	return nil
}
