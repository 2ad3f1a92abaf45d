package seeds

import (
	school "drivingschool_backend/internals/seeds/school"
	users "drivingschool_backend/internals/seeds/users/auth"

	"gorm.io/gorm"
)

// RunAll seeds the staff accounts, course catalogue and fleet. Safe to rerun.
func RunAll(db *gorm.DB) {
	//* Users
	users.SeedUsersFromJSON(db, "internals/seeds/users/auth/data_users.json")

	//* School
	school.SeedSchoolFromJSON(db, "internals/seeds/school/data_school.json")
}
