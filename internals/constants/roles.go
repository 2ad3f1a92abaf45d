package constants

import "fmt"

const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

// Role error templates
const (
	ErrOnlyStaffCanAccess  = "Only admin, manager or instructor may access %s."
	ErrOnlyAdminsCanAccess = "Only admin or manager may access %s."
)

func RoleErrorStaff(feature string) string {
	return fmt.Sprintf(ErrOnlyStaffCanAccess, feature)
}

func RoleErrorAdmin(feature string) string {
	return fmt.Sprintf(ErrOnlyAdminsCanAccess, feature)
}

var (
	AllRoles = []string{RoleAdmin, RoleManager, RoleInstructor, RoleStudent}

	StaffRoles = []string{RoleAdmin, RoleManager, RoleInstructor}

	AdminRoles = []string{RoleAdmin, RoleManager}
)

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
