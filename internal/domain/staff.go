package domain

import "time"

// StaffRole enumerates school staff roles acting on cases.
type StaffRole string

const (
	StaffRoleTeacher        StaffRole = "TEACHER"
	StaffRoleWelfareOfficer StaffRole = "WELFARE_OFFICER"
	StaffRoleAdmin          StaffRole = "ADMIN"
)

// StaffMember models a school staff account.
type StaffMember struct {
	ID              string
	Name            string
	Email           string
	PasswordHash    string
	Role            StaffRole
	EstablishmentID string
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
