package models

import "strings"

// Role represents the platform-wide role carried in the JWT.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Course role shortnames that grant report access.
const (
	CourseRoleManager        = "manager"
	CourseRoleEditingTeacher = "editingteacher"
	CourseRoleTeacher        = "teacher"
	CourseRoleStudent        = "student"
)

// User is an LMS user account.
type User struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Password   string `json:"-"`
	FirstName  string `json:"firstname"`
	LastName   string `json:"lastname"`
	Email      string `json:"email"`
	Picture    int64  `json:"picture"`
	ImageAlt   string `json:"imagealt,omitempty"`
	IsAdmin    bool   `json:"is_admin"`
	LastAccess int64  `json:"lastaccess"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	role := RoleUser
	if u.IsAdmin {
		role = RoleAdmin
	}
	return UserPublic{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      role,
	}
}
