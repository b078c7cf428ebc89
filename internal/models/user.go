package models

// User is the principal that audit entries point to as their actor.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PasswordHash string `json:"-"`
	IsStaff      bool   `json:"is_staff"`
}

// Login returns the value of the configured login field.
func (u User) Login(field string) string {
	if field == "email" {
		return u.Email
	}
	return u.Username
}
