package dto

// LoginRequest carries the login form fields. The password is used raw and
// never sanitized.
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// RegisterRequest carries the student registration form fields.
type RegisterRequest struct {
	Name            string `form:"name" json:"name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// AuthResponse reports the authenticated principal after login/registration.
type AuthResponse struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Redirect string `json:"redirect"`
}
