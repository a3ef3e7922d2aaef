package httpdto

// RegisterRequest is used for POST /v1/auth/register
type RegisterRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Password    string `json:"password,omitempty"`
}

// LoginRequest is used for POST /v1/auth/login. Accounts registered without
// a password log in with the phone number alone.
type LoginRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	Password    string `json:"password,omitempty"`
}

// AuthResponse is returned after register and login
type AuthResponse struct {
	User        UserDTO `json:"user"`
	AccessToken string  `json:"access_token"`
	ExpiresIn   int64   `json:"expires_in"`
}

// AdminLoginRequest is used for POST /v1/admin/login
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AdminLoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}
