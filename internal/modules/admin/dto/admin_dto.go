package dto

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required,max=72"`
	Role     string `json:"role" binding:"omitempty,max=20"`
	IsActive *bool  `json:"is_active"`
}

// UpdateUserRequest may touch any account field. IsAdmin is accepted for older
// clients and translated to a role change.
type UpdateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=50"`
	Email    *string `json:"email" binding:"omitempty,email,max=100"`
	Password *string `json:"password" binding:"omitempty,min=1,max=72"`
	IsActive *bool   `json:"is_active"`
	Role     *string `json:"role"`
	IsAdmin  *bool   `json:"is_admin"`
}
