package users

// CreateForm is the payload for registering a user account.
type CreateForm struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	RoleName string `json:"role_name" validate:"required"`
	IsActive *bool  `json:"is_active"`
}

// UpdateForm is the payload for editing an existing account. The
// password is changed through a separate endpoint.
type UpdateForm struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2,max=120"`
	RoleName string `json:"role_name" validate:"required"`
	IsActive *bool  `json:"is_active"`
}

// PasswordForm is the payload for resetting a password.
type PasswordForm struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (f CreateForm) toModel() User {
	active := true
	if f.IsActive != nil {
		active = *f.IsActive
	}
	return User{
		Email:    f.Email,
		Name:     f.Name,
		RoleName: f.RoleName,
		IsActive: active,
	}
}

func (f UpdateForm) toModel() User {
	active := true
	if f.IsActive != nil {
		active = *f.IsActive
	}
	return User{
		Email:    f.Email,
		Name:     f.Name,
		RoleName: f.RoleName,
		IsActive: active,
	}
}
