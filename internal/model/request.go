package model

type RegisterRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=150"`
	LastName        string `json:"last_name" validate:"required,max=150"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type GenerateSpecRequest struct {
	Idea string `json:"idea" validate:"required,max=10000"`
}

type RefineSpecRequest struct {
	Feedback string `json:"feedback" validate:"required,max=10000"`
}

type CodeStubRequest struct {
	SpecID    string `json:"spec_id" validate:"required,anyuuid"`
	Language  string `json:"language" validate:"max=50"`
	Framework string `json:"framework" validate:"max=50"`
}
