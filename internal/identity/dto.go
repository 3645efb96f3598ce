// AngelaMos | 2026
// dto.go

package identity

type SignUpRequest struct {
	Email      string `json:"email"    validate:"required,email,max=255"`
	Password   string `json:"password" validate:"required,min=6,max=128"`
	Name       string `json:"name"        validate:"required,min=1,max=120"`
	Role       string `json:"role"        validate:"omitempty,oneof=client consultant auxiliary administrator"`
	ClientType string `json:"client_type" validate:"omitempty,oneof=partner interested"`
}

type SignInRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type SignOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RecoverRequest struct {
	Email      string `json:"email"       validate:"required,email,max=255"`
	RedirectTo string `json:"redirect_to" validate:"omitempty,url"`
}

type VerifyRequest struct {
	Email string  `json:"email" validate:"required,email,max=255"`
	Token string  `json:"token" validate:"required,len=6,numeric"`
	Type  OTPType `json:"type"  validate:"required,oneof=recovery signup magiclink email"`
}

type UpdateUserRequest struct {
	Password *string   `json:"password" validate:"omitempty,min=6,max=128"`
	Data     *Metadata `json:"data"`
}
