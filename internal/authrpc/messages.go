package authrpc

type SignUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type SignUpResponse struct {
	UserID string `json:"userId"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RenewRequest carries the expired access token and the refresh token
// issued with it.
type RenewRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RenewResponse reports policy failures in-band: Success is false and
// Message holds the reason.
type RenewResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type RevokeRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RevokeResponse struct{}

type RevokeAllRequest struct{}

type RevokeAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type MeRequest struct{}

type MeResponse struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
