package superset

// LoginRequest is the body of POST /api/v1/security/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Provider string `json:"provider"`
	// Refresh is sent as the string "true"; Superset's schema coerces it.
	Refresh string `json:"refresh"`
}

// LoginResponse is the token pair returned by the login endpoint.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type csrfResponse struct {
	Result string `json:"result"`
}

// apiErrorResponse is the error body Superset's REST API returns.
// The message field is a string for most errors and an object for
// validation failures, so it is decoded lazily.
type apiErrorResponse struct {
	Message any `json:"message"`
}
