package model

// Credential is the token+identity tuple obtained from the OAuth exchange.
// It is replaced wholesale on re-authentication and never mutated in place.
type Credential struct {
	AccessToken     string `json:"access_token" yaml:"-" validate:"required"`
	IdentityID      string `json:"user_key" yaml:"identityId" validate:"required"`
	DisplayName     string `json:"name" yaml:"displayName"`
	ProfileImageURL string `json:"profile_image_url,omitempty" yaml:"profileImageUrl,omitempty"`
}

// TokenRequest is the body of the OAuth code exchange.
type TokenRequest struct {
	Code string `json:"code" binding:"required"`
}

// AuthURLResponse carries the provider authorization URL.
type AuthURLResponse struct {
	AuthURL string `json:"auth_url"`
}
