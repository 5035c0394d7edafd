package handler

import (
	"time"

	"carledger/internal/identity/models"
)

// UserResponse is the HTTP shape of a user record. The private data URI and
// key ciphertexts are returned as stored; access control on their contents
// lives outside this service.
type UserResponse struct {
	Address             string     `json:"address"`
	Authority           string     `json:"authority"`
	UserName            string     `json:"user_name"`
	PublicDataURI       string     `json:"public_data_uri,omitempty"`
	PrivateDataURI      string     `json:"private_data_uri,omitempty"`
	EncryptedKeyForGov  string     `json:"encrypted_key_for_gov,omitempty"`
	EncryptedKeyForUser string     `json:"encrypted_key_for_user,omitempty"`
	Role                string     `json:"role"`
	VerificationStatus  string     `json:"verification_status"`
	VerifiedAt          *time.Time `json:"verified_at,omitempty"`
	VerifiedBy          string     `json:"verified_by,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	Bump                uint8      `json:"bump"`
}

// FromUser converts a user record to its HTTP shape.
func FromUser(user models.User) UserResponse {
	resp := UserResponse{
		Address:             user.Address.String(),
		Authority:           user.Authority.String(),
		UserName:            user.UserName,
		PublicDataURI:       user.PublicDataURI,
		PrivateDataURI:      user.PrivateDataURI,
		EncryptedKeyForGov:  user.EncryptedKeyForGov,
		EncryptedKeyForUser: user.EncryptedKeyForUser,
		Role:                string(user.Role),
		VerificationStatus:  string(user.VerificationStatus),
		VerifiedAt:          user.VerifiedAt,
		CreatedAt:           user.CreatedAt,
		UpdatedAt:           user.UpdatedAt,
		Bump:                user.Bump,
	}
	if user.VerifiedBy != nil {
		resp.VerifiedBy = user.VerifiedBy.String()
	}
	return resp
}

// FromUsers converts a list of user records.
func FromUsers(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, FromUser(user))
	}
	return out
}
