package models

import "time"

// AdminTokenResponse carries a freshly issued admin bearer token
type AdminTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
