package models

import "time"

// HealthCheckResponse reports whether the api can reach its document store
type HealthCheckResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Emulator  bool      `json:"emulator"`
	Error     string    `json:"error,omitempty"`
}

// ClientConfig tells the browser where the api lives
type ClientConfig struct {
	APIBaseURL string `json:"apiBaseUrl"`
	Emulator   bool   `json:"emulator"`
}
