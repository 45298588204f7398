package dto

import "time"

// ExportResponse points the client at a generated document.
type ExportResponse struct {
	ExportID  string    `json:"exportId"`
	FileName  string    `json:"fileName"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Size      int       `json:"size"`
}
