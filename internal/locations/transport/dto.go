package transport

import "github.com/google/uuid"

// UpdateCapacityRequest sets a location's maximum daily lead intake.
type UpdateCapacityRequest struct {
	DailyCapacity int `json:"dailyCapacity" validate:"required,min=1,max=10000"`
}

// UpdateScoresRequest replaces a location's per-channel performance scores.
type UpdateScoresRequest struct {
	ChannelScores map[string]float64 `json:"channelScores" validate:"required,dive,min=0,max=1"`
}

// LocationResponse represents a location in API responses.
type LocationResponse struct {
	ID            uuid.UUID          `json:"id"`
	Name          string             `json:"name"`
	Address       string             `json:"address"`
	PostalCode    string             `json:"postalCode"`
	Latitude      float64            `json:"latitude"`
	Longitude     float64            `json:"longitude"`
	IsActive      bool               `json:"isActive"`
	DailyCapacity int                `json:"dailyCapacity"`
	ChannelScores map[string]float64 `json:"channelScores,omitempty"`
	CreatedAt     string             `json:"createdAt"`
	UpdatedAt     string             `json:"updatedAt"`
}

// LocationListResponse wraps a list of locations.
type LocationListResponse struct {
	Items []LocationResponse `json:"items"`
	Total int                `json:"total"`
}
