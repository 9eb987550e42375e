package models

// ErrorMessageResponse returns the error message response struct
type ErrorMessageResponse struct {
	Response string `json:"response"`
}

// HealthCheckResponse returns the health check response duh
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}

// CreatedResponse carries the id of a newly created record
type CreatedResponse struct {
	ID string `json:"_id"`
}
