package entity

import "time"

// Company is a tenant; every user and expense belongs to exactly one
type Company struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	CountryCode     string    `json:"countryCode"`
	DefaultCurrency string    `json:"defaultCurrency"`
	CreatedAt       time.Time `json:"createdAt"`
}
