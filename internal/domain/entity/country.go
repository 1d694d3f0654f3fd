package entity

// Currency describes a currency used by a country
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Country is an entry of the reference country list
type Country struct {
	Name       string     `json:"name"`
	Code       string     `json:"code"`
	Currencies []Currency `json:"currencies"`
}
