package models

// Species is a reference row mapping a breed/species name to its CUI digit.
type Species struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Digit int    `json:"digit"`
}

// Region is a reference row mapping an administrative region to its 2-digit code.
type Region struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code int    `json:"code"`
}
