package model

import "time"

// KlineData - одна свеча истории цен, загруженная из CSV.
type KlineData struct {
	Start  time.Time `json:"start"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Mid is the bar's (high+low)/2.
func (k KlineData) Mid() float64 {
	return (k.High + k.Low) / 2
}
