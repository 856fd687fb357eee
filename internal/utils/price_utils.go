package utils

import "errors"

var ErrEmptyBook = errors.New("bid or ask is missing")

// MidPrice returns (bid+ask)/2 of the top of book.
func MidPrice(bid, ask float64) (float64, error) {
	if bid <= 0 || ask <= 0 {
		return 0, ErrEmptyBook
	}
	return (bid + ask) / 2, nil
}
