package marketdata

// Service answers price questions from the live ticker.
type Service interface {
	LastMid(symbol string) (float64, bool)
	RecentMids(symbol string, n int) ([]float64, bool)
}
