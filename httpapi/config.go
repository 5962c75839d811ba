package httpapi

// Config defines remote-access server settings.
type Config struct {
	Addr            string
	SessionCookie   string
	SessionTTLHours int
	SessionFile     string
	AllowedOrigins  []string
	RatePerSecond   float64
	RateBurst       int
	EntryTailLines  int
}
