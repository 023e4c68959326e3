package auth

const (
	ScopeOpenID = "openid"
	// ScopeAdmin allows clearing the cache and resetting rate limits.
	ScopeAdmin = "planner:admin"
)
