package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/{$}"

	// Auth Routes - Login & Logout
	RouteLogin    = "/auth/{provider}"
	RouteCallback = "/auth/{provider}/callback"
	RouteLogout   = "/auth/logout"

	// API Routes
	RouteMe = "/me"
)
