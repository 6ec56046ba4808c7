package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Token routes
	RouteRequestToken = "/auth/token"
	RouteAcceptToken  = "/auth/accept"
	RouteLogout       = "/auth/logout"

	// Pages that need a login
	RouteRestricted = "/restricted"

	// API Routes
	RouteAPIMe = "/api/me"

	// Operational routes
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

// Form and query field names shared by the pages and the flow steps.
const (
	FieldEmail  = "email"
	FieldOrigin = "origin"
	FieldError  = "error"
)
