package constants

// Static route constants
const (
	PublicRoute  = "/"
	LoginRoute   = "/login"
	APIv1Route   = "/api/v1"
	WebhookRoute = "/webhooks/billing"
	AdminRoute   = "/admin"
	MetricsRoute = "/metrics"
)
