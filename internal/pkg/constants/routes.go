package constants

// Route prefixes shared between the router and middlewares.
const (
	LoginPath = "/login"

	// DashboardPrefix is the protected merchant area guarded by the
	// entitlement gate.
	DashboardPrefix = "/user"

	// BillingPath is the subscription-management subpath. It stays outside
	// the entitlement gate so unentitled accounts can still subscribe.
	BillingPath = "/user/billing"

	// PublicMenuPrefix serves published menus to guests.
	PublicMenuPrefix = "/m"
)
