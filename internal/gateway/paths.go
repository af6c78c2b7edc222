package gateway

import "net/url"

// Backend endpoints, relative to the base URL.
const (
	PathUserBills   = "/bills/user"
	PathSuggestions = "/bill-suggestions"
	PathUpload      = "/bills/upload"
	PathDashboard   = "/users/dashboard"
	PathRegister    = "/auth/register"
	PathLogin       = "/auth/login"
)

// BillPath returns the path of a single bill.
func BillPath(id string) string {
	return "/bills/" + url.PathEscape(id)
}
