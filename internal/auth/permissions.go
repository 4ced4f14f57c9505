package auth

const (
	PermAdminSystem    = "admin.system"
	PermAdminUsers     = "admin.users"
	PermTradingView    = "trading.view"
	PermTradingExecute = "trading.execute"
	PermAnalyticsView  = "analytics.view"
	PermBiddingManage  = "bidding.manage"
	PermSecurityManage = "security.manage"
)

// DefaultPermissions returns the permission set granted to a role when a seed
// does not list permissions explicitly.
func DefaultPermissions(role Role) []string {
	switch role {
	case RoleAdmin:
		return []string{
			PermAdminSystem, PermAdminUsers, PermTradingView, PermTradingExecute,
			PermAnalyticsView, PermBiddingManage, PermSecurityManage,
		}
	case RoleTrader:
		return []string{PermTradingView, PermTradingExecute, PermAnalyticsView, PermBiddingManage, PermSecurityManage}
	case RoleUser:
		return []string{PermTradingView, PermAnalyticsView, PermSecurityManage}
	}
	return nil
}
