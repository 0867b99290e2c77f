package server

const (
	RouteHealthz = "/healthz"

	RouteGateStatus    = "/gate/status"
	RouteGateIdentity  = "/gate/identity"
	RouteGateEmailCode = "/gate/email-code"
	RouteGatePhoneCode = "/gate/phone-code"
	RouteGateResend    = "/gate/resend"
	RouteGateLogout    = "/gate/logout"

	RouteAdminPing = "/admin/ping"
)

// SessionCookieName carries the session credential between requests.
const SessionCookieName = "gate_session"
