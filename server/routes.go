package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())

	// Gate walk
	s.RegisterRouteFunc("GET "+RouteGateStatus, ChainMiddleware(s.GateStatusHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteGateIdentity, ChainMiddleware(s.IdentityHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteGateEmailCode, ChainMiddleware(s.EmailCodeHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteGatePhoneCode, ChainMiddleware(s.PhoneCodeHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteGateResend, ChainMiddleware(s.ResendHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteGateLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// Protected area (requires a valid session credential)
	s.RegisterRouteFunc("GET "+RouteAdminPing, ChainMiddleware(s.AdminPingHandler(), s.APIMiddleware(s.RequireSessionAuth())...))
}
