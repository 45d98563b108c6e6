// Package auth refreshes OAuth2 access tokens for the channel.
//
// RefreshingProvider plugs into the connection manager as a token
// provider. It hands out the held access token until it expires, then
// exchanges the refresh token at the token endpoint:
//
//	creds, _, _ := credentials.Load()
//	section := creds.Section("dashboard")
//	p := auth.NewRefreshingProvider(section.TokenURL, section.ClientID, section.OAuthToken())
//	mgr, _ := realtime.New(cfg, realtime.WithTokenProvider(p))
package auth
