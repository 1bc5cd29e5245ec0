// Package authsdk is the Go client for the gatehouse authentication
// service. It covers the full surface: registration, sign-in with the
// multi-factor challenge flow, token refresh, and the authenticated
// account, session, and MFA management endpoints.
//
// The entry point is SDKClient for unauthenticated calls. A successful
// sign-in produces either a Session (authenticated, with automatic token
// refresh) or a Challenge to finish with a second factor:
//
//	client := authsdk.NewSDKClient("https://auth.example.com")
//	result, err := client.SignIn(ctx, "alice", password, "cli")
//	if err != nil {
//		return err
//	}
//	session := result.Session
//	if result.Challenge != nil {
//		if err := result.Challenge.Select(ctx, authsdk.MethodTOTP); err != nil {
//			return err
//		}
//		session, err = result.Challenge.Submit(ctx, authsdk.MethodTOTP, code, "cli")
//		if err != nil {
//			return err
//		}
//	}
//	me, err := session.Me(ctx)
package authsdk
