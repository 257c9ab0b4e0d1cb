// Package onboard implements a stateless, token-carried user onboarding flow:
// register, verify phone, verify email with a one-time code, set password.
//
// Flow state is not kept server-side. Each step is gated by a short-lived
// signed token (HS256) delivered in a cookie; the token's subject claim is the
// username minted at registration. Durable account state lives behind the
// UserStore collaborator, email delivery behind Notifier, and password hashing
// behind PasswordHasher, so the core can be exercised entirely with fakes.
//
// The shipped implementations are a Bun-backed repository (sqlite/postgres),
// an SMTP notifier, and a bcrypt hasher. RegisterOnboardingRoutes mounts the
// JSON HTTP surface on a go-router application.
package onboard
