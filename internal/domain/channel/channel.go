// Package channel defines the narrow delivery capabilities the dispatch
// engine and the attendance ledger call through. Implementations live in
// internal/infra; tests substitute fakes.
package channel

import "context"

// EmailMessage is one outbound email. HTML is optional; when set the
// message is sent as text/html, otherwise as plain text.
type EmailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// EmailSender delivers email. This is the mandatory dispatch channel: a
// failure here rolls back the dispatch claim for a later retry.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// PushNotification is the title/body pair shown on a device.
type PushNotification struct {
	Title string
	Body  string
}

// PushSender delivers a push notification to one device token. Failures
// are logged by callers, never retried.
type PushSender interface {
	Send(ctx context.Context, token string, note PushNotification) error
}

// RealtimeSender pushes a payload to an account's live connections.
// A false return means the account is not currently connected; that is a
// normal outcome, not an error.
type RealtimeSender interface {
	SendToAccount(accountID int64, payload any) bool
}
