package port

import "context"

// Mail is an outbound message handed to the mail collaborator.
type Mail struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Mailer delivers mail to a contact address. Delivery failure is a
// recoverable error for the caller; an already-issued OTP stays valid
// even when the send fails.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}
