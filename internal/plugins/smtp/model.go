// Package smtp delivers outbound email through an Email Account. Messages
// are composed with go-message and handed to the account's server with the
// go-smtp client. Delivery is synchronous with no retry: callers decide
// what a failure means.
package smtp

// Mail is an email message to be sent. HTMLBody is required; TextBody is
// derived from it when empty.
type Mail struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string

	// ReferenceDoctype and ReferenceName tie the message to the record it
	// concerns. Sent as X-Reference-* headers when set.
	ReferenceDoctype string
	ReferenceName    string
}
