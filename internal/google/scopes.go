package google

import gmail "google.golang.org/api/gmail/v1"

// ReadOnlyScopes are the OAuth scopes inboxcal requests. Mail is only
// ever read.
var ReadOnlyScopes = []string{
	gmail.GmailReadonlyScope,
}
