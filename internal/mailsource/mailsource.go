// Package mailsource abstracts access to a remote mailbox: connect,
// authenticate, enumerate folders, search and fetch messages. One
// concrete implementation talks IMAP.
package mailsource

import (
	"fmt"
	"time"
)

// Folder names a mailbox folder on the remote source.
type Folder struct {
	Name string
}

// MessageID identifies one message within a folder for the duration of
// a session.
type MessageID uint32

// Attachment is one attachment part of a fetched message. Data holds
// the transfer-decoded content.
type Attachment struct {
	Filename  string
	MediaType string
	Data      []byte
}

// Message is a fetched message. From and ReplyTo are bare addresses
// ("user@example.com"); either may be empty.
type Message struct {
	Subject     string
	Date        time.Time
	From        string
	ReplyTo     string
	Attachments []Attachment
}

// Query is a server-side search predicate: messages delivered on or
// after Since whose subject contains any element of SubjectAny. An
// empty SubjectAny omits the subject clause entirely, matching every
// message in the window. Subject matching is case-insensitive on the
// server side per the IMAP SEARCH contract.
type Query struct {
	Since      time.Time
	SubjectAny []string
}

// NewQuery builds the predicate for one run: delivered within the last
// lookbackDays, subject containing any of keywords.
func NewQuery(now time.Time, lookbackDays int, keywords []string) Query {
	return Query{
		Since:      now.AddDate(0, 0, -lookbackDays),
		SubjectAny: keywords,
	}
}

// Source is a session with a remote mailbox. Connect and Authenticate
// must be called, in that order, before any other method. Disconnect
// must be called on every exit path.
type Source interface {
	Connect(host string, port int, useTLS bool) error
	Authenticate(username, secret string) error

	// ListFolder resolves a folder by name. An absent folder yields
	// (nil, nil); that is a skip signal, not an error.
	ListFolder(name string) (*Folder, error)

	// DefaultFolder returns the folder every account is searched in
	// regardless of configuration (INBOX for IMAP).
	DefaultFolder() *Folder

	Search(folder *Folder, query Query) ([]MessageID, error)
	Fetch(folder *Folder, id MessageID) (*Message, error)

	Disconnect() error
}

// SourceError wraps a failure from the remote source with the phase it
// occurred in (connect, auth, open, search, fetch). A SourceError is
// fatal to the account being processed but never to the whole run.
type SourceError struct {
	Phase string
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("mail source %s: %v", e.Phase, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
