package mailsource

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
)

const defaultFolderName = "INBOX"

// IMAPSource is the IMAP implementation of Source.
type IMAPSource struct {
	logger *slog.Logger

	client   *imapclient.Client
	selected string // currently selected folder, "" if none
}

// NewIMAP creates an unconnected IMAP source.
func NewIMAP(logger *slog.Logger) *IMAPSource {
	return &IMAPSource{logger: logger}
}

func (s *IMAPSource) Connect(host string, port int, useTLS bool) error {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	var client *imapclient.Client
	var err error

	if useTLS {
		client, err = imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: host},
		})
	} else {
		client, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return &SourceError{Phase: "connect", Err: fmt.Errorf("dial %s: %w", addr, err)}
	}

	s.client = client
	s.selected = ""
	return nil
}

func (s *IMAPSource) Authenticate(username, secret string) error {
	if err := s.client.Login(username, secret).Wait(); err != nil {
		return &SourceError{Phase: "auth", Err: fmt.Errorf("login %s: %w", username, err)}
	}
	return nil
}

// ListFolder probes for a folder by name with LIST. An absent folder
// yields (nil, nil).
func (s *IMAPSource) ListFolder(name string) (*Folder, error) {
	if name == "" {
		return nil, nil
	}

	mailboxes, err := s.client.List("", name, nil).Collect()
	if err != nil {
		return nil, &SourceError{Phase: "open", Err: fmt.Errorf("list %s: %w", name, err)}
	}
	if len(mailboxes) == 0 {
		return nil, nil
	}
	return &Folder{Name: mailboxes[0].Mailbox}, nil
}

func (s *IMAPSource) DefaultFolder() *Folder {
	return &Folder{Name: defaultFolderName}
}

func (s *IMAPSource) Search(folder *Folder, query Query) ([]MessageID, error) {
	if err := s.selectFolder(folder.Name); err != nil {
		return nil, err
	}

	searchData, err := s.client.UIDSearch(buildCriteria(query), nil).Wait()
	if err != nil {
		return nil, &SourceError{Phase: "search", Err: fmt.Errorf("search %s: %w", folder.Name, err)}
	}

	uids := searchData.AllUIDs()
	ids := make([]MessageID, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, MessageID(uid))
	}
	return ids, nil
}

func (s *IMAPSource) Fetch(folder *Folder, id MessageID) (*Message, error) {
	if err := s.selectFolder(folder.Name); err != nil {
		return nil, err
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOptions := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	buffers, err := s.client.Fetch(imap.UIDSetNum(imap.UID(id)), fetchOptions).Collect()
	if err != nil {
		return nil, &SourceError{Phase: "fetch", Err: fmt.Errorf("fetch uid %d: %w", id, err)}
	}
	if len(buffers) == 0 {
		return nil, &SourceError{Phase: "fetch", Err: fmt.Errorf("uid %d not found in %s", id, folder.Name)}
	}
	buf := buffers[0]

	msg := &Message{}
	if buf.Envelope != nil {
		msg.Subject = buf.Envelope.Subject
		msg.Date = buf.Envelope.Date
		if len(buf.Envelope.From) > 0 {
			msg.From = buf.Envelope.From[0].Addr()
		}
		if len(buf.Envelope.ReplyTo) > 0 {
			msg.ReplyTo = buf.Envelope.ReplyTo[0].Addr()
		}
	}

	raw := buf.FindBodySection(bodySection)
	if len(raw) > 0 {
		msg.Attachments = parseAttachments(raw, s.logger)
	}
	return msg, nil
}

func (s *IMAPSource) Disconnect() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Logout().Wait()
	// The server closes the connection after LOGOUT; Close here only
	// covers the failed-logout path.
	_ = s.client.Close()
	s.client = nil
	s.selected = ""
	return err
}

func (s *IMAPSource) selectFolder(name string) error {
	if s.selected == name {
		return nil
	}
	if _, err := s.client.Select(name, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return &SourceError{Phase: "open", Err: fmt.Errorf("select %s: %w", name, err)}
	}
	s.selected = name
	return nil
}

// buildCriteria translates a Query into IMAP SEARCH criteria:
// SINCE cutoff AND (HEADER Subject k1 OR HEADER Subject k2 OR ...).
func buildCriteria(query Query) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{Since: query.Since}
	if len(query.SubjectAny) == 0 {
		return criteria
	}

	subject := subjectContains(query.SubjectAny[0])
	for _, keyword := range query.SubjectAny[1:] {
		subject = imap.SearchCriteria{
			Or: [][2]imap.SearchCriteria{{subject, subjectContains(keyword)}},
		}
	}

	// Fields on one SearchCriteria are ANDed together.
	criteria.Header = subject.Header
	criteria.Or = subject.Or
	return criteria
}

func subjectContains(keyword string) imap.SearchCriteria {
	return imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: keyword}},
	}
}

// parseAttachments walks the MIME structure of a raw RFC 5322 message
// and collects attachment parts with decoded content. Unparseable
// parts are skipped, not fatal.
func parseAttachments(raw []byte, logger *slog.Logger) []Attachment {
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		logger.Warn("unparseable message body", "error", err)
		return nil
	}
	defer reader.Close()

	var attachments []Attachment
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("unreadable message part", "error", err)
			break
		}

		header, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}

		filename, _ := header.Filename()
		mediaType, _, _ := header.ContentType()

		data, err := io.ReadAll(part.Body)
		if err != nil {
			logger.Warn("unreadable attachment", "filename", filename, "error", err)
			continue
		}

		attachments = append(attachments, Attachment{
			Filename:  filename,
			MediaType: mediaType,
			Data:      data,
		})
	}
	return attachments
}
