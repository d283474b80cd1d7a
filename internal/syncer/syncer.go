// Package syncer drives the multi-account harvest: accounts in store
// order, folders per account, messages per folder, attachments per
// message. A failure in one account never aborts the others.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tracyhatemice/mailpdf/internal/accounts"
	"github.com/tracyhatemice/mailpdf/internal/mailsource"
	"github.com/tracyhatemice/mailpdf/internal/pdffilter"
	"github.com/tracyhatemice/mailpdf/internal/progress"
	"github.com/tracyhatemice/mailpdf/internal/sink"
	"github.com/tracyhatemice/mailpdf/internal/vault"
)

// Request holds the per-run parameters shared by all accounts.
type Request struct {
	LookbackDays int
	Keywords     []string
	DestRoot     string
}

// Syncer runs the harvest over a loaded account store.
type Syncer struct {
	vault     *vault.Vault
	filter    *pdffilter.Filter
	notifier  *progress.Notifier
	logger    *slog.Logger
	newSource func() mailsource.Source
	now       func() time.Time
}

// New creates a Syncer. newSource produces a fresh unconnected mail
// source session per account.
func New(
	v *vault.Vault,
	filter *pdffilter.Filter,
	notifier *progress.Notifier,
	logger *slog.Logger,
	newSource func() mailsource.Source,
) *Syncer {
	return &Syncer{
		vault:     v,
		filter:    filter,
		notifier:  notifier,
		logger:    logger,
		newSource: newSource,
		now:       time.Now,
	}
}

// Start launches Run on its own goroutine and returns a channel that
// yields the had-error flag when the run completes.
func (s *Syncer) Start(ctx context.Context, store *accounts.Store, req Request) <-chan bool {
	done := make(chan bool, 1)
	go func() {
		done <- s.Run(ctx, store, req)
		close(done)
	}()
	return done
}

// Run performs one complete sequential pass over every account. It
// always finishes and returns whether any account-level error occurred.
func (s *Syncer) Run(ctx context.Context, store *accounts.Store, req Request) bool {
	s.notifier.WriteLine(fmt.Sprintf("New sync started at %s", s.now().Format("15:04:05")))
	s.notifier.WriteLine(fmt.Sprintf("%d accounts found.", len(store.Accounts)))

	hadError := false
	for _, account := range store.Accounts {
		if ctx.Err() != nil {
			s.notifier.WriteLine("Sync cancelled.")
			break
		}

		s.notifier.WriteLine("")
		s.notifier.WriteLine(fmt.Sprintf("Syncing account: %s", account.Username))

		if err := s.syncAccount(ctx, account, req); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.notifier.WriteLine("Sync cancelled.")
				break
			}
			s.notifier.WriteLine(fmt.Sprintf("!!! Error with account %s at %s: %v", account.Username, account.Host, err))
			s.logger.Error("account sync failed",
				"account", account.Username,
				"host", account.Host,
				"error", err,
			)
			hadError = true
		}
	}

	s.notifier.WriteLine("")
	s.notifier.WriteLine(fmt.Sprintf("Sync finished at %s", s.now().Format("15:04:05")))
	if hadError {
		s.notifier.WriteLine("Some operations may not have completed.")
	} else {
		s.notifier.WriteLine("All operations completed.")
	}
	return hadError
}

func (s *Syncer) syncAccount(ctx context.Context, account accounts.Account, req Request) error {
	secret, err := s.vault.Unprotect(account.EncryptedSecret)
	if err != nil {
		return fmt.Errorf("unprotect secret: %w", err)
	}

	s.notifier.WriteLine("Connecting..." + account.Username)

	src := s.newSource()
	if err := src.Connect(account.Host, account.Port, account.UseTLS); err != nil {
		return err
	}
	defer func() {
		if err := src.Disconnect(); err != nil {
			s.logger.Warn("disconnect failed", "account", account.Username, "error", err)
		}
	}()

	if err := src.Authenticate(account.Username, secret); err != nil {
		return err
	}

	folders := []*mailsource.Folder{src.DefaultFolder()}
	for _, name := range account.Folders {
		folder, err := src.ListFolder(name)
		if err != nil {
			return err
		}
		if folder == nil {
			s.notifier.WriteLine(fmt.Sprintf("Folder %s not found, skipping.", name))
			continue
		}
		s.notifier.WriteLine("Added " + folder.Name)
		folders = append(folders, folder)
	}

	keywords := effectiveKeywords(account.Keywords, req.Keywords)
	query := mailsource.NewQuery(s.now(), req.LookbackDays, keywords)

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return err
		}

		ids, err := src.Search(folder, query)
		if err != nil {
			return err
		}
		s.notifier.WriteLine(fmt.Sprintf("%d total for folder %s.", len(ids), folder.Name))

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}

			msg, err := src.Fetch(folder, id)
			if err != nil {
				return err
			}
			if msg.Subject == "" || len(msg.Attachments) == 0 {
				continue
			}
			s.saveAttachments(msg, keywords, req.DestRoot)
		}
	}
	return nil
}

// saveAttachments filters and writes the attachments of one message.
// Errors here are fatal to the single attachment only.
func (s *Syncer) saveAttachments(msg *mailsource.Message, keywords []string, destRoot string) {
	domain := senderDomain(msg)

	for _, att := range msg.Attachments {
		name := att.Filename
		if name == "" {
			name = "attachment.pdf"
		}

		ok, err := s.filter.Accept(att, keywords)
		if err != nil {
			s.notifier.WriteLine("!!! ERROR: " + err.Error())
			s.notifier.WriteLine("!!! File was: " + name)
			continue
		}
		if !ok {
			continue
		}

		path := sink.Path(destRoot, msg.Date, domain, name)
		s.notifier.Write(path + "...")

		written, err := sink.Write(path, att.Data)
		if err != nil {
			s.notifier.WriteLine("!!! ERROR: " + err.Error())
			continue
		}
		if written {
			s.notifier.WriteLine("done!")
		} else {
			s.notifier.WriteLine("exists!")
		}
	}
}

// effectiveKeywords merges account keywords with the run's global
// keywords, account keywords first. Duplicates are harmless since
// matching is a case-insensitive substring test.
func effectiveKeywords(account, global []string) []string {
	merged := make([]string, 0, len(account)+len(global))
	merged = append(merged, account...)
	merged = append(merged, global...)
	return merged
}

// senderDomain buckets a message by the domain of its reply-to address
// when present, else its from address, else "Unknown".
func senderDomain(msg *mailsource.Message) string {
	domain := "Unknown"
	if msg.From != "" {
		domain = domainOf(msg.From)
		if msg.ReplyTo != "" {
			domain = domainOf(msg.ReplyTo)
		}
	}
	return domain
}

func domainOf(addr string) string {
	parts := strings.Split(addr, "@")
	return parts[len(parts)-1]
}
