package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/tracyhatemice/mailpdf/internal/accounts"
	"github.com/tracyhatemice/mailpdf/internal/config"
	"github.com/tracyhatemice/mailpdf/internal/mailsource"
	"github.com/tracyhatemice/mailpdf/internal/pdffilter"
	"github.com/tracyhatemice/mailpdf/internal/progress"
	"github.com/tracyhatemice/mailpdf/internal/syncer"
	"github.com/tracyhatemice/mailpdf/internal/vault"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "account" {
		if err := runAccount(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runSync(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runSync(args []string) error {
	fs := flag.NewFlagSet("mailpdf", flag.ExitOnError)
	configPath := fs.String("config", "", "path to optional YAML configuration file")
	accountsPath := fs.String("accounts", "", "path to the accounts file (default: per-user config dir)")
	dest := fs.String("dest", "", "destination root for saved PDFs")
	days := fs.Int("days", 0, "lookback window in days")
	keywords := fs.String("keywords", "", "comma-separated global keywords")
	logDir := fs.String("log-dir", "", "directory to write a run log into")
	logLevel := fs.String("log-level", "", "log level (debug|info|warn|error)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *dest != "" {
		cfg.Destination = *dest
	}
	if *days > 0 {
		cfg.LookbackDays = *days
	}
	if *keywords != "" {
		cfg.Keywords = splitKeywords(*keywords)
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if cfg.Destination == "" {
		cfg.Destination = "SavedPDFs"
	}

	logger := setupLogger(cfg.LogLevel)

	v, err := vault.Open()
	if err != nil {
		return err
	}

	storePath, err := resolveAccountsPath(*accountsPath)
	if err != nil {
		return err
	}
	store, err := accounts.Load(storePath)
	if err != nil {
		return err
	}

	logger.Info("mailpdf starting",
		"accounts", len(store.Accounts),
		"destination", cfg.Destination,
		"lookback_days", cfg.LookbackDays,
	)

	notifier := progress.NewNotifier()
	events := notifier.Subscribe(256)

	var transcript strings.Builder
	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		for ev := range events {
			if ev.Line {
				fmt.Println(ev.Text)
				transcript.WriteString(ev.Text)
				transcript.WriteByte('\n')
			} else {
				fmt.Print(ev.Text)
				transcript.WriteString(ev.Text)
			}
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s := syncer.New(v, pdffilter.New(), notifier, logger, func() mailsource.Source {
		return mailsource.NewIMAP(logger)
	})

	hadError := <-s.Start(ctx, store, syncer.Request{
		LookbackDays: cfg.LookbackDays,
		Keywords:     cfg.Keywords,
		DestRoot:     cfg.Destination,
	})

	notifier.Close()
	<-printerDone

	if cfg.LogDir != "" {
		if err := writeRunLog(cfg.LogDir, transcript.String()); err != nil {
			logger.Warn("could not write run log", "error", err)
		}
	}

	if hadError {
		return fmt.Errorf("some operations may not have completed")
	}
	return nil
}

func runAccount(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: mailpdf account <add|list|remove> [flags]")
	}

	switch args[0] {
	case "add":
		return accountAdd(args[1:])
	case "list":
		return accountList(args[1:])
	case "remove":
		return accountRemove(args[1:])
	default:
		return fmt.Errorf("unknown account subcommand %q", args[0])
	}
}

func accountAdd(args []string) error {
	fs := flag.NewFlagSet("account add", flag.ExitOnError)
	accountsPath := fs.String("accounts", "", "path to the accounts file")
	host := fs.String("host", "", "IMAP host")
	port := fs.Int("port", 993, "IMAP port")
	useTLS := fs.Bool("tls", true, "use TLS")
	username := fs.String("username", "", "account username")
	keywords := fs.String("keywords", "", "comma-separated account keywords")
	folders := fs.String("folders", "", "comma-separated extra folders")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *host == "" || *username == "" {
		return fmt.Errorf("-host and -username are required")
	}
	if *port < 1 || *port > 65535 {
		return fmt.Errorf("-port must be in 1-65535")
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", *username)
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")

	v, err := vault.Open()
	if err != nil {
		return err
	}
	secret, err := v.Protect(password)
	if err != nil {
		return err
	}

	path, err := resolveAccountsPath(*accountsPath)
	if err != nil {
		return err
	}
	store, err := accounts.Load(path)
	if err != nil {
		return err
	}

	store.Upsert(accounts.Account{
		Host:            *host,
		Port:            *port,
		UseTLS:          *useTLS,
		Username:        *username,
		EncryptedSecret: secret,
		Keywords:        splitKeywords(*keywords),
		Folders:         splitKeywords(*folders),
	})
	if err := store.Save(path); err != nil {
		return err
	}

	fmt.Printf("Saved account %s at %s:%d\n", *username, *host, *port)
	return nil
}

func accountList(args []string) error {
	fs := flag.NewFlagSet("account list", flag.ExitOnError)
	accountsPath := fs.String("accounts", "", "path to the accounts file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := resolveAccountsPath(*accountsPath)
	if err != nil {
		return err
	}
	store, err := accounts.Load(path)
	if err != nil {
		return err
	}

	if len(store.Accounts) == 0 {
		fmt.Println("No accounts configured.")
		return nil
	}
	for _, a := range store.Accounts {
		fmt.Printf("%s @ %s:%d tls=%t keywords=%s folders=%s\n",
			a.Username, a.Host, a.Port, a.UseTLS,
			strings.Join(a.Keywords, ","), strings.Join(a.Folders, ","))
	}
	return nil
}

func accountRemove(args []string) error {
	fs := flag.NewFlagSet("account remove", flag.ExitOnError)
	accountsPath := fs.String("accounts", "", "path to the accounts file")
	host := fs.String("host", "", "IMAP host")
	port := fs.Int("port", 993, "IMAP port")
	username := fs.String("username", "", "account username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *host == "" || *username == "" {
		return fmt.Errorf("-host and -username are required")
	}

	path, err := resolveAccountsPath(*accountsPath)
	if err != nil {
		return err
	}
	store, err := accounts.Load(path)
	if err != nil {
		return err
	}

	before := len(store.Accounts)
	store.Remove(accounts.Account{Host: *host, Port: *port, Username: *username})
	if len(store.Accounts) == before {
		fmt.Println("No matching account.")
		return nil
	}
	if err := store.Save(path); err != nil {
		return err
	}

	fmt.Printf("Removed account %s at %s:%d\n", *username, *host, *port)
	return nil
}

func resolveAccountsPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return accounts.DefaultPath()
}

func writeRunLog(dir, content string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("Log_%s.txt", time.Now().Format("2006-01-02_15-04-05"))
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}

func splitKeywords(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
