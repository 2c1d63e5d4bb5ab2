package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/inboxcal/internal/gmail"
	"github.com/teemow/inboxcal/internal/google"
	"github.com/teemow/inboxcal/internal/scheduling"
)

// messageGetter is the part of the Gmail client the adapter uses.
type messageGetter interface {
	GetMessage(ctx context.Context, id string) (*gmail.Message, error)
}

// gmailFetcher adapts the Gmail client to scheduling.EmailFetcher. The
// client is created on first use so that a missing token only affects
// the email based tools.
type gmailFetcher struct {
	ctx      context.Context
	provider google.TokenProvider
	logger   *slog.Logger

	mu     sync.Mutex
	client messageGetter
}

func newGmailFetcher(ctx context.Context, provider google.TokenProvider, logger *slog.Logger) *gmailFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &gmailFetcher{ctx: ctx, provider: provider, logger: logger}
}

func (f *gmailFetcher) getClient() (messageGetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil {
		return f.client, nil
	}
	if !f.provider.HasToken() {
		return nil, fmt.Errorf("%w: no Gmail token found, see `inboxcal serve --help`", scheduling.ErrEmailUnavailable)
	}
	client, err := gmail.NewClient(f.ctx, f.provider)
	if err != nil {
		f.logger.Warn("failed to create Gmail client", "error", err)
		return nil, fmt.Errorf("%w: %v", scheduling.ErrEmailUnavailable, err)
	}
	f.client = client
	return client, nil
}

// GetEmail implements scheduling.EmailFetcher.
func (f *gmailFetcher) GetEmail(ctx context.Context, id string) (*scheduling.Email, error) {
	client, err := f.getClient()
	if err != nil {
		return nil, err
	}
	msg, err := client.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	return &scheduling.Email{
		ID:      msg.ID,
		Subject: msg.Subject,
		Body:    msg.Body,
		From:    msg.From,
	}, nil
}
