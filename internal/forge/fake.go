package forge

import (
	"context"
	"sync"

	"github.com/antigravity-dev/lex-pr-runner/internal/loader"
)

// Fake is an in-memory stand-in satisfying both loader.ForgeQuerier and
// autopilot.ForgeClient, for tests that don't want a live GitHub call.
// Zero value is ready to use.
type Fake struct {
	mu sync.Mutex

	PRs []loader.ForgePR

	Comments []FakeCall
	Statuses []FakeCall
	Closed   []FakeCall

	QueryErr   error
	CommentErr error
	StatusErr  error
	CloseErr   error
}

// FakeCall records one invocation against an item.
type FakeCall struct {
	Item string
	Text string
}

func (f *Fake) QueryOpenPRs(_ context.Context, _ string, _, _ []string) ([]loader.ForgePR, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	out := make([]loader.ForgePR, len(f.PRs))
	copy(out, f.PRs)
	return out, nil
}

func (f *Fake) PostComment(_ context.Context, item, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CommentErr != nil {
		return f.CommentErr
	}
	f.Comments = append(f.Comments, FakeCall{Item: item, Text: comment})
	return nil
}

func (f *Fake) PostStatus(_ context.Context, item, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StatusErr != nil {
		return f.StatusErr
	}
	f.Statuses = append(f.Statuses, FakeCall{Item: item, Text: status})
	return nil
}

func (f *Fake) ClosePR(_ context.Context, item, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CloseErr != nil {
		return f.CloseErr
	}
	f.Closed = append(f.Closed, FakeCall{Item: item, Text: comment})
	return nil
}
