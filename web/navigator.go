package web

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/plenert/bankmine"
)

// Selectors for the transaction list view of the source site. The feed
// entry anchor carries the detail URL; the load-more control is the
// button titled "Successivo".
const (
	defaultEntrySelector    = "//li/div/p/span/span[1]/a"
	defaultLoadMoreSelector = "//*[@title='Successivo']"
)

// Navigator drives the transaction list view of an already
// authenticated session. It implements the core's Feed and Opener: it
// enumerates entry URLs, reveals older entries, and runs detail-view
// extractions in an auxiliary tab that is always closed again before
// control returns to the list, so tab handles never leak. Every
// navigation passes through a rate limiter to stay polite with the
// source site.
type Navigator struct {
	driver  Driver
	home    Tab
	limiter *rate.Limiter
	log     zerolog.Logger

	entrySelector    string
	loadMoreSelector string
	listWait         time.Duration
}

// NavigatorOption adjusts a Navigator.
type NavigatorOption func(*Navigator)

// WithSelectors overrides the list-view selectors.
func WithSelectors(entry, loadMore string) NavigatorOption {
	return func(n *Navigator) {
		n.entrySelector = entry
		n.loadMoreSelector = loadMore
	}
}

// WithRateLimit caps navigations at r per second.
func WithRateLimit(r rate.Limit) NavigatorOption {
	return func(n *Navigator) { n.limiter = rate.NewLimiter(r, 1) }
}

// WithLogger sets the navigator's logger.
func WithLogger(log zerolog.Logger) NavigatorOption {
	return func(n *Navigator) { n.log = log }
}

// NewNavigator wraps a driver whose current tab, home, shows the
// transaction list view.
func NewNavigator(driver Driver, home Tab, opts ...NavigatorOption) *Navigator {
	n := &Navigator{
		driver:           driver,
		home:             home,
		limiter:          rate.NewLimiter(rate.Every(time.Second), 1),
		log:              zerolog.Nop(),
		entrySelector:    defaultEntrySelector,
		loadMoreSelector: defaultLoadMoreSelector,
		listWait:         10 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Len returns the number of currently revealed feed entries.
func (n *Navigator) Len(ctx context.Context) (int, error) {
	entries, err := n.entries(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// URL returns the detail URL of the entry at index, newest first.
func (n *Navigator) URL(ctx context.Context, index int) (string, error) {
	entries, err := n.entries(ctx)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(entries) {
		return "", fmt.Errorf("feed entry %d out of range (%d revealed)", index, len(entries))
	}
	href, err := entries[index].Attr(ctx, "href")
	if err != nil {
		return "", fmt.Errorf("feed entry %d: %w", index, err)
	}
	return href, nil
}

func (n *Navigator) entries(ctx context.Context) ([]Element, error) {
	entries, err := n.driver.LocateAll(ctx, n.entrySelector, n.listWait)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return entries, err
}

// LoadMore clicks the load-more control and scrolls the list to the
// bottom, reporting whether older entries were revealed. A missing
// control means the end of the retrievable feed.
func (n *Navigator) LoadMore(ctx context.Context) (bool, error) {
	before, err := n.Len(ctx)
	if err != nil {
		return false, err
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return false, err
	}
	button, err := n.driver.Locate(ctx, n.loadMoreSelector, n.listWait)
	if errors.Is(err, ErrNotFound) {
		n.log.Debug().Msg("load-more control absent, end of retrievable feed")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := button.Click(ctx); err != nil {
		return false, err
	}
	if err := n.driver.ScrollToBottom(ctx); err != nil {
		return false, err
	}

	after, err := n.Len(ctx)
	if err != nil {
		return false, err
	}
	n.log.Debug().Int("before", before).Int("after", after).Msg("loaded more feed entries")
	return after > before, nil
}

// VisitDetail opens url in an auxiliary tab, runs fn against the loaded
// detail view, and always closes the tab and refocuses the list view,
// whether fn succeeded or not. Exactly one auxiliary tab exists at a
// time.
func (n *Navigator) VisitDetail(ctx context.Context, url string, fn func(bankmine.View) error) (err error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	tab, err := n.driver.OpenTab(ctx)
	if err != nil {
		return fmt.Errorf("open detail tab: %w", err)
	}
	defer func() {
		if cerr := n.driver.CloseTab(ctx, tab); cerr != nil && err == nil {
			err = fmt.Errorf("close detail tab: %w", cerr)
		}
		if serr := n.driver.SwitchTo(ctx, n.home); serr != nil && err == nil {
			err = fmt.Errorf("refocus list view: %w", serr)
		}
	}()

	if err := n.driver.SwitchTo(ctx, tab); err != nil {
		return fmt.Errorf("focus detail tab: %w", err)
	}
	if err := n.driver.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}

	return fn(&detailView{driver: n.driver})
}

// detailView adapts the focused tab to the core's View contract.
type detailView struct {
	driver Driver
}

func (v *detailView) Text(ctx context.Context, selector string, wait time.Duration) (string, error) {
	el, err := v.driver.Locate(ctx, selector, wait)
	if errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("%s: %w", selector, bankmine.ErrElementAbsent)
	}
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

func (v *detailView) Texts(ctx context.Context, selector string, wait time.Duration) ([]string, error) {
	els, err := v.driver.LocateAll(ctx, selector, wait)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", selector, bankmine.ErrElementAbsent)
	}
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, nil
}
