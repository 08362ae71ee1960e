// Package web wraps the browser-automation session the miner runs
// against. The core treats the browser as an opaque capability: locate
// an element with a timeout, read text, click, navigate, open and close
// tabs. Driver is that capability; Navigator builds the feed-walking and
// scoped-tab discipline on top of it.
package web

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned (possibly wrapped) by Locate and LocateAll
// when the selector matches nothing within the timeout.
var ErrNotFound = errors.New("element not found")

// Tab identifies a browser window handle.
type Tab string

// Driver is the browser-automation capability. Selectors starting with
// "//" are XPath, anything else is a CSS selector. All operations act on
// the currently focused tab except the tab-management calls themselves.
type Driver interface {
	Locate(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	LocateAll(ctx context.Context, selector string, timeout time.Duration) ([]Element, error)
	OpenTab(ctx context.Context) (Tab, error)
	SwitchTo(ctx context.Context, tab Tab) error
	CloseTab(ctx context.Context, tab Tab) error
	Navigate(ctx context.Context, url string) error
	ScrollToBottom(ctx context.Context) error
}

// Element is a located DOM element.
type Element interface {
	Text(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	Attr(ctx context.Context, name string) (string, error)
}
