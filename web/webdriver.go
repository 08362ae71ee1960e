package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// w3cElementKey is the W3C WebDriver element identifier property.
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// WebDriver is a minimal W3C WebDriver wire client implementing Driver
// against an existing, already authenticated session (login and 2FA are
// handled outside the miner). Locate polls the remote end until the
// timeout expires, mirroring an explicit wait.
type WebDriver struct {
	base    string
	session string
	client  *http.Client

	// PollInterval spaces the find-element polls inside a Locate wait.
	PollInterval time.Duration
}

// NewWebDriver returns a client for the session at a WebDriver remote
// end, e.g. NewWebDriver("http://localhost:9515", sessionID).
func NewWebDriver(baseURL, sessionID string) *WebDriver {
	return &WebDriver{
		base:         strings.TrimRight(baseURL, "/"),
		session:      sessionID,
		client:       &http.Client{Timeout: 30 * time.Second},
		PollInterval: 250 * time.Millisecond,
	}
}

type wdError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (wd *WebDriver) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(encoded)
	} else if method == http.MethodPost {
		// chromedriver insists on a JSON body for every POST
		reqBody = strings.NewReader("{}")
	}

	req, err := http.NewRequestWithContext(ctx, method, wd.base+"/session/"+wd.session+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := wd.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var failure struct {
			Value wdError `json:"value"`
		}
		if json.Unmarshal(raw, &failure) == nil && failure.Value.Error != "" {
			return fmt.Errorf("webdriver %s %s: %s: %s", method, path, failure.Value.Error, failure.Value.Message)
		}
		return fmt.Errorf("webdriver %s %s: HTTP %d", method, path, resp.StatusCode)
	}

	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func selectorStrategy(selector string) (using, value string) {
	if strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(") {
		return "xpath", selector
	}
	return "css selector", selector
}

// Locate finds the first element matching selector, polling until the
// timeout expires. A miss is ErrNotFound.
func (wd *WebDriver) Locate(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	using, value := selectorStrategy(selector)
	deadline := time.Now().Add(timeout)
	for {
		var found struct {
			Value map[string]string `json:"value"`
		}
		err := wd.do(ctx, http.MethodPost, "/element",
			map[string]string{"using": using, "value": value}, &found)
		if err == nil {
			if id := found.Value[w3cElementKey]; id != "" {
				return &wdElement{wd: wd, id: id}, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s after %s", ErrNotFound, selector, timeout)
		}
		select {
		case <-time.After(wd.PollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// LocateAll finds every element matching selector, polling until at
// least one appears or the timeout expires.
func (wd *WebDriver) LocateAll(ctx context.Context, selector string, timeout time.Duration) ([]Element, error) {
	using, value := selectorStrategy(selector)
	deadline := time.Now().Add(timeout)
	for {
		var found struct {
			Value []map[string]string `json:"value"`
		}
		err := wd.do(ctx, http.MethodPost, "/elements",
			map[string]string{"using": using, "value": value}, &found)
		if err == nil && len(found.Value) > 0 {
			elements := make([]Element, 0, len(found.Value))
			for _, entry := range found.Value {
				if id := entry[w3cElementKey]; id != "" {
					elements = append(elements, &wdElement{wd: wd, id: id})
				}
			}
			return elements, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s after %s", ErrNotFound, selector, timeout)
		}
		select {
		case <-time.After(wd.PollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// CurrentTab returns the focused window handle. Callers use it to
// record the list view's tab before any detail walking starts.
func (wd *WebDriver) CurrentTab(ctx context.Context) (Tab, error) {
	var resp struct {
		Value string `json:"value"`
	}
	if err := wd.do(ctx, http.MethodGet, "/window", nil, &resp); err != nil {
		return "", err
	}
	return Tab(resp.Value), nil
}

// OpenTab opens a new, unfocused tab and returns its handle.
func (wd *WebDriver) OpenTab(ctx context.Context) (Tab, error) {
	var resp struct {
		Value struct {
			Handle string `json:"handle"`
		} `json:"value"`
	}
	if err := wd.do(ctx, http.MethodPost, "/window/new", map[string]string{"type": "tab"}, &resp); err != nil {
		return "", err
	}
	return Tab(resp.Value.Handle), nil
}

// SwitchTo focuses the given tab.
func (wd *WebDriver) SwitchTo(ctx context.Context, tab Tab) error {
	return wd.do(ctx, http.MethodPost, "/window", map[string]string{"handle": string(tab)}, nil)
}

// CloseTab focuses and closes the given tab. The caller is responsible
// for refocusing afterwards.
func (wd *WebDriver) CloseTab(ctx context.Context, tab Tab) error {
	if err := wd.SwitchTo(ctx, tab); err != nil {
		return err
	}
	return wd.do(ctx, http.MethodDelete, "/window", nil, nil)
}

// Navigate loads url in the focused tab.
func (wd *WebDriver) Navigate(ctx context.Context, url string) error {
	return wd.do(ctx, http.MethodPost, "/url", map[string]string{"url": url}, nil)
}

// ScrollToBottom scrolls the focused tab to the bottom of the document.
func (wd *WebDriver) ScrollToBottom(ctx context.Context) error {
	return wd.do(ctx, http.MethodPost, "/execute/sync", map[string]any{
		"script": "window.scrollTo(0, document.body.scrollHeight);",
		"args":   []any{},
	}, nil)
}

type wdElement struct {
	wd *WebDriver
	id string
}

func (el *wdElement) Text(ctx context.Context) (string, error) {
	var resp struct {
		Value string `json:"value"`
	}
	if err := el.wd.do(ctx, http.MethodGet, "/element/"+el.id+"/text", nil, &resp); err != nil {
		return "", err
	}
	return resp.Value, nil
}

func (el *wdElement) Click(ctx context.Context) error {
	return el.wd.do(ctx, http.MethodPost, "/element/"+el.id+"/click", nil, nil)
}

func (el *wdElement) Attr(ctx context.Context, name string) (string, error) {
	var resp struct {
		Value string `json:"value"`
	}
	if err := el.wd.do(ctx, http.MethodGet, "/element/"+el.id+"/attribute/"+name, nil, &resp); err != nil {
		return "", err
	}
	return resp.Value, nil
}
