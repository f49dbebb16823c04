package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/bsecurity/rosterwatch/internal/utils"
)

const USER_AGENT = "Mozilla/5.0 (X11; Linux x86_64; rv:82.0) Gecko/20100101 Firefox/82.0"

// Element IDs and postback targets of the self-service roster portal. These
// are an external contract: when the portal markup changes, these break.
const (
	idPersonnelID = "ctl00_ContentPlaceHolder1_txtPersonnelId"
	idPassword    = "ctl00_ContentPlaceHolder1_txtPassword"
	idMonthLabel  = "ctl00_ContentPlaceHolder1_calendar_lblCurrentMonth"
	idNextMonth   = "ctl00_ContentPlaceHolder1_calendar_lnkNextMonth"
	cellIDPrefix  = "ctl00_ContentPlaceHolder1_calendar_DateCell"

	fieldPersonnelID = "ctl00$ContentPlaceHolder1$txtPersonnelId"
	fieldPassword    = "ctl00$ContentPlaceHolder1$txtPassword"
	targetNextMonth  = "ctl00$ContentPlaceHolder1$calendar$lnkNextMonth"

	labelPollInterval = 500 * time.Millisecond
)

var (
	ErrFieldNotFound   = errors.New("portal: login field not found")
	ErrNoLandingPage   = errors.New("portal: roster page did not load after login")
	ErrControlNotFound = errors.New("portal: next month control not found")
	ErrMonthNotReached = errors.New("portal: month label did not update in time")
	ErrCellNotFound    = errors.New("portal: day cell not found")
)

// Session is what the orchestrator needs from one portal login. Exactly one
// session is live at a time; it is never reused across retry attempts.
type Session interface {
	Login(ctx context.Context) error
	MonthLabel(ctx context.Context) (string, error)
	AdvanceMonth(ctx context.Context, wantLabel string) error
	DayCellText(ctx context.Context, index int) (string, error)
	Close() error
}

type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
	Proxy    string
}

// Client drives the portal over HTTP: the login form, the WebForms postback
// that advances the calendar, and the per-day cell lookups.
type Client struct {
	cfg     Config
	http    *retryablehttp.Client
	page    *goquery.Document
	pageURL *url.URL
}

func New(cfg Config) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = stdlog.New(io.Discard, "", 0)
	retryClient.RetryMax = 3
	retryClient.HTTPClient.Jar = jar
	retryClient.HTTPClient.Timeout = cfg.Timeout

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		retryClient.HTTPClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		}
	}

	return &Client{cfg: cfg, http: retryClient}, nil
}

// Login loads the login page, submits credentials, and confirms the roster
// landing page by the presence of the current-month label. A missing
// credential field or a landing page without the label is fatal to the run.
func (c *Client) Login(ctx context.Context) error {
	doc, finalURL, err := c.get(ctx, c.cfg.URL)
	if err != nil {
		return fmt.Errorf("portal: loading login page: %w", err)
	}

	if doc.Find("#" + idPersonnelID).Length() == 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, idPersonnelID)
	}
	if doc.Find("#" + idPassword).Length() == 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, idPassword)
	}

	form := hiddenFields(doc)
	form.Set(fieldPersonnelID, c.cfg.Username)
	form.Set(fieldPassword, c.cfg.Password)

	landing, landingURL, err := c.postForm(ctx, formAction(doc, finalURL), form)
	if err != nil {
		return fmt.Errorf("portal: submitting login form: %w", err)
	}
	if landing.Find("#" + idMonthLabel).Length() == 0 {
		return ErrNoLandingPage
	}

	c.page = landing
	c.pageURL = landingURL
	utils.Log.Debug("Login successful, roster page loaded")
	return nil
}

// MonthLabel returns the currently displayed "Month Year" text.
func (c *Client) MonthLabel(ctx context.Context) (string, error) {
	if c.page == nil {
		return "", ErrNoLandingPage
	}
	label := strings.TrimSpace(c.page.Find("#" + idMonthLabel).Text())
	if label == "" {
		return "", ErrNoLandingPage
	}
	return label, nil
}

// AdvanceMonth fires the next-month postback and waits, bounded by the
// configured timeout, for the displayed label to become wantLabel. The
// calendar only moves one month per call.
func (c *Client) AdvanceMonth(ctx context.Context, wantLabel string) error {
	if c.page == nil {
		return ErrNoLandingPage
	}
	if c.page.Find("#" + idNextMonth).Length() == 0 {
		return ErrControlNotFound
	}

	form := hiddenFields(c.page)
	form.Set("__EVENTTARGET", targetNextMonth)
	form.Set("__EVENTARGUMENT", "")

	doc, docURL, err := c.postForm(ctx, c.pageURL, form)
	if err != nil {
		return fmt.Errorf("portal: next month postback: %w", err)
	}
	c.page = doc
	c.pageURL = docURL

	deadline := time.Now().Add(c.cfg.Timeout)
	for {
		label, err := c.MonthLabel(ctx)
		if err != nil {
			return err
		}
		if label == wantLabel {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: displaying %q, want %q", ErrMonthNotReached, label, wantLabel)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(labelPollInterval):
		}
		doc, docURL, err = c.get(ctx, c.pageURL.String())
		if err != nil {
			return fmt.Errorf("portal: refreshing calendar: %w", err)
		}
		c.page = doc
		c.pageURL = docURL
	}
}

// DayCellText returns the content of the DateCell with the given index. The
// inner markup is kept so multi-shift cells retain their line structure.
func (c *Client) DayCellText(ctx context.Context, index int) (string, error) {
	if c.page == nil {
		return "", ErrNoLandingPage
	}
	sel := c.page.Find("#" + cellIDPrefix + strconv.Itoa(index))
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s%d", ErrCellNotFound, cellIDPrefix, index)
	}
	content, err := sel.Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// Close tears the session down. The portal has no logout endpoint worth
// hitting; dropping the cookie jar and idle connections is enough.
func (c *Client) Close() error {
	c.page = nil
	c.pageURL = nil
	c.http.HTTPClient.CloseIdleConnections()
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*goquery.Document, *url.URL, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	return c.do(req.WithContext(ctx))
}

func (c *Client) postForm(ctx context.Context, dest *url.URL, form url.Values) (*goquery.Document, *url.URL, error) {
	if dest == nil {
		return nil, nil, ErrNoLandingPage
	}
	req, err := retryablehttp.NewRequest(http.MethodPost, dest.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req.WithContext(ctx))
}

func (c *Client) do(req *retryablehttp.Request) (*goquery.Document, *url.URL, error) {
	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept-Language", "en")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, nil, fmt.Errorf("portal: unexpected status %d for %s", resp.StatusCode, req.URL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return doc, resp.Request.URL, nil
}
