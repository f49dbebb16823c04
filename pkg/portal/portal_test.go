package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const loginPage = `<html><body>
<form action="Default.aspx" method="post">
<input type="hidden" name="__VIEWSTATE" value="vs123"/>
<input type="hidden" name="__EVENTVALIDATION" value="ev456"/>
<input type="text" id="ctl00_ContentPlaceHolder1_txtPersonnelId" name="ctl00$ContentPlaceHolder1$txtPersonnelId"/>
<input type="password" id="ctl00_ContentPlaceHolder1_txtPassword" name="ctl00$ContentPlaceHolder1$txtPassword"/>
</form></body></html>`

func rosterPage(label string, cells map[int]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><form action="Default.aspx" method="post">`)
	b.WriteString(`<input type="hidden" name="__VIEWSTATE" value="vs789"/>`)
	b.WriteString(`<span id="ctl00_ContentPlaceHolder1_calendar_lblCurrentMonth">` + label + `</span>`)
	b.WriteString(`<a id="ctl00_ContentPlaceHolder1_calendar_lnkNextMonth" href="#">&gt;</a>`)
	for idx, content := range cells {
		fmt.Fprintf(&b, `<td id="ctl00_ContentPlaceHolder1_calendar_DateCell%d">%s</td>`, idx, content)
	}
	b.WriteString(`</form></body></html>`)
	return b.String()
}

// fakePortal serves a minimal WebForms-style portal: a login form, then a
// calendar that advances one month per postback.
type fakePortal struct {
	month    int
	labels   []string
	cells    map[int]string
	loggedIn bool
}

func (p *fakePortal) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if !p.loggedIn {
				fmt.Fprint(w, loginPage)
				return
			}
			fmt.Fprint(w, rosterPage(p.labels[p.month], p.cells))
			return
		}

		_ = r.ParseForm()
		if r.PostFormValue("ctl00$ContentPlaceHolder1$txtPersonnelId") != "" {
			p.loggedIn = true
		}
		if r.PostFormValue("__EVENTTARGET") == "ctl00$ContentPlaceHolder1$calendar$lnkNextMonth" {
			if p.month < len(p.labels)-1 {
				p.month++
			}
		}
		fmt.Fprint(w, rosterPage(p.labels[p.month], p.cells))
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{
		URL:      srv.URL,
		Username: "12345",
		Password: "hunter2",
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestLoginAndReadCalendar(t *testing.T) {
	p := &fakePortal{
		labels: []string{"September 2024", "October 2024"},
		cells:  map[int]string{6: "D0600-1400 (8)<br/>N2200-0600 (8)", 7: "&nbsp;"},
	}
	srv := httptest.NewServer(p.handler())
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx := context.Background()

	if err := c.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	label, err := c.MonthLabel(ctx)
	if err != nil {
		t.Fatalf("MonthLabel: %v", err)
	}
	if label != "September 2024" {
		t.Fatalf("label = %q, want September 2024", label)
	}

	cell, err := c.DayCellText(ctx, 6)
	if err != nil {
		t.Fatalf("DayCellText: %v", err)
	}
	if !strings.Contains(cell, "D0600-1400 (8)") {
		t.Fatalf("unexpected cell content: %q", cell)
	}
}

func TestAdvanceMonth(t *testing.T) {
	p := &fakePortal{
		labels: []string{"September 2024", "October 2024"},
		cells:  map[int]string{},
	}
	srv := httptest.NewServer(p.handler())
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx := context.Background()

	if err := c.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := c.AdvanceMonth(ctx, "October 2024"); err != nil {
		t.Fatalf("AdvanceMonth: %v", err)
	}
	label, err := c.MonthLabel(ctx)
	if err != nil {
		t.Fatalf("MonthLabel: %v", err)
	}
	if label != "October 2024" {
		t.Fatalf("label = %q, want October 2024", label)
	}
}

func TestAdvanceMonthTimesOutOnStuckLabel(t *testing.T) {
	p := &fakePortal{
		labels: []string{"September 2024"}, // never advances
		cells:  map[int]string{},
	}
	srv := httptest.NewServer(p.handler())
	defer srv.Close()

	c := newTestClient(t, srv)
	c.cfg.Timeout = 700 * time.Millisecond
	ctx := context.Background()

	if err := c.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	err := c.AdvanceMonth(ctx, "October 2024")
	if !errors.Is(err, ErrMonthNotReached) {
		t.Fatalf("expected ErrMonthNotReached, got %v", err)
	}
}

func TestLoginFailsWithoutCredentialFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>maintenance page</body></html>`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.Login(context.Background())
	if !errors.Is(err, ErrFieldNotFound) {
		t.Fatalf("expected ErrFieldNotFound, got %v", err)
	}
}

func TestLoginFailsWithoutLandingPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Login form is served, but the post never reaches the calendar.
		fmt.Fprint(w, loginPage)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.Login(context.Background())
	if !errors.Is(err, ErrNoLandingPage) {
		t.Fatalf("expected ErrNoLandingPage, got %v", err)
	}
}

func TestDayCellTextMissingCell(t *testing.T) {
	p := &fakePortal{
		labels: []string{"September 2024"},
		cells:  map[int]string{3: "x"},
	}
	srv := httptest.NewServer(p.handler())
	defer srv.Close()

	c := newTestClient(t, srv)
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	_, err := c.DayCellText(context.Background(), 99)
	if !errors.Is(err, ErrCellNotFound) {
		t.Fatalf("expected ErrCellNotFound, got %v", err)
	}
}

func TestHiddenFields(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(loginPage))
	if err != nil {
		t.Fatal(err)
	}
	form := hiddenFields(doc)
	if form.Get("__VIEWSTATE") != "vs123" {
		t.Fatalf("__VIEWSTATE = %q", form.Get("__VIEWSTATE"))
	}
	if form.Get("__EVENTVALIDATION") != "ev456" {
		t.Fatalf("__EVENTVALIDATION = %q", form.Get("__EVENTVALIDATION"))
	}
}

func TestFormActionResolvesRelative(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(loginPage))
	if err != nil {
		t.Fatal(err)
	}
	base, _ := url.Parse("https://portal.example.net/SelfService/Login.aspx")
	got := formAction(doc, base)
	if got.String() != "https://portal.example.net/SelfService/Default.aspx" {
		t.Fatalf("formAction = %q", got.String())
	}
}
