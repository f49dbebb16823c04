package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsecurity/rosterwatch/internal/utils"
	"github.com/bsecurity/rosterwatch/pkg/eventlog"
	"github.com/bsecurity/rosterwatch/pkg/notify"
	"github.com/bsecurity/rosterwatch/pkg/portal"
	"github.com/bsecurity/rosterwatch/pkg/roster"
)

// state is where the orchestrator sits in one program run.
type state int

const (
	stateAuthenticating state = iota
	stateScraping
	stateRetryPending
	stateSuccess
	stateFailed
)

var (
	// ErrRetryLimitReached means every attempt found the roster still
	// provisional.
	ErrRetryLimitReached = errors.New("retry limit reached without a finalized roster")
	// ErrAuthentication means login never produced the roster page.
	ErrAuthentication = errors.New("portal authentication failed")
)

// Recipients maps the notification roles to phone numbers.
type Recipients struct {
	Primary   string
	Secondary string
	Tertiary  string
}

// Config is everything the orchestrator needs besides its collaborators.
// It is passed in explicitly so runs can be exercised with fixtures.
type Config struct {
	Recipients   Recipients
	TertiaryDays []string // lowercase three-letter day names, e.g. "wed"
	// MaxRetries bounds the total authenticate-and-scrape attempts. A
	// non-positive value means no attempts: the run fails before a session
	// is ever opened.
	MaxRetries int
	RetryDelay time.Duration

	// Now and Sleep default to the real clock; tests swap them out.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Orchestrator owns the authenticate-scrape-retry cycle. One fresh portal
// session per attempt, always torn down before the next; the retry counter
// is the only state that survives across attempts.
type Orchestrator struct {
	cfg        Config
	newSession func() (portal.Session, error)
	notifier   notify.Notifier
	events     *eventlog.Emitter

	retries int
}

func New(cfg Config, newSession func() (portal.Session, error), n notify.Notifier, events *eventlog.Emitter) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Orchestrator{
		cfg:        cfg,
		newSession: newSession,
		notifier:   n,
		events:     events,
	}
}

// Run drives the state machine over the planned dates until it reaches
// Success or Failed. A non-nil error means the run failed and the process
// should exit non-zero.
func (o *Orchestrator) Run(ctx context.Context, dates []roster.TargetDate) error {
	var (
		sess    portal.Session
		message string
	)
	st := stateAuthenticating
	if o.cfg.MaxRetries <= 0 {
		st = stateFailed
	}

	for {
		switch st {
		case stateAuthenticating:
			var err error
			sess, err = o.newSession()
			if err != nil {
				o.terminalFailure(ctx, eventlog.KindUnexpectedError, fmt.Sprintf("Could not open portal session: %v", err))
				return err
			}
			if err := sess.Login(ctx); err != nil {
				teardown(sess)
				o.terminalFailure(ctx, eventlog.KindUnexpectedError, fmt.Sprintf("Login failed: %v", err))
				return fmt.Errorf("%w: %v", ErrAuthentication, err)
			}
			st = stateScraping

		case stateScraping:
			var notFinalized bool
			var err error
			message, notFinalized, err = o.scrape(ctx, sess, dates)
			teardown(sess)
			if err != nil {
				o.terminalFailure(ctx, eventlog.KindUnexpectedError, fmt.Sprintf("Scrape aborted: %v", err))
				return err
			}
			if notFinalized {
				st = stateRetryPending
			} else {
				st = stateSuccess
			}

		case stateRetryPending:
			o.retries++
			if o.retries >= o.cfg.MaxRetries {
				st = stateFailed
				continue
			}
			utils.Log.Infof("Roster not finalised. Retry %d/%d in %s", o.retries, o.cfg.MaxRetries, o.cfg.RetryDelay)
			o.cfg.Sleep(o.cfg.RetryDelay)
			st = stateAuthenticating

		case stateSuccess:
			o.deliver(ctx, message)
			return nil

		case stateFailed:
			reason := fmt.Sprintf("Retry limit (%d) reached. Could not retrieve finalized roster information.", o.cfg.MaxRetries)
			o.terminalFailure(ctx, eventlog.KindRetryLimitReached, reason)
			return ErrRetryLimitReached
		}
	}
}

// RetryAttempts reports how many retries this run has consumed.
func (o *Orchestrator) RetryAttempts() int {
	return o.retries
}

// scrape processes every planned date against an authenticated session. It
// returns the accumulated message and whether a provisional roster cut the
// pass short. Navigation and cell-lookup failures skip the date; anything
// else is fatal to the whole run.
func (o *Orchestrator) scrape(ctx context.Context, sess portal.Session, dates []roster.TargetDate) (string, bool, error) {
	var b strings.Builder

	for _, d := range dates {
		label, err := sess.MonthLabel(ctx)
		if err != nil {
			return "", false, err
		}

		if label != d.MonthLabel() {
			utils.Log.Infof("Displaying %s, navigating to %s", label, d.MonthLabel())
			if err := sess.AdvanceMonth(ctx, d.MonthLabel()); err != nil {
				o.skipDate(ctx, d, fmt.Sprintf("Could not navigate to %s: %v", d.MonthLabel(), err))
				continue
			}
		}

		cell, err := sess.DayCellText(ctx, roster.CellIndex(int(d.Month), d.Day))
		if err != nil {
			o.skipDate(ctx, d, fmt.Sprintf("Could not read day cell: %v", err))
			continue
		}

		outcome := roster.Classify(cell, d)
		switch outcome.Kind {
		case roster.NotRostered:
			msg := fmt.Sprintf("Not rostered for (%s) %s.", d.DayName(), d.Slash())
			o.events.Emit(ctx, eventlog.Event{
				Kind:          eventlog.KindSMSSent,
				Content:       msg,
				Day:           d.DayName(),
				Date:          d.ISO(),
				RetryAttempts: o.retries,
			})
			b.WriteString(msg + "\n")

		case roster.NotFinalized:
			msg := fmt.Sprintf("Not finalised for (%s) %s.", d.DayName(), d.Slash())
			o.events.Emit(ctx, eventlog.Event{
				Kind:          eventlog.KindShiftNotFinalised,
				Content:       msg,
				Day:           d.DayName(),
				Date:          d.ISO(),
				RetryAttempts: o.retries,
			})
			b.WriteString(msg + "\n")
			// A provisional day invalidates the whole pass, so remaining
			// dates are not processed on this attempt.
			return b.String(), true, nil

		case roster.Rostered:
			msg := fmt.Sprintf("Hours for (%s) %s are: %s (c) Bsecurity", d.DayName(), d.Slash(), outcome.CellText)
			ev := eventlog.Event{
				Kind:          eventlog.KindSMSSent,
				Content:       msg,
				Day:           d.DayName(),
				Date:          d.ISO(),
				Hours:         outcome.TotalHours,
				RetryAttempts: o.retries,
			}
			if len(outcome.Shifts) > 0 {
				ev.ShiftStart = outcome.Shifts[0].Start
				ev.ShiftEnd = outcome.Shifts[len(outcome.Shifts)-1].End
			}
			o.events.Emit(ctx, ev)
			b.WriteString(msg + "\n")
		}
	}

	return b.String(), false, nil
}

// skipDate records that a date could not be processed on this pass. The date
// is dropped from the message, not retried.
func (o *Orchestrator) skipDate(ctx context.Context, d roster.TargetDate, reason string) {
	o.events.Emit(ctx, eventlog.Event{
		Kind:          eventlog.KindProcessingError,
		Content:       reason + ". Skipping " + d.ISO() + ".",
		Day:           d.DayName(),
		Date:          d.ISO(),
		RetryAttempts: o.retries,
	})
}

// deliver routes the accumulated message: always the primary and secondary
// recipients, plus the tertiary one on its configured weekdays.
func (o *Orchestrator) deliver(ctx context.Context, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		utils.Log.Info("No messages to send")
		return
	}

	recipients := []string{o.cfg.Recipients.Primary, o.cfg.Recipients.Secondary}
	today := strings.ToLower(o.cfg.Now().Format("Mon"))
	if o.cfg.Recipients.Tertiary != "" && contains(o.cfg.TertiaryDays, today) {
		recipients = append(recipients, o.cfg.Recipients.Tertiary)
	}

	if err := o.notifier.Send(ctx, message, recipients); err != nil {
		utils.Log.Errorf("Could not deliver roster message: %v", err)
	}
}

// terminalFailure records the failure and best-effort notifies the primary
// and secondary recipients. Notification errors are logged only.
func (o *Orchestrator) terminalFailure(ctx context.Context, kind eventlog.Kind, reason string) {
	o.events.Emit(ctx, eventlog.Event{
		Kind:          kind,
		Content:       reason,
		RetryAttempts: o.retries,
	})
	recipients := []string{o.cfg.Recipients.Primary, o.cfg.Recipients.Secondary}
	if err := o.notifier.Send(ctx, reason, recipients); err != nil {
		utils.Log.Errorf("Could not deliver failure notification: %v", err)
	}
}

func teardown(sess portal.Session) {
	if err := sess.Close(); err != nil {
		utils.Log.Warnf("Session teardown: %v", err)
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
