package utils

import (
	"strings"
	"sync"
	"time"

	"market-viewer/src/logger"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers session questions for one exchange using scmhub/calendar.
type TradingCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// GetCalendar loads the calendar for a MIC (ISO 10383, e.g. "xetr", "xnys").
// Unknown MICs get a Mon-Fri 09:00-17:30 fallback in UTC.
func GetCalendar(mic string) *TradingCalendar {
	mic = strings.ToLower(strings.TrimSpace(mic))

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		return &TradingCalendar{MIC: mic, Fallback: true, Timezone: time.UTC}
	}

	return &TradingCalendar{MIC: mic, Calendar: cal, Fallback: false, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenAt checks if the market is in session at t.
func (tc *TradingCalendar) IsOpenAt(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}
		minutes := t.Hour()*60 + t.Minute()
		return minutes >= 9*60 && minutes < 17*60+30
	}

	return tc.Calendar.IsOpen(t)
}

// -----------------------------------------------------------------------------
// SessionClock caches one calendar per MIC.
// -----------------------------------------------------------------------------

type SessionClock struct {
	Calendars map[string]*TradingCalendar
	Logger    *logger.Logger
	Now       func() time.Time
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewSessionClock(l *logger.Logger) *SessionClock {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &SessionClock{
		Calendars: make(map[string]*TradingCalendar),
		Logger:    l,
		Now:       time.Now,
	}
}

// -----------------------------------------------------------------------------

func (sc *SessionClock) calendarFor(mic string) *TradingCalendar {
	key := strings.ToLower(mic)

	sc.mu.RLock()
	cal, ok := sc.Calendars[key]
	sc.mu.RUnlock()
	if ok {
		return cal
	}

	cal = GetCalendar(key)
	if cal.Fallback {
		sc.Logger.Warning("SessionClock: no calendar for MIC '%s', using weekday fallback", mic)
	}

	sc.mu.Lock()
	sc.Calendars[key] = cal
	sc.mu.Unlock()
	return cal
}

// -----------------------------------------------------------------------------

// IsOpen reports the session state for mic. It returns nil when mic is empty,
// which callers treat as "no session information" (crypto, OTC).
func (sc *SessionClock) IsOpen(mic string) *bool {
	if strings.TrimSpace(mic) == "" {
		return nil
	}
	open := sc.calendarFor(mic).IsOpenAt(sc.Now().UTC())
	return &open
}
