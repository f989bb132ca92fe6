package tools

import (
	"context"
	"fmt"
	"time"
)

var weekdayNames = map[time.Weekday]string{
	time.Sunday:    "星期日",
	time.Monday:    "星期一",
	time.Tuesday:   "星期二",
	time.Wednesday: "星期三",
	time.Thursday:  "星期四",
	time.Friday:    "星期五",
	time.Saturday:  "星期六",
}

// TimeProvider answers "what time is it" from the local clock, honoring an
// optional IANA timezone argument.
type TimeProvider struct {
	now func() time.Time
}

// NewTimeProvider builds the provider with the real clock.
func NewTimeProvider() *TimeProvider {
	return &TimeProvider{now: time.Now}
}

func (p *TimeProvider) Kind() string { return "time_info" }

// Invoke accepts an optional args["timezone"] (e.g. "Asia/Shanghai").
func (p *TimeProvider) Invoke(_ context.Context, args map[string]string) Result {
	now := p.now()
	tzName := "本地时区"
	if tz := args["timezone"]; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Fail(fmt.Sprintf("unknown timezone %q", tz))
		}
		now = now.In(loc)
		tzName = tz
	}
	return Ok(map[string]interface{}{
		"time":     now.Format("2006-01-02 15:04:05"),
		"timezone": tzName,
	})
}

// DateProvider answers "what day is it" from the local clock.
type DateProvider struct {
	now func() time.Time
}

// NewDateProvider builds the provider with the real clock.
func NewDateProvider() *DateProvider {
	return &DateProvider{now: time.Now}
}

func (p *DateProvider) Kind() string { return "date_info" }

func (p *DateProvider) Invoke(_ context.Context, args map[string]string) Result {
	now := p.now()
	if tz := args["timezone"]; tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			now = now.In(loc)
		}
	}
	return Ok(map[string]interface{}{
		"date":    now.Format("2006-01-02"),
		"weekday": weekdayNames[now.Weekday()],
	})
}
