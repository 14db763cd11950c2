// Package schedule triggers watcher cycles either on a fixed interval
// (measured from the end of the previous cycle) or on a cron expression.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Kind int

const (
	KindInterval Kind = iota
	KindCron
)

func (k Kind) String() string {
	if k == KindCron {
		return "cron"
	}
	return "interval"
}

// Spec is a parsed trigger.
//
// Accepted forms:
//   - cron: "*/5 * * * *", "@hourly", "@every 3m", or "cron:<expr>"
//   - interval: "3m", "90s", "00:03" (HH:MM), or "every:<interval>"
type Spec struct {
	Kind   Kind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm" | "seconds"
}

func (s Spec) String() string {
	if s.Kind == KindCron {
		return "cron " + s.Cron
	}
	return "every " + s.Every.String()
}

var (
	reHHMM = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)

	cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Every returns an interval spec from a number of seconds.
func Every(seconds int) (Spec, error) {
	if seconds <= 0 {
		return Spec{}, errors.New("interval must be > 0")
	}
	return Spec{Kind: KindInterval, Every: time.Duration(seconds) * time.Second, Source: "seconds"}, nil
}

// Parse parses a trigger string. Cron expressions are validated.
func Parse(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, errors.New("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseInterval(strings.TrimSpace(s[len("every:"):]))
	case strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t"):
		return parseCron(s)
	default:
		return parseInterval(s)
	}
}

func parseCron(expr string) (Spec, error) {
	if expr == "" {
		return Spec{}, errors.New("cron expression required")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return Spec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Spec{Kind: KindCron, Cron: expr, Source: "cron"}, nil
}

func parseInterval(v string) (Spec, error) {
	if v == "" {
		return Spec{}, errors.New("interval required")
	}
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Spec{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return Spec{}, errors.New("interval must be > 0")
		}
		return Spec{Kind: KindInterval, Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid schedule %q (use cron like '*/5 * * * *', HH:MM like '00:03', or a duration like '3m')", v)
	}
	if d <= 0 {
		return Spec{}, errors.New("interval must be > 0")
	}
	return Spec{Kind: KindInterval, Every: d, Source: "duration"}, nil
}
