package slot

import (
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
)

const labelLayout = "03:04 PM"

// Label is a validated slot time.
type Label struct {
	Text   string
	Minute int
}

var labelLayouts = []string{labelLayout, "3:04 PM", "15:04"}

// ParseTimeLabel accepts "09:00 AM", "9:00 am" or "09:00" and returns the
// canonical "hh:mm AM/PM" form.
func ParseTimeLabel(s string) (Label, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range labelLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return Label{
			Text:   t.Format(labelLayout),
			Minute: t.Hour()*60 + t.Minute(),
		}, nil
	}
	return Label{}, apperr.Validation(fmt.Sprintf("invalid time format %q, use HH:MM AM/PM", s))
}

// ParseTimeLabels parses every label and drops repeats, keeping order.
func ParseTimeLabels(in []string) ([]Label, error) {
	seen := make(map[string]bool, len(in))
	out := make([]Label, 0, len(in))
	for _, s := range in {
		l, err := ParseTimeLabel(s)
		if err != nil {
			return nil, err
		}
		if seen[l.Text] {
			continue
		}
		seen[l.Text] = true
		out = append(out, l)
	}
	return out, nil
}

// DefaultTimes is the clinic day: 09:00 AM to 12:00 PM and 02:00 PM to
// 05:00 PM, every 30 minutes.
func DefaultTimes() []string {
	var out []string
	add := func(fromMin, toMin int) {
		for m := fromMin; m <= toMin; m += 30 {
			t := time.Date(0, 1, 1, m/60, m%60, 0, 0, time.UTC)
			out = append(out, t.Format(labelLayout))
		}
	}
	add(9*60, 12*60)
	add(14*60, 17*60)
	return out
}
