// internal/models/filters.go
package models

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Filters scope every query of a request. Segment and Channel are optional;
// "" and "All" both mean no filter.
type Filters struct {
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
	Segment  string `json:"segment,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// WithDefaults fills a missing date range.
func (f Filters) WithDefaults(dateFrom, dateTo string) Filters {
	if strings.TrimSpace(f.DateFrom) == "" {
		f.DateFrom = dateFrom
	}
	if strings.TrimSpace(f.DateTo) == "" {
		f.DateTo = dateTo
	}
	return f
}

// Validate checks both dates parse as YYYY-MM-DD.
func (f Filters) Validate() error {
	if _, err := time.Parse(DateLayout, f.DateFrom); err != nil {
		return fmt.Errorf("date_from %q is not a YYYY-MM-DD date", f.DateFrom)
	}
	if _, err := time.Parse(DateLayout, f.DateTo); err != nil {
		return fmt.Errorf("date_to %q is not a YYYY-MM-DD date", f.DateTo)
	}
	return nil
}

// ActiveSegment returns the segment value, or "" when no segment filter applies.
func (f Filters) ActiveSegment() string {
	return activeValue(f.Segment)
}

// ActiveChannel returns the channel value, or "" when no channel filter applies.
func (f Filters) ActiveChannel() string {
	return activeValue(f.Channel)
}

func activeValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || v == "All" {
		return ""
	}
	return v
}

// Params returns the bound parameters: both dates, plus segment and channel
// when active.
func (f Filters) Params() map[string]interface{} {
	params := map[string]interface{}{
		"date_from": f.DateFrom,
		"date_to":   f.DateTo,
	}
	if s := f.ActiveSegment(); s != "" {
		params["segment"] = s
	}
	if c := f.ActiveChannel(); c != "" {
		params["channel"] = c
	}
	return params
}

// Describe renders the filters for prompts, e.g. "Segment: Prime".
func (f Filters) Describe() string {
	segment := f.ActiveSegment()
	if segment == "" {
		segment = "All"
	}
	channel := f.ActiveChannel()
	if channel == "" {
		channel = "All"
	}
	return fmt.Sprintf("Date Range: %s to %s, Segment: %s, Channel: %s", f.DateFrom, f.DateTo, segment, channel)
}
