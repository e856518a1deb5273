package models

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is a bar period label (M1, M5, ..., D1)
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D1  Timeframe = "D1"
)

// ParseTimeframe normalizes and validates a timeframe label.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	switch tf {
	case M1, M5, M15, M30, H1, H4, D1:
		return tf, nil
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// Seconds returns the bar length in seconds; unknown labels count as M5.
func (tf Timeframe) Seconds() int {
	switch tf {
	case M1:
		return 60
	case M5:
		return 300
	case M15:
		return 900
	case M30:
		return 1800
	case H1:
		return 3600
	case H4:
		return 14400
	case D1:
		return 86400
	}
	return 300
}

// Duration returns the bar length.
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf.Seconds()) * time.Second
}

// Interval returns the REST interval name used by candle APIs.
func (tf Timeframe) Interval() string {
	switch tf {
	case M1:
		return "1min"
	case M5:
		return "5min"
	case M15:
		return "15min"
	case M30:
		return "30min"
	case H1:
		return "1h"
	case H4:
		return "4h"
	case D1:
		return "1day"
	}
	return "5min"
}

// BarsForDays estimates how many bars cover the given number of days, with a buffer.
func (tf Timeframe) BarsForDays(days int) int {
	if days < 1 {
		days = 1
	}
	perDay := 86400 / tf.Seconds()
	if perDay < 1 {
		perDay = 1
	}
	return int(float64(perDay) * float64(days) * 1.1)
}

// BarOpen truncates t to the start of the bar that contains it.
func (tf Timeframe) BarOpen(t time.Time) time.Time {
	return t.Truncate(tf.Duration())
}
