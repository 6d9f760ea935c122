package enums

import (
	"fmt"
	"strings"
)

// HistoryWindow filters the order history by age.
type HistoryWindow string

const (
	HistoryWindowAll     HistoryWindow = "todos"
	HistoryWindowToday   HistoryWindow = "hoy"
	HistoryWindowWeek    HistoryWindow = "7dias"
	HistoryWindowMonth   HistoryWindow = "30dias"
	HistoryWindowQuarter HistoryWindow = "90dias"
)

var validHistoryWindows = []HistoryWindow{
	HistoryWindowAll,
	HistoryWindowToday,
	HistoryWindowWeek,
	HistoryWindowMonth,
	HistoryWindowQuarter,
}

// MaxDays returns the inclusive day difference admitted by the window, or -1 for no limit.
func (w HistoryWindow) MaxDays() int {
	switch w {
	case HistoryWindowToday:
		return 0
	case HistoryWindowWeek:
		return 7
	case HistoryWindowMonth:
		return 30
	case HistoryWindowQuarter:
		return 90
	}
	return -1
}

// IsValid reports whether the value is a known HistoryWindow.
func (w HistoryWindow) IsValid() bool {
	for _, candidate := range validHistoryWindows {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseHistoryWindow converts raw input into a HistoryWindow; empty input means all.
func ParseHistoryWindow(value string) (HistoryWindow, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return HistoryWindowAll, nil
	}
	for _, candidate := range validHistoryWindows {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid history window %q", value)
}
