package logtail

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Entry is one parsed zerolog JSON line.
type Entry struct {
	Time      time.Time
	Level     string // upper-case: DEBUG, INFO, WARN, ERROR
	Component string
	Message   string
	Details   []Detail
	Raw       string
}

// Detail is a structured field other than the well-known ones.
type Detail struct {
	Label string
	Value string
}

var levelNames = map[string]string{
	"trace": "TRACE",
	"debug": "DEBUG",
	"info":  "INFO",
	"warn":  "WARN",
	"error": "ERROR",
	"fatal": "FATAL",
	"panic": "PANIC",
}

// ParseLine decodes a zerolog JSON line. Lines that are not JSON objects come
// back with only Message and Raw set.
func ParseLine(line string) Entry {
	entry := Entry{Raw: line}
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		entry.Message = trimmed
		return entry
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		entry.Message = trimmed
		return entry
	}

	for key, value := range fields {
		switch key {
		case "time":
			if s, ok := value.(string); ok {
				if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
					entry.Time = ts
				}
			}
		case "level":
			s := fmt.Sprint(value)
			if name, ok := levelNames[strings.ToLower(s)]; ok {
				entry.Level = name
			} else {
				entry.Level = strings.ToUpper(s)
			}
		case "message":
			entry.Message = fmt.Sprint(value)
		case "component":
			entry.Component = fmt.Sprint(value)
		default:
			entry.Details = append(entry.Details, Detail{Label: key, Value: formatValue(value)})
		}
	}
	sort.Slice(entry.Details, func(i, j int) bool {
		return entry.Details[i].Label < entry.Details[j].Label
	})
	return entry
}

// ParseLines parses each line in order.
func ParseLines(lines []string) []Entry {
	if len(lines) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, ParseLine(line))
	}
	return out
}

// Format renders an entry as a header line plus indented detail lines:
//
//	2026-01-02 15:04:05 WARN [session] – frame dropped
//	    - connection_id: 5f0c...
func (e Entry) Format(loc *time.Location) string {
	var parts []string
	if !e.Time.IsZero() {
		if loc == nil {
			loc = time.Local
		}
		parts = append(parts, e.Time.In(loc).Format("2006-01-02 15:04:05"))
	}
	if e.Level != "" {
		parts = append(parts, e.Level)
	}
	if e.Component != "" {
		parts = append(parts, "["+e.Component+"]")
	}
	header := strings.Join(parts, " ")
	if msg := strings.TrimSpace(e.Message); msg != "" {
		if header == "" {
			header = msg
		} else {
			header += " – " + msg
		}
	}
	if len(e.Details) == 0 {
		return header
	}
	var b strings.Builder
	b.WriteString(header)
	for _, d := range e.Details {
		if d.Value == "" {
			continue
		}
		b.WriteString("\n    - ")
		b.WriteString(d.Label)
		b.WriteString(": ")
		b.WriteString(d.Value)
	}
	return b.String()
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
