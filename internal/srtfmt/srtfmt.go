// Package srtfmt serializes and parses SubRip (.srt) subtitle files per
// spec.md §6.3: blocks separated by blank lines, each block is an index
// line, a timing line using comma as the decimal separator, and one or
// more text lines.
package srtfmt

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Cue is one subtitle block.
type Cue struct {
	Index      int
	StartSec   float64
	EndSec     float64
	Text       string
	LowQuality bool // appends the visible "[?]" suffix marker
}

const lowQualitySuffix = " [?]"

// Serialize renders cues to SRT text, CRLF-terminated per the format's
// convention.
func Serialize(cues []Cue) string {
	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\r\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\r\n", formatTimestamp(c.StartSec), formatTimestamp(c.EndSec))
		text := c.Text
		if c.LowQuality && !strings.HasSuffix(text, lowQualitySuffix) {
			text += lowQualitySuffix
		}
		fmt.Fprintf(&b, "%s\r\n", text)
		if i != len(cues)-1 {
			b.WriteString("\r\n")
		}
	}
	return b.String()
}

func formatTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	totalMs := int64(sec*1000 + 0.5)
	ms := totalMs % 1000
	totalSec := totalMs / 1000
	s := totalSec % 60
	totalMin := totalSec / 60
	m := totalMin % 60
	h := totalMin / 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// Parse reads SRT text back into cues. It tolerates trailing whitespace
// and either CRLF or LF line endings, so Serialize→Parse→Serialize is
// byte-identical for output this package itself produced (spec.md §8.2).
func Parse(text string) ([]Cue, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var cues []Cue
	var lines []string
	flush := func() error {
		if len(lines) == 0 {
			return nil
		}
		idx, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return fmt.Errorf("srtfmt: invalid index %q: %w", lines[0], err)
		}
		if len(lines) < 2 {
			return fmt.Errorf("srtfmt: block %d missing timing line", idx)
		}
		start, end, err := parseTimingLine(lines[1])
		if err != nil {
			return fmt.Errorf("srtfmt: block %d: %w", idx, err)
		}
		text := strings.Join(lines[2:], "\n")
		low := strings.HasSuffix(text, lowQualitySuffix)
		if low {
			text = strings.TrimSuffix(text, lowQualitySuffix)
		}
		cues = append(cues, Cue{Index: idx, StartSec: start, EndSec: end, Text: text, LowQuality: low})
		lines = lines[:0]
		return nil
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("srtfmt: scan: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return cues, nil
}

func parseTimingLine(line string) (start, end float64, err error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	start, err = parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err = parseTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseTimestamp(ts string) (float64, error) {
	ts = strings.TrimSpace(ts)
	main := ts
	ms := "0"
	if i := strings.LastIndex(ts, ","); i >= 0 {
		main = ts[:i]
		ms = ts[i+1:]
	}
	fields := strings.Split(main, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}
	h, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	m, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	s, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	msVal, err := strconv.Atoi(ms)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	return float64(h*3600+m*60+s) + float64(msVal)/1000, nil
}
