package report

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/harrison/fragility/internal/models"
)

// ParsedReport is the data recovered from a text report
type ParsedReport struct {
	TotalEvents   int64
	Score         models.Score
	ScoreText     string
	Label         models.Label
	SkippedRows   int
	SkippedEvents int
	Tally         models.ActionTally
}

// ErrNotAReport is returned when the text lacks the report title
var ErrNotAReport = errors.New("text is not a fragility report")

// ParseText recovers totals, score, label and per-action counts from a report
// produced by RenderText. Reports written by the earlier Python tooling have
// no skipped-row lines, spell the empty label "NO DATA" and name the source
// table in the empty-counts line; they parse with zero skip counts.
func ParseText(text string) (*ParsedReport, error) {
	sc := bufio.NewScanner(strings.NewReader(text))
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != Title {
		return nil, ErrNotAReport
	}

	p := &ParsedReport{}
	var seen struct{ total, score, label bool }
	inCounts := false

	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			inCounts = false
			continue
		case trimmed == headerCounts:
			inCounts = true
			continue
		case trimmed == headerInterp:
			inCounts = false
			continue
		}

		if inCounts {
			if strings.HasPrefix(trimmed, noEventsPrefix) {
				continue
			}
			item, ok := strings.CutPrefix(trimmed, "- ")
			if !ok {
				return nil, fmt.Errorf("malformed count line %q", line)
			}
			sep := strings.LastIndex(item, ":")
			if sep < 0 {
				return nil, fmt.Errorf("malformed count line %q", line)
			}
			n, err := strconv.ParseInt(strings.TrimSpace(item[sep+1:]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("count in %q: %w", line, err)
			}
			p.Tally = append(p.Tally, models.ActionCount{Action: item[:sep], Count: n})
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case keyTotalEvents:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("total events %q: %w", value, err)
			}
			p.TotalEvents = n
			seen.total = true
		case keyScore:
			p.ScoreText = value
			seen.score = true
			if strings.HasPrefix(value, "N/A") {
				p.Score = models.Absent
				break
			}
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("fragility score %q: %w", value, err)
			}
			p.Score = models.Present(v)
		case keyLabel:
			p.Label = models.ParseLabel(value)
			if !p.Label.Valid() {
				return nil, fmt.Errorf("unknown classification %q", value)
			}
			seen.label = true
		case keySkipped:
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("skipped rows %q: %w", value, err)
			}
			p.SkippedRows = n
		case keySkippedEvts:
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("skipped event rows %q: %w", value, err)
			}
			p.SkippedEvents = n
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan report: %w", err)
	}
	if !seen.total || !seen.score || !seen.label {
		return nil, fmt.Errorf("report is missing required lines")
	}
	return p, nil
}
