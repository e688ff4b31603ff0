// Package background implements the beatmap background-image cache: a
// two-stage load (metadata scan, then image decode+upload) because a
// beatmap's background filename lives inside a text section of its .osu
// file and must be parsed out before the image itself can be fetched.
package background

import (
	"bufio"
	"os"
	"strings"

	"github.com/kiwec/neosu-sub001/errors"
)

// sectionBoundary lines that, once seen after [Events], mean the filename
// was never found (or there is none) and the scan should stop.
var sectionBoundary = map[string]bool{
	"[TimingPoints]": true,
	"[Colours]":      true,
	"[HitObjects]":   true,
}

// linesPerInterruptCheck mirrors the 64-line chunking the contract
// specifies for polling the interrupt flag during the scan.
const linesPerInterruptCheck = 64

// Scanner is a resource.Lifecycle that parses a beatmap's [Events] section
// looking for its background image filename (event type 0). Init and
// Destroy are no-ops: all the work happens in InitAsync.
type Scanner struct {
	beatmapPath string

	// Filename is the parsed background filename, set once InitAsync
	// succeeds. Empty if none was found.
	Filename string
}

// NewScanner builds a Scanner for the given .osu file path.
func NewScanner(beatmapPath string) *Scanner {
	return &Scanner{beatmapPath: beatmapPath}
}

// InitAsync scans the beatmap file line by line for the background event,
// aborting early if interrupted or once a section past [Events] is seen.
func (s *Scanner) InitAsync(interrupted func() bool) error {
	f, err := os.Open(s.beatmapPath)
	if err != nil {
		return errors.Wrapf(err, "opening beatmap file: %s", s.beatmapPath)
	}
	defer f.Close()

	lines := bufio.NewScanner(f)
	lines.Buffer(make([]byte, 64*1024), 1024*1024)

	inEvents := false
	lineNum := 0
	for lines.Scan() {
		lineNum++
		if (lineNum-1)%linesPerInterruptCheck == 0 && interrupted() {
			return nil
		}

		line := strings.TrimSpace(lines.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if line == "[Events]" {
				inEvents = true
				continue
			}
			if inEvents && sectionBoundary[line] {
				return nil
			}
			if inEvents {
				// Any other bracketed section following [Events] also ends it.
				return nil
			}
			continue
		}

		if !inEvents {
			continue
		}

		fields := strings.SplitN(line, ",", 4)
		if len(fields) < 3 {
			continue
		}
		if strings.TrimSpace(fields[0]) != "0" {
			continue
		}
		s.Filename = strings.Trim(strings.TrimSpace(fields[2]), "\"")
		return nil
	}
	return errors.Wrap(lines.Err(), "scanning beatmap file")
}

// Init is a no-op: the scan result is plain CPU-side data with nothing to
// finalize on the main thread.
func (s *Scanner) Init() error { return nil }

// Destroy is a no-op: Scanner holds no resources beyond the parsed string.
func (s *Scanner) Destroy() {}
