package ffmpeg

import (
	"strconv"
	"strings"
	"time"
)

// progressParser turns "-progress pipe:1" key=value lines into percentages
// against a known input duration. When the duration is unknown it still
// reports elapsed output time in the message.
type progressParser struct {
	total time.Duration
	last  time.Duration
}

func newProgressParser(total time.Duration) *progressParser {
	return &progressParser{total: total}
}

func (p *progressParser) parse(line string) (ProgressUpdate, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return ProgressUpdate{}, false
	}
	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg historically emitted microseconds under both keys.
		micros, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || micros < 0 {
			return ProgressUpdate{}, false
		}
		p.last = time.Duration(micros) * time.Microsecond
		return p.update(), true
	case "progress":
		if strings.TrimSpace(value) == "end" {
			return ProgressUpdate{Percent: 100, Message: "conversion finished"}, true
		}
		return ProgressUpdate{}, false
	default:
		return ProgressUpdate{}, false
	}
}

func (p *progressParser) update() ProgressUpdate {
	elapsed := p.last.Round(time.Second)
	if p.total <= 0 {
		return ProgressUpdate{Message: "converted " + elapsed.String()}
	}
	percent := float64(p.last) / float64(p.total) * 100
	if percent > 100 {
		percent = 100
	}
	return ProgressUpdate{
		Percent: percent,
		Message: "converted " + elapsed.String() + " of " + p.total.Round(time.Second).String(),
	}
}
