package storage

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"camwatch/internal/model"
)

const (
	artifactExt     = ".jpg"
	timestampLayout = "2006-01-02_15-04-05.000"
)

// 2025-01-04_14-30-00.125_front_person_rect10-20-50-100_frame640-480_conf905_<id>.jpg
var filenamePattern = regexp.MustCompile(
	`^(\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}\.\d{3})_([^_]+)_([^_]+)_rect(-?\d+)-(-?\d+)-(\d+)-(\d+)_frame(\d+)-(\d+)_conf(\d+)_([^_]+)\.jpg$`)

var fieldEscaper = strings.NewReplacer("%", "%25", "_", "%5F", " ", "%20", "/", "%2F", "\\", "%5C")

// Filename encodes the metadata of a history entry in its artifact name, so
// the index can be rebuilt from the artifacts alone.
func Filename(e model.HistoryEntry) string {
	r := e.Region
	return fmt.Sprintf("%s_%s_%s_rect%d-%d-%d-%d_frame%d-%d_conf%d_%s%s",
		e.Timestamp.UTC().Format(timestampLayout),
		fieldEscaper.Replace(e.StreamID),
		fieldEscaper.Replace(e.Class),
		r.X, r.Y, r.Width, r.Height,
		e.FrameWidth, e.FrameHeight,
		int(math.Round(e.Confidence*1000)),
		fieldEscaper.Replace(e.ID),
		artifactExt,
	)
}

// ParseFilename reverses Filename. Confidence keeps three decimals.
func ParseFilename(name string) (model.HistoryEntry, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return model.HistoryEntry{}, fmt.Errorf("invalid filename format: %s", name)
	}

	ts, err := time.ParseInLocation(timestampLayout, m[1], time.UTC)
	if err != nil {
		return model.HistoryEntry{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	fields := make([]string, 3)
	for i, raw := range []string{m[2], m[3], m[11]} {
		if fields[i], err = url.PathUnescape(raw); err != nil {
			return model.HistoryEntry{}, fmt.Errorf("failed to decode %q: %w", raw, err)
		}
	}

	ints := make([]int, 7)
	for i := range ints {
		// The pattern only matches digits, so Atoi cannot fail short of overflow.
		if ints[i], err = strconv.Atoi(m[4+i]); err != nil {
			return model.HistoryEntry{}, fmt.Errorf("invalid number %q: %w", m[4+i], err)
		}
	}

	return model.HistoryEntry{
		ID:          fields[2],
		StreamID:    fields[0],
		Class:       fields[1],
		Confidence:  float64(ints[6]) / 1000,
		Region:      model.Region{X: ints[0], Y: ints[1], Width: ints[2], Height: ints[3]},
		FrameWidth:  ints[4],
		FrameHeight: ints[5],
		Timestamp:   ts,
		ImagePath:   name,
	}, nil
}
