package playlist

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/playlms/backend/core"
)

// ErrBadDuration flags a duration token that upstream sent malformed;
// distinct from caller input errors.
var ErrBadDuration = errors.New("malformed duration token")

var durationRegex = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseDuration converts a compact ISO-8601 duration token of the shape
// PT[nH][nM][nS] (every component optional) into whole seconds.
func ParseDuration(token string) (int, error) {
	m := durationRegex.FindStringSubmatch(token)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, errors.WithMessage(ErrBadDuration, token)
	}

	var secs int
	if m[1] != "" {
		h, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, errors.WithMessage(ErrBadDuration, token)
		}
		secs += h * 3600
	}
	if m[2] != "" {
		min, err := strconv.Atoi(m[2])
		if err != nil {
			return 0, errors.WithMessage(ErrBadDuration, token)
		}
		secs += min * 60
	}
	if m[3] != "" {
		s, err := strconv.Atoi(m[3])
		if err != nil {
			return 0, errors.WithMessage(ErrBadDuration, token)
		}
		secs += s
	}
	return secs, nil
}

// FormatSeconds renders whole seconds as a clock string: "H:MM:SS" from one
// hour up, "M:SS" below. Each unit is truncated, never rounded.
func FormatSeconds(secs int) (string, error) {
	if secs < 0 {
		return "", core.NewValidationError(errors.New("seconds cannot be negative"))
	}

	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s), nil
	}
	return fmt.Sprintf("%d:%02d", m, s), nil
}
