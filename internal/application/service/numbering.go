package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/garyjia/flooring-crm/internal/application/port"
)

// NextDocumentNumber returns PREFIX-YEAR-NNNN one past the highest number
// issued this year. If the lookup fails it falls back to PREFIX-<unix> so
// that document creation never blocks on numbering.
func NextDocumentNumber(ctx context.Context, src port.DocumentNumberSource, prefix string, now time.Time) string {
	yearPrefix := fmt.Sprintf("%s-%d-", prefix, now.Year())

	latest, err := src.LatestNumber(ctx, yearPrefix)
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, now.Unix())
	}

	seq := 0
	if latest != "" {
		pattern := regexp.MustCompile("^" + regexp.QuoteMeta(yearPrefix) + `(\d+)$`)
		m := pattern.FindStringSubmatch(latest)
		if m == nil {
			return fmt.Sprintf("%s-%d", prefix, now.Unix())
		}
		seq, err = strconv.Atoi(m[1])
		if err != nil {
			return fmt.Sprintf("%s-%d", prefix, now.Unix())
		}
	}

	return fmt.Sprintf("%s%04d", yearPrefix, seq+1)
}
