package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubNumberSource struct {
	latest     string
	err        error
	lastPrefix string
}

func (s *stubNumberSource) LatestNumber(_ context.Context, prefix string) (string, error) {
	s.lastPrefix = prefix
	return s.latest, s.err
}

func TestNextDocumentNumber(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		src    *stubNumberSource
		prefix string
		want   string
	}{
		{"increments highest", &stubNumberSource{latest: "EST-2025-0007"}, "EST", "EST-2025-0008"},
		{"first of the year", &stubNumberSource{}, "EST", "EST-2025-0001"},
		{"grows past four digits", &stubNumberSource{latest: "INV-2025-9999"}, "INV", "INV-2025-10000"},
		{"lookup failure falls back to timestamp", &stubNumberSource{err: errors.New("db locked")}, "CTR", "CTR-1748736000"},
		{"unparsable latest falls back to timestamp", &stubNumberSource{latest: "EST-2025-abc"}, "EST", "EST-1748736000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextDocumentNumber(context.Background(), tt.src, tt.prefix, now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.prefix+"-2025-", tt.src.lastPrefix)
		})
	}
}
