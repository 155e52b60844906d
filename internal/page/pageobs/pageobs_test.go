package pageobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/page"
)

type failingPage struct {
	err error
}

func (f failingPage) Document(ctx context.Context) (*goquery.Document, error) {
	return nil, f.err
}

func (f failingPage) SetFieldValue(ctx context.Context, el page.Element, value string) error {
	return f.err
}

func (f failingPage) Click(ctx context.Context, el page.Element) error {
	return f.err
}

func (f failingPage) Value(ctx context.Context, el page.Element) (string, error) {
	return "", f.err
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	t.Cleanup(func() { logger.SetHandler(slog.Default().Handler()) })
	return &buf
}

func TestFailuresAreLogged(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		logged bool
	}{
		{"page gone", errors.New("target closed"), true},
		{"order deadline", context.DeadlineExceeded, false},
		{"wrapped deadline", fmt.Errorf("snapshot: %w", context.DeadlineExceeded), false},
		{"shutdown", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			p := Wrap(failingPage{err: tt.err})
			ctx := context.Background()

			if _, err := p.Document(ctx); !errors.Is(err, tt.err) {
				t.Errorf("Expected %v from Document, got %v", tt.err, err)
			}
			if err := p.Click(ctx, page.Element{Path: "button"}); !errors.Is(err, tt.err) {
				t.Errorf("Expected %v from Click, got %v", tt.err, err)
			}

			out := buf.String()
			if got := strings.Contains(out, "Page snapshot failed"); got != tt.logged {
				t.Errorf("Expected snapshot failure logged=%v, got output %q", tt.logged, out)
			}
			if got := strings.Contains(out, "Click failed"); got != tt.logged {
				t.Errorf("Expected click failure logged=%v, got output %q", tt.logged, out)
			}
		})
	}
}
