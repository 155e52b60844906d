package pageobs

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"

	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/page"
	"alpha-volume-bot/internal/trace"
)

// observablePage wraps a Page with logging and tracing of every action.
// Snapshots are traced but only logged on failure, since waits poll them.
type observablePage struct {
	page page.Page
}

var _ page.Page = (*observablePage)(nil)

func Wrap(p page.Page) page.Page {
	return &observablePage{page: p}
}

func (op *observablePage) Document(ctx context.Context) (*goquery.Document, error) {
	ctx, span := trace.StartSpan(ctx, "page.Document")
	defer span.End()

	doc, err := op.page.Document(ctx)
	if err != nil {
		logFailure(ctx, "Page snapshot failed", err)
		return nil, err
	}
	return doc, nil
}

func (op *observablePage) Click(ctx context.Context, el page.Element) error {
	ctx, span := trace.StartSpan(ctx, "page.Click")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Clicking element", "element", el.Path, "text", el.Text())

	if err := op.page.Click(ctx, el); err != nil {
		logFailure(ctx, "Click failed", err, "element", el.Path)
		return err
	}
	return nil
}

func (op *observablePage) SetFieldValue(ctx context.Context, el page.Element, value string) error {
	ctx, span := trace.StartSpan(ctx, "page.SetFieldValue")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Setting field", "element", el.Path, "value", value)

	if err := op.page.SetFieldValue(ctx, el, value); err != nil {
		logFailure(ctx, "Setting field failed", err, "element", el.Path, "value", value)
		return err
	}
	return nil
}

func (op *observablePage) Value(ctx context.Context, el page.Element) (string, error) {
	ctx, span := trace.StartSpan(ctx, "page.Value")
	defer span.End()

	v, err := op.page.Value(ctx, el)
	if err != nil {
		logFailure(ctx, "Reading field failed", err, "element", el.Path)
		return "", err
	}
	logger.DebugSkip(ctx, 1, "Field read", "element", el.Path, "value", v)
	return v, nil
}

// logFailure reports a failed page action. Cancellation and deadlines are
// how waits and order timeouts end, so they are not errors here.
func logFailure(ctx context.Context, msg string, err error, args ...any) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.DebugSkip(ctx, 2, msg, append([]any{"reason", err.Error()}, args...)...)
		return
	}
	logger.ErrorWithErrSkip(ctx, 2, msg, err, args...)
}
