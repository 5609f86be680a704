package varnishlog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sophialabs/lsvstats/internal/domain/event"
	"github.com/sophialabs/lsvstats/internal/infrastructure/ports"
)

const maxLineSize = 1 << 20

// Source reads varnishlog text output, one "<fd> <tag> <side> <payload>"
// record per line, and emits the events the aggregation loop understands.
type Source struct {
	r        io.Reader
	logger   ports.Logger
	throttle ports.Throttle
}

var _ ports.EventSource = (*Source)(nil)

// NewSource creates a source reading from r. If r is also an io.Closer it is
// closed when the context passed to Run is cancelled, which unblocks a
// pending read.
func NewSource(r io.Reader, logger ports.Logger, throttle ports.Throttle) *Source {
	return &Source{r: r, logger: logger, throttle: throttle}
}

// Run scans lines until end of input or cancellation.
func (s *Source) Run(ctx context.Context, out chan<- event.Event) error {
	if c, ok := s.r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}

	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		ev, err := ParseLine(scanner.Text())
		if err != nil {
			if errors.Is(err, errBlank) {
				continue
			}
			s.warn("skipping malformed log line", "line", lineNo, "error", err)
			continue
		}
		if ev.Tag == event.TagUnknown {
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to read log input at line %d: %w", lineNo, err)
	}
	return nil
}

func (s *Source) warn(msg string, args ...any) {
	ok, suppressed := s.throttle.Allow(msg)
	if !ok {
		return
	}
	if suppressed > 0 {
		args = append(args, "suppressed", suppressed)
	}
	s.logger.Warn(msg, args...)
}

var errBlank = errors.New("blank line")

// ParseLine decodes one varnishlog line. Tags outside the dispatch table are
// returned as event.TagUnknown.
func ParseLine(line string) (event.Event, error) {
	rest := strings.TrimLeft(strings.TrimSuffix(line, "\r"), " \t")
	if rest == "" {
		return event.Event{}, errBlank
	}

	fd, rest, ok := nextField(rest)
	if !ok {
		return event.Event{}, fmt.Errorf("missing tag")
	}
	slot, err := strconv.ParseUint(fd, 10, 32)
	if err != nil {
		return event.Event{}, fmt.Errorf("invalid descriptor %q", fd)
	}

	tag, rest, ok := nextField(rest)
	if !ok {
		return event.Event{}, fmt.Errorf("missing side")
	}
	side, payload, _ := nextField(rest)
	if len(side) != 1 {
		return event.Event{}, fmt.Errorf("invalid side %q", side)
	}

	return event.Event{
		Slot:    uint32(slot),
		Tag:     event.ParseTag(tag),
		Side:    event.Side(side[0]),
		Payload: payload,
	}, nil
}

// nextField splits s at the first run of blanks. ok is false when nothing
// follows the field.
func nextField(s string) (field, rest string, ok bool) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, "", false
	}
	return s[:i], strings.TrimLeft(s[i:], " \t"), true
}
