package changefeed

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/shopmonkeyus/go-common/logger"
)

// Sink publishes change events.
type Sink interface {
	// Publish sends one event.
	Publish(ctx context.Context, event *ChangeEvent) error

	// Close releases the sink's connection.
	Close() error
}

// SinkFactory creates a sink for a parsed url.
type SinkFactory func(ctx context.Context, logger logger.Logger, u *url.URL) (Sink, error)

var sinkRegistry = map[string]SinkFactory{}

// RegisterSink registers a sink factory for a url scheme.
func RegisterSink(scheme string, factory SinkFactory) {
	if _, ok := sinkRegistry[scheme]; ok {
		panic("sink already registered: " + scheme)
	}
	sinkRegistry[scheme] = factory
}

// Schemes returns the registered url schemes.
func Schemes() []string {
	res := make([]string, 0, len(sinkRegistry))
	for k := range sinkRegistry {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// NewSink returns the sink for the url scheme.
func NewSink(ctx context.Context, logger logger.Logger, urlString string) (Sink, error) {
	u, err := url.Parse(urlString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	factory := sinkRegistry[u.Scheme]
	if factory == nil {
		return nil, fmt.Errorf("no sink registered for scheme: %s", u.Scheme)
	}
	return factory(ctx, logger, u)
}

// encodingFromURL reads the encoding query parameter.
func encodingFromURL(u *url.URL) (Encoding, error) {
	return ParseEncoding(u.Query().Get("encoding"))
}
