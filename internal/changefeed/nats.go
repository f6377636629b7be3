package changefeed

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/shopmonkeyus/go-common/logger"
)

type natsSink struct {
	logger   logger.Logger
	nc       *nats.Conn
	encoding Encoding
	once     sync.Once
}

var _ Sink = (*natsSink)(nil)

// NewNATSSink connects to a nats server and publishes each event to dbchange.<table>.<operation>.
func NewNATSSink(log logger.Logger, urlString string, encoding Encoding) (Sink, error) {
	u, err := url.Parse(urlString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	// the client does not accept our query parameters
	u.RawQuery = ""
	nc, err := nats.Connect(u.String(), nats.Name("tablekit"))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats server: %w", err)
	}
	return &natsSink{
		logger:   log.WithPrefix("[nats]"),
		nc:       nc,
		encoding: encoding,
	}, nil
}

func (s *natsSink) Publish(ctx context.Context, event *ChangeEvent) error {
	data, err := Encode(event, s.encoding)
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", event, err)
	}
	msg := nats.NewMsg(event.Subject())
	msg.Data = data
	msg.Header.Set(EncodingHeader, string(s.encoding))
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	s.logger.Trace("publishing %s to %s", event, msg.Subject)
	if err := s.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("error publishing %s: %w", event, err)
	}
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return s.nc.FlushTimeout(timeout)
}

func (s *natsSink) Close() error {
	s.once.Do(func() {
		s.logger.Debug("closing")
		s.nc.Close()
	})
	return nil
}

func init() {
	RegisterSink("nats", func(ctx context.Context, logger logger.Logger, u *url.URL) (Sink, error) {
		encoding, err := encodingFromURL(u)
		if err != nil {
			return nil, err
		}
		return NewNATSSink(logger, u.String(), encoding)
	})
}
