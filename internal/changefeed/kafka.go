package changefeed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	gokafka "github.com/segmentio/kafka-go"
	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal/util"
)

const partitionKeyHeader = "tablekit-partitionkey"

// messageBalancer keeps every event of one row on one partition.
type messageBalancer struct {
}

func (b *messageBalancer) Balance(msg gokafka.Message, partitions ...int) int {
	if len(partitions) == 1 {
		return partitions[0]
	}
	for _, header := range msg.Headers {
		if header.Key == partitionKeyHeader {
			return partitions[util.Modulo(util.Hash(string(header.Value)), len(partitions))]
		}
	}
	return partitions[util.Modulo(util.Hash(string(msg.Key)), len(partitions))]
}

type kafkaSink struct {
	logger   logger.Logger
	writer   *gokafka.Writer
	encoding Encoding
	once     sync.Once
}

var _ Sink = (*kafkaSink)(nil)

// NewKafkaSink writes events to the topic of a kafka://host:port/topic url.
func NewKafkaSink(log logger.Logger, urlString string, encoding Encoding) (Sink, error) {
	u, err := url.Parse(urlString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse url: %w", err)
	}
	topic := strings.TrimPrefix(u.Path, "/")
	if topic == "" {
		return nil, fmt.Errorf("kafka url requires a path which is the topic")
	}
	return &kafkaSink{
		logger: log.WithPrefix("[kafka]"),
		writer: &gokafka.Writer{
			Addr:     gokafka.TCP(strings.Split(u.Host, ",")...),
			Topic:    topic,
			Balancer: &messageBalancer{},
		},
		encoding: encoding,
	}, nil
}

// message builds the kafka message of an event. The key is dbchange.<table>.<operation>.<id>.
func (s *kafkaSink) message(event *ChangeEvent) (gokafka.Message, error) {
	data, err := Encode(event, s.encoding)
	if err != nil {
		return gokafka.Message{}, err
	}
	return gokafka.Message{
		Key:   []byte(event.Subject() + "." + event.ID),
		Value: data,
		Headers: []gokafka.Header{
			{Key: partitionKeyHeader, Value: []byte(event.Table + "." + event.GetPrimaryKey())},
			{Key: EncodingHeader, Value: []byte(s.encoding)},
		},
	}, nil
}

func (s *kafkaSink) Publish(ctx context.Context, event *ChangeEvent) error {
	msg, err := s.message(event)
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", event, err)
	}
	s.logger.Trace("publishing %s", event)
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("error publishing message. %w", err)
	}
	return nil
}

func (s *kafkaSink) Close() error {
	var err error
	s.once.Do(func() {
		s.logger.Debug("closing writer")
		err = s.writer.Close()
	})
	return err
}

func init() {
	RegisterSink("kafka", func(ctx context.Context, logger logger.Logger, u *url.URL) (Sink, error) {
		encoding, err := encodingFromURL(u)
		if err != nil {
			return nil, err
		}
		return NewKafkaSink(logger, u.String(), encoding)
	})
}
