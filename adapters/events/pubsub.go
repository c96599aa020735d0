package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/log"
	"github.com/redis/go-redis/v9"
)

// NewGoChannel returns an in-process pub/sub
func NewGoChannel(logger log.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, NewLoggerAdapter(logger))
}

// NewRedisStreamPublisher publishes onto Redis streams
func NewRedisStreamPublisher(client redis.UniversalClient, logger log.Logger) (message.Publisher, error) {
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: client,
	}, NewLoggerAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
	}
	return pub, nil
}

// LoggerAdapter routes watermill logs into a go-ethereum logger
type LoggerAdapter struct {
	log log.Logger
}

var _ watermill.LoggerAdapter = (*LoggerAdapter)(nil)

func NewLoggerAdapter(logger log.Logger) *LoggerAdapter {
	if logger == nil {
		logger = log.Root()
	}
	return &LoggerAdapter{log: logger}
}

func flatten(fields watermill.LogFields) []interface{} {
	ctx := make([]interface{}, 0, 2*len(fields))
	for k, v := range fields {
		ctx = append(ctx, k, v)
	}
	return ctx
}

func (a *LoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(msg, append(flatten(fields), "err", err)...)
}

func (a *LoggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info(msg, flatten(fields)...)
}

func (a *LoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, flatten(fields)...)
}

func (a *LoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Trace(msg, flatten(fields)...)
}

func (a *LoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LoggerAdapter{log: a.log.New(flatten(fields)...)}
}
