package querylog

import (
	"context"
	"encoding/json"
	"time"
)

// Driver moves encoded entries from the service that ran a statement to
// whoever consumes the log.
type Driver interface {
	CreateTopic(ctx context.Context, topic string) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Consume(ctx context.Context, topic string, handler func(ctx context.Context, payload []byte) error) error
}

// Entry describes one statement run by the database service.
type Entry struct {
	Driver    string        `json:"driver"`
	Statement string        `json:"statement"`
	Args      []any         `json:"args"`
	Took      time.Duration `json:"took"`
	NumRows   int64         `json:"numRows"`
	Cached    bool          `json:"cached,omitempty"`
	Error     string        `json:"error,omitempty"`
	RanAt     time.Time     `json:"ranAt"`
}

type Handler func(ctx context.Context, entry Entry) error

func NewLog(ctx context.Context, driver Driver, topic string) (*Log, error) {
	if err := driver.CreateTopic(ctx, topic); err != nil {
		return nil, err
	}

	return &Log{
		driver: driver,
		topic:  topic,
	}, nil
}

type Log struct {
	driver Driver
	topic  string
}

func (log *Log) Topic() string {
	return log.topic
}

func (log *Log) Record(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return log.driver.Publish(ctx, log.topic, payload)
}

// Consume blocks, calling handler for each entry, until handler returns an
// error or the driver stops delivering.
func (log *Log) Consume(ctx context.Context, handler Handler) error {
	return log.driver.Consume(ctx, log.topic, func(ctx context.Context, payload []byte) error {
		entry := Entry{}
		if err := json.Unmarshal(payload, &entry); err != nil {
			return err
		}

		return handler(ctx, entry)
	})
}
