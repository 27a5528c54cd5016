package querylog

import (
	"context"
	"errors"
	"sync"
)

var ErrTopicNotFound = errors.New("topic does not exist")

const memoryTopicSize = 1024

func NewDriverMemory() (Driver, error) {
	return &driverMemory{
		mutex:  &sync.Mutex{},
		topics: map[string]chan []byte{},
	}, nil
}

type driverMemory struct {
	mutex  *sync.Mutex
	topics map[string]chan []byte
}

func (driver *driverMemory) topic(name string) (chan []byte, error) {
	driver.mutex.Lock()
	defer driver.mutex.Unlock()

	topic, found := driver.topics[name]
	if !found {
		return nil, ErrTopicNotFound
	}

	return topic, nil
}

func (driver *driverMemory) CreateTopic(ctx context.Context, name string) error {
	driver.mutex.Lock()
	defer driver.mutex.Unlock()

	if _, found := driver.topics[name]; !found {
		driver.topics[name] = make(chan []byte, memoryTopicSize)
	}

	return nil
}

// Publish blocks once memoryTopicSize entries are waiting to be consumed.
func (driver *driverMemory) Publish(ctx context.Context, name string, payload []byte) error {
	topic, err := driver.topic(name)
	if err != nil {
		return err
	}

	select {
	case topic <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (driver *driverMemory) Consume(
	ctx context.Context,
	name string,
	handler func(ctx context.Context, payload []byte) error,
) error {
	topic, err := driver.topic(name)
	if err != nil {
		return err
	}

	for {
		select {
		case payload := <-topic:
			if err := handler(ctx, payload); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
