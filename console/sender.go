package console

import (
	"fmt"
	"time"

	"github.com/Jon-Bright/estufa/command"
	"github.com/google/uuid"
)

// Publisher is what the console needs from the broker connection.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Sent records one command as it was handed to the broker.
type Sent struct {
	ID      string    `json:"id"`
	Key     string    `json:"key"`
	Name    string    `json:"name"`
	Topic   string    `json:"topic"`
	Payload string    `json:"payload"`
	Time    time.Time `json:"time"`
}

type Sender struct {
	pub   Publisher
	topic string
	now   func() time.Time
}

func NewSender(pub Publisher, topic string) *Sender {
	return &Sender{
		pub:   pub,
		topic: topic,
		now:   time.Now,
	}
}

func (s *Sender) Topic() string {
	return s.topic
}

// Prepare marshals e's payload and stamps it, without publishing.
func (s *Sender) Prepare(e command.Entry) (*Sent, error) {
	payload, err := e.Payload.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshalling command '%s': %w", e.Name, err)
	}
	return &Sent{
		ID:      uuid.NewString(),
		Key:     e.Key,
		Name:    e.Name,
		Topic:   s.topic,
		Payload: string(payload),
		Time:    s.now(),
	}, nil
}

// Publish hands a prepared command to the broker.
func (s *Sender) Publish(sent *Sent) error {
	err := s.pub.Publish(sent.Topic, []byte(sent.Payload))
	if err != nil {
		return fmt.Errorf("sending '%s': %w", sent.Name, err)
	}
	return nil
}

// Send publishes e's payload to the command topic. The returned Sent
// is filled in as far as possible even when publishing fails.
func (s *Sender) Send(e command.Entry) (*Sent, error) {
	sent, err := s.Prepare(e)
	if err != nil {
		return nil, err
	}
	return sent, s.Publish(sent)
}
