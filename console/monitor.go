package console

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Jon-Bright/estufa/command"
	"github.com/Jon-Bright/estufa/logs"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

const (
	MESSAGE_HISTORY = 50

	// Enough for a status reply plus a burst of sensor data while
	// a listener is busy writing to a slow browser.
	MESSAGE_CHAN_BUFFER = 10
)

// Message is one payload seen on a subscribed topic.
type Message struct {
	ID       string    `json:"id"`
	Topic    string    `json:"topic"`
	Payload  string    `json:"payload"`
	JSON     bool      `json:"json"`
	Summary  string    `json:"summary,omitempty"`
	Received time.Time `json:"received"`
}

// Monitor prints every message it's given and remembers the most recent
// ones. It's safe for use from paho's callback goroutine.
type Monitor struct {
	w   io.Writer
	log *logs.Loggers
	loc *time.Location
	now func() time.Time

	mu        sync.Mutex
	history   []*Message
	listeners []chan *Message
}

func NewMonitor(w io.Writer, l *logs.Loggers, loc *time.Location) *Monitor {
	return &Monitor{
		w:   w,
		log: l,
		loc: loc,
		now: time.Now,
	}
}

// Handle is a paho.MessageHandler.
func (m *Monitor) Handle(c paho.Client, msg paho.Message) {
	m.Record(msg.Topic(), msg.Payload())
}

func (m *Monitor) Record(topic string, payload []byte) *Message {
	msg := &Message{
		ID:       uuid.NewString(),
		Topic:    topic,
		Payload:  string(payload),
		Received: m.now().In(m.loc),
	}
	var out bytes.Buffer
	var pretty bytes.Buffer
	if json.Valid(payload) && json.Indent(&pretty, payload, "", "  ") == nil {
		msg.JSON = true
		fmt.Fprintf(&out, "\nMessage received on '%s':\n%s\n", topic, pretty.String())
	} else {
		fmt.Fprintf(&out, "\nMessage on '%s': %s\n", topic, msg.Payload)
	}
	if msg.JSON && topic == command.TOPIC_STATUS {
		s, err := command.ParseStatus(payload)
		if err != nil {
			m.log.Warn.Printf("Unparseable status on '%s': %v", topic, err)
		} else {
			msg.Summary = s.Summary(m.loc)
			fmt.Fprintf(&out, "   Status: %s\n", msg.Summary)
		}
	}
	m.log.Info.Printf("Received %d bytes on '%s'", len(payload), topic)
	m.w.Write(out.Bytes())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, msg)
	if len(m.history) > MESSAGE_HISTORY {
		m.history = slices.Delete(m.history, 0, len(m.history)-MESSAGE_HISTORY)
	}
	for _, ch := range m.listeners {
		select {
		case ch <- msg:
		default:
			m.log.Warn.Printf("Listener not keeping up, dropped message %s", msg.ID)
		}
	}
	return msg
}

// History returns the remembered messages, oldest first.
func (m *Monitor) History() []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.history)
}

func (m *Monitor) GetMessageChan() chan *Message {
	ch := make(chan *Message, MESSAGE_CHAN_BUFFER)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, ch)
	return ch
}

func (m *Monitor) DropMessageChan(ch chan *Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ix := slices.Index(m.listeners, ch)
	if ix < 0 {
		m.log.Error.Printf("Dropping unknown message channel")
		return
	}
	m.listeners = slices.Delete(m.listeners, ix, ix+1)
}
