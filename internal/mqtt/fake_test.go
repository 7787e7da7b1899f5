package mqtt

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error                   { return t.err }

func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	pahomqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// fakePaho records publishes and routes injected messages to matching
// subscriptions. Methods not overridden panic through the nil embedded
// interface.
type fakePaho struct {
	pahomqtt.Client

	mu         sync.Mutex
	published  []published
	subs       map[string]pahomqtt.MessageHandler
	publishErr error
}

func newFakePaho() *fakePaho {
	return &fakePaho{subs: make(map[string]pahomqtt.MessageHandler)}
}

func (f *fakePaho) Publish(topic string, _ byte, retained bool, payload any) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return fakeToken{err: f.publishErr}
	}
	b, _ := payload.([]byte)
	f.published = append(f.published, published{topic, retained, append([]byte(nil), b...)})
	return fakeToken{}
}

func (f *fakePaho) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = cb
	return fakeToken{}
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.subs, t)
	}
	return fakeToken{}
}

func (f *fakePaho) Disconnect(uint) {}

// inject delivers a message to every subscription whose filter matches.
func (f *fakePaho) inject(topic string, payload []byte) int {
	f.mu.Lock()
	var handlers []pahomqtt.MessageHandler
	for filter, cb := range f.subs {
		if topicMatches(filter, topic) {
			handlers = append(handlers, cb)
		}
	}
	f.mu.Unlock()
	for _, cb := range handlers {
		cb(f, fakeMessage{topic: topic, payload: payload})
	}
	return len(handlers)
}

func (f *fakePaho) subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[topic]
	return ok
}

func (f *fakePaho) messages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}

// last returns the most recent publish on topic.
func (f *fakePaho) last(topic string) (published, bool) {
	msgs := f.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].topic == topic {
			return msgs[i], true
		}
	}
	return published{}, false
}

func topicMatches(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	if len(fp) != len(tp) {
		return false
	}
	for i := range fp {
		if fp[i] != "+" && fp[i] != tp[i] {
			return false
		}
	}
	return true
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
