// Package announce publishes the prayer schedule to an MQTT broker so
// athan displays and home automations can follow it.
package announce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/mawaqit/internal/hijri"
	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
	"github.com/smokyabdulrahman/mawaqit/internal/tracker"
)

// DefaultTopic is where the schedule is published when none is configured.
const DefaultTopic = "mawaqit/prayers"

const publishTimeout = 5 * time.Second

// Publisher is the part of an MQTT client the announcer needs.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool) error
}

// Client is a connected paho client.
type Client struct {
	cli mqtt.Client
}

// Dial connects to broker, e.g. "tcp://localhost:1883". Credentials may be
// given in the URL's user info.
func Dial(broker string, log zerolog.Logger) (*Client, error) {
	u, err := url.Parse(broker)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid MQTT broker %q", broker)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(ClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	if u.User != nil {
		pw, _ := u.User.Password()
		opts.SetUsername(u.User.Username())
		opts.SetPassword(pw)
	}
	opts.OnConnect = func(mqtt.Client) { log.Info().Str("broker", u.Host).Msg("mqtt connected") }
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", u.Host).Msg("mqtt connection lost")
	}

	cli := mqtt.NewClient(opts)
	if t := cli.Connect(); t.Wait() && t.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", t.Error())
	}
	return &Client{cli: cli}, nil
}

// ClientID returns a fresh "mawaqit-<uuid>" identifier.
func ClientID() string {
	return "mawaqit-" + uuid.NewString()
}

// Publish sends payload at QoS 1.
func (c *Client) Publish(topic string, payload []byte, retain bool) error {
	t := c.cli.Publish(topic, 1, retain, payload)
	if !t.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return t.Error()
}

// Close disconnects, allowing in-flight messages a moment to finish.
func (c *Client) Close() {
	c.cli.Disconnect(250)
}

// Message is the retained payload.
type Message struct {
	Location string  `json:"location,omitempty"`
	Offline  bool    `json:"offline"`
	Date     string  `json:"date"`
	Hijri    string  `json:"hijri"`
	Prayers  []Entry `json:"prayers"`
	Next     *Entry  `json:"next,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Entry is one prayer in a Message.
type Entry struct {
	Name      string `json:"name"`
	English   string `json:"english"`
	Time      string `json:"time"`
	Timestamp int64  `json:"timestamp"`
}

func entry(p prayer.PrayerTime) Entry {
	return Entry{Name: p.Name, English: prayer.EnglishName(p.Name), Time: p.Time, Timestamp: p.Timestamp}
}

// Announcer turns tracker states into retained messages on one topic.
type Announcer struct {
	pub   Publisher
	topic string
	loc   *time.Location
	now   func() time.Time
	log   zerolog.Logger

	mu   sync.Mutex
	last []byte
}

// Option configures an Announcer.
type Option func(*Announcer)

// WithLocation sets the zone of the published date and clock times.
func WithLocation(loc *time.Location) Option { return func(a *Announcer) { a.loc = loc } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(a *Announcer) { a.now = now } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(a *Announcer) { a.log = l } }

// New creates an Announcer. An empty topic means DefaultTopic.
func New(pub Publisher, topic string, opts ...Option) *Announcer {
	if topic == "" {
		topic = DefaultTopic
	}
	a := &Announcer{
		pub:   pub,
		topic: topic,
		loc:   time.Local,
		now:   time.Now,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build renders s as a Message.
func (a *Announcer) Build(s tracker.State) Message {
	now := a.now().In(a.loc)
	m := Message{
		Location: s.Location,
		Offline:  s.Offline,
		Date:     prayer.DateKey(now),
		Hijri:    hijri.Format(now),
		Prayers:  make([]Entry, 0, len(s.Prayers)),
		Error:    s.Err,
	}
	for _, p := range s.Prayers {
		m.Prayers = append(m.Prayers, entry(p))
	}
	if next := prayer.NextPrayer(s.Prayers, now); next != nil {
		e := entry(*next)
		m.Next = &e
	}
	return m
}

// Announce publishes s unless it is still loading or identical to the last
// published message.
func (a *Announcer) Announce(s tracker.State) error {
	if s.Loading {
		return nil
	}
	payload, err := json.Marshal(a.Build(s))
	if err != nil {
		return fmt.Errorf("failed to marshal announcement: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if bytes.Equal(payload, a.last) {
		return nil
	}
	if err := a.pub.Publish(a.topic, payload, true); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", a.topic, err)
	}
	a.last = payload
	a.log.Debug().Str("topic", a.topic).Int("bytes", len(payload)).Msg("announced prayer schedule")
	return nil
}

// Attach announces every state change of t until the returned function is
// called. Failures are logged.
func (a *Announcer) Attach(t *tracker.Tracker) (detach func()) {
	if err := a.Announce(t.State()); err != nil {
		a.log.Warn().Err(err).Msg("announce failed")
	}
	return t.Subscribe(func(s tracker.State) {
		if err := a.Announce(s); err != nil {
			a.log.Warn().Err(err).Msg("announce failed")
		}
	})
}
