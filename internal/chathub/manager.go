package chathub

import (
	"context"
	"directchat/backend/internal/models"
	"errors"

	"go.uber.org/zap"
)

// AllChats as an event id means "anything may have changed". Every client
// gets a single chat_changed frame without a chat id and refreshes all of
// its chats.
const AllChats uint = 0

// AccessChecker decides whether a user may watch a chat.
type AccessChecker interface {
	IsChatMember(ctx context.Context, chatID uint, userID string) (bool, error)
}

// ErrStopped is returned by calls made after Run has returned.
var ErrStopped = errors.New("chat hub stopped")

// Subscription asks the hub to add (or remove) a client from a chat's
// audience. A non-empty Reject is delivered as an error frame instead.
type Subscription struct {
	Client Client
	ChatID uint
	Reject string
}

// Stats is a point-in-time snapshot of the hub.
type Stats struct {
	Clients       int `json:"clients"`
	Chats         int `json:"chats"`
	Subscriptions int `json:"subscriptions"`
}

// ManagerService fans chat change events out to subscribed clients. All state
// is owned by the Run goroutine and mutated only through its channels.
type ManagerService struct {
	clients map[Client]map[uint]struct{}
	chats   map[uint]map[Client]struct{}

	RegisterCh    chan Client
	UnregisterCh  chan Client
	SubscribeCh   chan Subscription
	UnsubscribeCh chan Subscription
	statsCh       chan chan Stats

	Access AccessChecker
	Log    *zap.Logger

	done chan struct{}
}

func NewManagerService(access AccessChecker, logger *zap.Logger) *ManagerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManagerService{
		clients:       make(map[Client]map[uint]struct{}),
		chats:         make(map[uint]map[Client]struct{}),
		RegisterCh:    make(chan Client),
		UnregisterCh:  make(chan Client),
		SubscribeCh:   make(chan Subscription),
		UnsubscribeCh: make(chan Subscription),
		statsCh:       make(chan chan Stats),
		Access:        access,
		Log:           logger,
		done:          make(chan struct{}),
	}
}

// Run processes hub commands and chat ids from events until ctx is done.
// On exit every remaining client is closed.
func (m *ManagerService) Run(ctx context.Context, events <-chan uint) {
	defer func() {
		for c := range m.clients {
			m.drop(c)
		}
		close(m.done)
		m.Log.Info("chat hub stopped")
	}()

	m.Log.Info("chat hub started")
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-m.RegisterCh:
			if _, ok := m.clients[c]; !ok {
				m.clients[c] = make(map[uint]struct{})
			}
			m.Log.Debug("client registered", zap.String("user_id", c.GetUserID()))

		case c := <-m.UnregisterCh:
			if _, ok := m.clients[c]; ok {
				m.drop(c)
				m.Log.Debug("client unregistered", zap.String("user_id", c.GetUserID()))
			}

		case sub := <-m.SubscribeCh:
			m.subscribe(sub)

		case sub := <-m.UnsubscribeCh:
			m.unsubscribe(sub.Client, sub.ChatID)

		case reply := <-m.statsCh:
			reply <- m.snapshot()

		case chatID, ok := <-events:
			if !ok {
				m.Log.Warn("chat event feed closed")
				events = nil
				continue
			}
			m.notify(chatID)
		}
	}
}

// Stats asks the Run goroutine for a snapshot. Every command sent before the
// call has been applied by the time it returns.
func (m *ManagerService) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case m.statsCh <- reply:
	case <-m.done:
		return Stats{}, ErrStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// Register hands c to the hub unless the hub has stopped.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister removes c and all its subscriptions. Safe after the hub stopped.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Subscribe forwards a subscription request. Safe after the hub stopped.
func (m *ManagerService) Subscribe(sub Subscription) {
	select {
	case m.SubscribeCh <- sub:
	case <-m.done:
	}
}

// Unsubscribe forwards an unsubscribe request. Safe after the hub stopped.
func (m *ManagerService) Unsubscribe(sub Subscription) {
	select {
	case m.UnsubscribeCh <- sub:
	case <-m.done:
	}
}

func (m *ManagerService) subscribe(sub Subscription) {
	subs, ok := m.clients[sub.Client]
	if !ok {
		return
	}
	if sub.Reject != "" {
		m.send(sub.Client, models.ChatEvent{Type: models.EventError, ChatID: sub.ChatID, Error: sub.Reject})
		return
	}

	subs[sub.ChatID] = struct{}{}
	audience, ok := m.chats[sub.ChatID]
	if !ok {
		audience = make(map[Client]struct{})
		m.chats[sub.ChatID] = audience
	}
	audience[sub.Client] = struct{}{}
}

func (m *ManagerService) unsubscribe(c Client, chatID uint) {
	if subs, ok := m.clients[c]; ok {
		delete(subs, chatID)
	}
	if audience, ok := m.chats[chatID]; ok {
		delete(audience, c)
		if len(audience) == 0 {
			delete(m.chats, chatID)
		}
	}
}

func (m *ManagerService) notify(chatID uint) {
	if chatID == AllChats {
		for c := range m.clients {
			m.send(c, models.ChatEvent{Type: models.EventChatChanged})
		}
		return
	}

	for c := range m.chats[chatID] {
		m.send(c, models.ChatEvent{Type: models.EventChatChanged, ChatID: chatID})
	}
}

// send delivers without blocking. A client whose buffer is full is dropped.
func (m *ManagerService) send(c Client, event models.ChatEvent) bool {
	select {
	case c.GetSendChannel() <- event:
		return true
	default:
		m.Log.Warn("dropping slow client", zap.String("user_id", c.GetUserID()))
		m.drop(c)
		return false
	}
}

func (m *ManagerService) drop(c Client) {
	subs, ok := m.clients[c]
	if !ok {
		return
	}
	for chatID := range subs {
		m.unsubscribe(c, chatID)
	}
	delete(m.clients, c)
	c.Close()
}

func (m *ManagerService) snapshot() Stats {
	s := Stats{Clients: len(m.clients), Chats: len(m.chats)}
	for _, audience := range m.chats {
		s.Subscriptions += len(audience)
	}
	return s
}
