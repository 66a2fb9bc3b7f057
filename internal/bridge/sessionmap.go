package bridge

import "sync"

// sessionMap is the two-way binding between gateway sessions and platform
// chats. A bridge needs both directions: chat→session to route customer
// messages, session→chat to deliver agent replies.
type sessionMap struct {
	mu        sync.RWMutex
	byChat    map[string]string
	bySession map[string]string
}

func newSessionMap() *sessionMap {
	return &sessionMap{
		byChat:    make(map[string]string),
		bySession: make(map[string]string),
	}
}

func (m *sessionMap) bind(chatID, sessionID string) {
	m.mu.Lock()
	m.byChat[chatID] = sessionID
	m.bySession[sessionID] = chatID
	m.mu.Unlock()
}

func (m *sessionMap) session(chatID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byChat[chatID]
	return s, ok
}

func (m *sessionMap) chat(sessionID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.bySession[sessionID]
	return c, ok
}
