// Package mailtest provides a MailSender test double for exercising the
// delivery worker's state machine without a real transport.
package mailtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/garv190/outbox-email-project/mail"
)

// MockSender records every Send call and fails calls at the configured
// 1-indexed call numbers.
type MockSender struct {
	mu       sync.Mutex
	calls    int
	failOn   map[int]bool
	sent     []string
}

// NewMockSender creates a MockSender that fails on the given 1-indexed
// call numbers (across the sender's whole lifetime, matching the
// "throws on the 2nd call" scenario wording).
func NewMockSender(failOn ...int) *MockSender {
	m := &MockSender{failOn: make(map[int]bool, len(failOn))}
	for _, n := range failOn {
		m.failOn[n] = true
	}
	return m
}

// Send implements mail.Sender.
func (m *MockSender) Send(_ context.Context, recipient, _, _ string) (mail.Result, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.sent = append(m.sent, recipient)
	m.mu.Unlock()

	if m.failOn[call] {
		return mail.Result{}, fmt.Errorf("mailtest: simulated transport failure on call %d", call)
	}

	return mail.Result{MessageID: fmt.Sprintf("mock-%d", call)}, nil
}

// Calls returns the total number of Send invocations so far.
func (m *MockSender) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Recipients returns every recipient Send was called with, in order.
func (m *MockSender) Recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}
