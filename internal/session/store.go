// Package session keeps in-memory agent sessions, their todo lists and the
// aggregate engine counters. Nothing here is persisted; process exit drops
// all state by design.
package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Todo statuses form the allowed set for every transition.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// ValidStatus reports whether s is in the allowed set.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func terminal(s string) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// TodoItem is one tracked activity inside a session.
type TodoItem struct {
	ID         string        `json:"id"`
	Content    string        `json:"content"`
	ActiveForm string        `json:"active_form,omitempty"`
	Status     string        `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Notes      string        `json:"notes,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// Session bundles todo items and counters for one logical run.
type Session struct {
	ID             string               `json:"id"`
	CreatedAt      time.Time            `json:"created_at"`
	LastActivity   time.Time            `json:"last_activity"`
	Todos          map[string]*TodoItem `json:"todos"`
	order          []string
	nextTodoSeq    int
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	FailedTasks    int `json:"failed_tasks"`
}

// OrderedTodos returns the session's items in creation order.
func (s *Session) OrderedTodos() []*TodoItem {
	items := make([]*TodoItem, 0, len(s.order))
	for _, id := range s.order {
		if item, ok := s.Todos[id]; ok {
			items = append(items, item)
		}
	}
	return items
}

// Store is the process-wide session registry with a current pointer.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	current  string
	stats    AgentStats
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// CreateSession registers a new session and makes it current. An empty id
// gets a generated one.
func (st *Store) CreateSession(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if id == "" {
		id = "session_" + uuid.NewString()[:8]
	}
	now := time.Now()
	s := &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		Todos:        make(map[string]*TodoItem),
	}
	st.sessions[id] = s
	st.current = id
	return s
}

// Current returns the current session, creating one on first use.
func (st *Store) Current() *Session {
	st.mu.Lock()
	if st.current != "" {
		if s, ok := st.sessions[st.current]; ok {
			st.mu.Unlock()
			return s
		}
	}
	st.mu.Unlock()
	return st.CreateSession("")
}

// Get returns a session by id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// SetCurrent switches the current pointer.
func (st *Store) SetCurrent(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return fmt.Errorf("unknown session: %s", id)
	}
	st.current = id
	return nil
}

// SessionIDs lists known sessions, sorted.
func (st *Store) SessionIDs() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AddTodo appends a todo to the session. Ids are todo_1..todo_N per session.
func (st *Store) AddTodo(s *Session, content, activeForm, status string) *TodoItem {
	st.mu.Lock()
	defer st.mu.Unlock()
	s.nextTodoSeq++
	now := time.Now()
	if !ValidStatus(status) {
		status = StatusPending
	}
	item := &TodoItem{
		ID:         fmt.Sprintf("todo_%d", s.nextTodoSeq),
		Content:    content,
		ActiveForm: activeForm,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.Todos[item.ID] = item
	s.order = append(s.order, item.ID)
	s.TotalTasks++
	if status == StatusCompleted {
		s.CompletedTasks++
	} else if status == StatusFailed {
		s.FailedTasks++
	}
	s.LastActivity = now
	return item
}

// UpdateTodoStatus transitions a todo. Unknown ids are a no-op miss; unknown
// statuses are rejected. Session counters track terminal-state items.
func (st *Store) UpdateTodoStatus(s *Session, id, status, notes string) (*TodoItem, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !ValidStatus(status) {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	item, ok := s.Todos[id]
	if !ok {
		return nil, nil
	}
	prev := item.Status
	now := time.Now()
	item.Status = status
	item.UpdatedAt = now
	if notes != "" {
		item.Notes = notes
	}
	if terminal(status) && !terminal(prev) {
		item.Duration = now.Sub(item.CreatedAt)
	}
	if prev == StatusCompleted {
		s.CompletedTasks--
	}
	if prev == StatusFailed {
		s.FailedTasks--
	}
	if status == StatusCompleted {
		s.CompletedTasks++
	}
	if status == StatusFailed {
		s.FailedTasks++
	}
	s.LastActivity = now
	return item, nil
}

// ClearTodos drops every todo from the session.
func (st *Store) ClearTodos(s *Session) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := len(s.Todos)
	s.Todos = make(map[string]*TodoItem)
	s.order = nil
	s.nextTodoSeq = 0
	s.TotalTasks = 0
	s.CompletedTasks = 0
	s.FailedTasks = 0
	s.LastActivity = time.Now()
	return n
}

// ProgressSummary formats totals, active items, session duration and the
// next few active items.
func (st *Store) ProgressSummary(s *Session, nextN int) string {
	st.mu.Lock()
	defer st.mu.Unlock()
	if nextN <= 0 {
		nextN = 3
	}
	items := make([]*TodoItem, 0, len(s.order))
	for _, id := range s.order {
		if item, ok := s.Todos[id]; ok {
			items = append(items, item)
		}
	}
	active := 0
	for _, item := range items {
		if !terminal(item.Status) {
			active++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s\n", s.ID)
	fmt.Fprintf(&b, "Duration: %s\n", time.Since(s.CreatedAt).Round(time.Second))
	fmt.Fprintf(&b, "Todos: %d total, %d completed, %d failed, %d active\n",
		s.TotalTasks, s.CompletedTasks, s.FailedTasks, active)
	shown := 0
	for _, item := range items {
		if terminal(item.Status) {
			continue
		}
		fmt.Fprintf(&b, "  next: [%s] %s (%s)\n", item.ID, item.Content, item.Status)
		shown++
		if shown >= nextN {
			break
		}
	}
	return b.String()
}
