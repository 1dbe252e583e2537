// Package ideas keeps a local, ordered copy of the ideas table and applies
// every change to the backend first, then to the copy.
package ideas

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/letieu/idea-store/internal/database"
	"github.com/letieu/idea-store/internal/notify"
)

// Table is the remote ideas table. database.Client.Ideas() and
// database.DB.Ideas() both satisfy it.
type Table interface {
	Select(ctx context.Context, q database.Query) ([]database.Idea, error)
	Insert(ctx context.Context, row database.IdeaInsert) (database.Idea, error)
	Update(ctx context.Context, id int64, patch database.IdeaUpdate) (database.Idea, error)
	Delete(ctx context.Context, id int64) error
	UpdateIn(ctx context.Context, ids []int64, patch database.IdeaUpdate) error
}

var listAll = database.Query{Order: []database.Order{database.Desc("created_at")}}

type Store struct {
	table    Table
	notifier notify.Notifier
	now      func() time.Time

	mu       sync.RWMutex
	ideas    []database.Idea
	inflight int  // fetches currently running
	fetched  bool // at least one fetch has completed
	err      string
}

// New returns an empty store that reports itself as loading until the first
// Fetch completes.
func New(table Table, notifier notify.Notifier) *Store {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Store{
		table:    table,
		notifier: notifier,
		now:      time.Now,
		ideas:    []database.Idea{},
	}
}

// Open is New followed by an initial Fetch. A failed fetch is recorded in
// Err, the store is returned either way.
func Open(ctx context.Context, table Table, notifier notify.Notifier) *Store {
	s := New(table, notifier)
	s.Fetch(ctx)
	return s
}

// Ideas returns a copy of the current list, newest first as of the last fetch.
func (s *Store) Ideas() []database.Idea {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ideas)
}

// Loading reports whether a fetch is running or none has finished yet.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0 || !s.fetched
}

// Err is the message of the last failed fetch, empty after a successful one.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Fetch replaces the list with every idea on the backend, newest first. On
// failure the list is kept and the error is both stored and returned.
func (s *Store) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.inflight++
	s.err = ""
	s.mu.Unlock()

	rows, err := s.table.Select(ctx, listAll)

	if err != nil {
		msg := errorMessage(err, "Failed to fetch ideas")
		s.mu.Lock()
		s.inflight--
		s.fetched = true
		s.err = msg
		s.mu.Unlock()

		log.Printf("Error fetching ideas: %v", err)
		s.notifier.Notify(failure(msg))
		return err
	}

	if rows == nil {
		rows = []database.Idea{}
	}
	s.mu.Lock()
	s.inflight--
	s.fetched = true
	s.ideas = rows
	s.mu.Unlock()
	return nil
}

// Create inserts an idea, defaulting status to "new" and priority_score to
// 0.5, and puts the saved row at the front of the list.
func (s *Store) Create(ctx context.Context, in database.IdeaInsert) (database.Idea, error) {
	if in.Status == nil {
		in.Status = database.Ptr(database.StatusNew)
	}
	if in.PriorityScore == nil {
		in.PriorityScore = database.Ptr(database.DefaultPriorityScore)
	}

	idea, err := s.table.Insert(ctx, in)
	if err != nil {
		log.Printf("Error creating idea: %v", err)
		s.notifier.Notify(failure(errorMessage(err, "Failed to create idea")))
		return database.Idea{}, err
	}

	s.mu.Lock()
	s.ideas = append([]database.Idea{idea}, s.ideas...)
	s.mu.Unlock()

	s.notifier.Notify(success("Idea created successfully"))
	return idea, nil
}

// Update patches one idea and swaps the saved row in at the same position.
func (s *Store) Update(ctx context.Context, id int64, patch database.IdeaUpdate) (database.Idea, error) {
	idea, err := s.table.Update(ctx, id, patch)
	if err != nil {
		log.Printf("Error updating idea %d: %v", id, err)
		s.notifier.Notify(failure(errorMessage(err, "Failed to update idea")))
		return database.Idea{}, err
	}

	s.mu.Lock()
	for i := range s.ideas {
		if s.ideas[i].ID == id {
			s.ideas[i] = idea
		}
	}
	s.mu.Unlock()

	s.notifier.Notify(success("Idea updated successfully"))
	return idea, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.table.Delete(ctx, id); err != nil {
		log.Printf("Error deleting idea %d: %v", id, err)
		s.notifier.Notify(failure(errorMessage(err, "Failed to delete idea")))
		return err
	}

	s.mu.Lock()
	s.ideas = slices.DeleteFunc(s.ideas, func(idea database.Idea) bool {
		return idea.ID == id
	})
	s.mu.Unlock()

	s.notifier.Notify(success("Idea deleted successfully"))
	return nil
}

// MarkUsed sets status "used" and used_at on all ids with a single backend
// update. The same timestamp is sent to the backend and kept locally.
func (s *Store) MarkUsed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	usedAt := s.now().UTC()
	patch := database.IdeaUpdate{
		Status: database.Ptr(database.StatusUsed),
		UsedAt: &usedAt,
	}

	if err := s.table.UpdateIn(ctx, ids, patch); err != nil {
		log.Printf("Error marking ideas as used: %v", err)
		s.notifier.Notify(failure(errorMessage(err, "Failed to mark ideas as used")))
		return err
	}

	s.mu.Lock()
	for i := range s.ideas {
		if slices.Contains(ids, s.ideas[i].ID) {
			s.ideas[i].Status = database.Ptr(database.StatusUsed)
			s.ideas[i].UsedAt = database.Ptr(usedAt)
		}
	}
	s.mu.Unlock()

	s.notifier.Notify(success(fmt.Sprintf("Marked %d ideas as used", len(ids))))
	return nil
}

func errorMessage(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}

func success(description string) notify.Notification {
	return notify.Notification{Title: "Success", Description: description}
}

func failure(description string) notify.Notification {
	return notify.Notification{Title: "Error", Description: description, Severity: notify.Destructive}
}
