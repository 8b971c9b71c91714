package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/storefront-backend/internal/audit"
	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/internal/query"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memUserStore mirrors MongoUserStore semantics: inactive users are invisible.
type memUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[primitive.ObjectID]*models.User{}}
}

func (s *memUserStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUserStore) find(match func(*models.User) bool) (*models.User, error) {
	for _, u := range s.users {
		if u.Active && match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memUserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(u *models.User) bool { return u.ID == id })
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(u *models.User) bool { return u.Email == email })
}

func (s *memUserStore) FindByResetToken(_ context.Context, hashed string, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(u *models.User) bool { return u.PasswordResetToken == hashed && resetPending(u, now) })
}

func (s *memUserStore) mutate(match func(*models.User) bool, fn func(*models.User)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Active && match(u) {
			fn(u)
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func byID(id primitive.ObjectID) func(*models.User) bool {
	return func(u *models.User) bool { return u.ID == id }
}

func (s *memUserStore) SetResetToken(_ context.Context, id primitive.ObjectID, hashed string, expires time.Time) error {
	_, err := s.mutate(byID(id), func(u *models.User) {
		u.PasswordResetToken = hashed
		u.PasswordResetExpires = &expires
	})
	return err
}

func (s *memUserStore) ClearResetToken(_ context.Context, id primitive.ObjectID) error {
	_, err := s.mutate(byID(id), func(u *models.User) {
		u.PasswordResetToken = ""
		u.PasswordResetExpires = nil
	})
	return err
}

func setPassword(hash string, at time.Time) func(*models.User) {
	return func(u *models.User) {
		u.Password = hash
		u.PasswordChangedAt = &at
		u.PasswordResetToken = ""
		u.PasswordResetExpires = nil
		u.UpdatedAt = at
	}
}

func (s *memUserStore) ConsumeResetToken(_ context.Context, hashed string, now time.Time, passwordHash string) (*models.User, error) {
	return s.mutate(func(u *models.User) bool {
		return u.PasswordResetToken == hashed && resetPending(u, now)
	}, setPassword(passwordHash, now))
}

func (s *memUserStore) SetPassword(_ context.Context, id primitive.ObjectID, passwordHash string, changedAt time.Time) (*models.User, error) {
	return s.mutate(byID(id), setPassword(passwordHash, changedAt))
}

func (s *memUserStore) UpdateProfile(_ context.Context, id primitive.ObjectID, fields bson.M) (*models.User, error) {
	if email, ok := fields["email"].(string); ok {
		s.mu.Lock()
		for _, u := range s.users {
			if u.Email == email && u.ID != id {
				s.mu.Unlock()
				return nil, ErrDuplicateEmail
			}
		}
		s.mu.Unlock()
	}
	return s.mutate(byID(id), func(u *models.User) {
		if v, ok := fields["name"].(string); ok {
			u.Name = v
		}
		if v, ok := fields["email"].(string); ok {
			u.Email = v
		}
	})
}

func (s *memUserStore) Deactivate(_ context.Context, id primitive.ObjectID) error {
	_, err := s.mutate(byID(id), func(u *models.User) { u.Active = false })
	return err
}

func (s *memUserStore) List(_ context.Context, _ *query.Query) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, u := range s.users {
		if u.Active {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// raw returns the stored record regardless of the active flag.
func (s *memUserStore) raw(id primitive.ObjectID) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []Message
	fail func(Message) error
}

func (m *fakeMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		if err := m.fail(msg); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last() Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Message{}
	}
	return m.sent[len(m.sent)-1]
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (r *recordingAudit) Record(_ context.Context, e audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action+":"+e.Outcome)
	}
	return out
}

func (s *memUserStore) SetRole(_ context.Context, id primitive.ObjectID, role models.Role) error {
	_, err := s.mutate(byID(id), func(u *models.User) { u.Role = role })
	return err
}

func resetPending(u *models.User, now time.Time) bool {
	return u.PasswordResetToken != "" && u.PasswordResetExpires != nil && now.Before(*u.PasswordResetExpires)
}
