// Package memstore is an in-memory implementation of the repository
// contracts, used by service and handler tests. It enforces the same
// uniqueness rules and cascades as the SQL schema.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/student-records/internal/model"
	"github.com/iliyamo/student-records/internal/permission"
	"github.com/iliyamo/student-records/internal/repository"
)

// DB holds all tables behind one mutex.
type DB struct {
	mu        sync.Mutex
	users     map[int64]model.User
	tokens    map[string]model.RefreshToken
	students  map[int64]model.Student
	audit     []model.AuditLog
	nextUser  int64
	nextStud  int64
	nextAudit int64
}

// New returns an empty store. Role rows are implied by package permission.
func New() *DB {
	return &DB{
		users:    map[int64]model.User{},
		tokens:   map[string]model.RefreshToken{},
		students: map[int64]model.Student{},
	}
}

// Users, Tokens, Students and Audit return views sharing one lock.
func (db *DB) Users() *Users       { return &Users{db} }
func (db *DB) Tokens() *Tokens     { return &Tokens{db} }
func (db *DB) Students() *Students { return &Students{db} }
func (db *DB) Audit() *Audit       { return &Audit{db} }

func withRole(u model.User) *model.User {
	for _, name := range permission.RoleNames() {
		if id, _ := permission.RoleID(name); id == u.RoleID {
			u.Role = &model.Role{ID: id, Name: name}
		}
	}
	return &u
}

// Users implements the user store.
type Users struct{ db *DB }

func (s *Users) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email == email {
			return withRole(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Users) FindByID(_ context.Context, id int64) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return withRole(u), nil
}

func (s *Users) EmailTaken(_ context.Context, email string, exceptID int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.emailOwner(email, exceptID), nil
}

func (db *DB) emailOwner(email string, exceptID int64) bool {
	for id, u := range db.users {
		if u.Email == email && id != exceptID {
			return true
		}
	}
	return false
}

func (s *Users) Create(_ context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.emailOwner(u.Email, 0) {
		return repository.ErrEmailExists
	}
	s.db.nextUser++
	now := time.Now().UTC()
	u.ID, u.CreatedAt, u.UpdatedAt = s.db.nextUser, now, now
	row := *u
	row.Role = nil
	s.db.users[u.ID] = row
	return nil
}

func (s *Users) Update(_ context.Context, id int64, ch repository.UserChanges) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if ch.Email != nil {
		if s.db.emailOwner(*ch.Email, id) {
			return repository.ErrEmailExists
		}
		u.Email = *ch.Email
	}
	if ch.Name != nil {
		u.Name = *ch.Name
	}
	if ch.PasswordHash != nil {
		u.PasswordHash = *ch.PasswordHash
	}
	if ch.RoleID != nil {
		u.RoleID = *ch.RoleID
	}
	if ch.IsActive != nil {
		u.IsActive = *ch.IsActive
	}
	u.UpdatedAt = time.Now().UTC()
	s.db.users[id] = u
	return nil
}

// Delete removes the user and cascades to its refresh tokens.
func (s *Users) Delete(_ context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.db.users, id)
	for h, t := range s.db.tokens {
		if t.UserID == id {
			delete(s.db.tokens, h)
		}
	}
	return nil
}

func (s *Users) List(_ context.Context, p repository.ListParams) (repository.Page[model.User], error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var rows []model.User
	for _, u := range s.db.users {
		if matches(p.Search, u.Name, u.Email) {
			rows = append(rows, *withRole(u))
		}
	}
	slices.SortFunc(rows, func(a, b model.User) int { return int(a.ID - b.ID) })
	return paginate(rows, p), nil
}

// Tokens implements the refresh token store.
type Tokens struct{ db *DB }

// Store makes tokenHash the user's only refresh token. The old row is
// dropped under the same lock, matching the unique user_id index.
func (s *Tokens) Store(_ context.Context, userID int64, tokenHash string, exp time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for h, t := range s.db.tokens {
		if t.UserID == userID {
			delete(s.db.tokens, h)
		}
	}
	s.db.tokens[tokenHash] = model.RefreshToken{TokenHash: tokenHash, UserID: userID, ExpiresAt: exp, CreatedAt: time.Now().UTC()}
	return nil
}

// Find returns the row for tokenHash or repository.ErrNotFound.
func (s *Tokens) Find(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tokens[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

// DeleteByHash reports whether this call removed the row.
func (s *Tokens) DeleteByHash(_ context.Context, tokenHash string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	_, ok := s.db.tokens[tokenHash]
	delete(s.db.tokens, tokenHash)
	return ok, nil
}

// DeleteByUser removes every token of the user.
func (s *Tokens) DeleteByUser(_ context.Context, userID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for h, t := range s.db.tokens {
		if t.UserID == userID {
			delete(s.db.tokens, h)
		}
	}
	return nil
}

// CountForUser returns how many refresh tokens the user holds.
func (s *Tokens) CountForUser(userID int64) int {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, t := range s.db.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// Students implements the student store.
type Students struct{ db *DB }

func (s *Students) nisnTaken(nisn string, exceptID int64) bool {
	for id, st := range s.db.students {
		if st.NISN == nisn && id != exceptID {
			return true
		}
	}
	return false
}

func (s *Students) FindByID(_ context.Context, id int64) (*model.Student, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	st, ok := s.db.students[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &st, nil
}

func (s *Students) Create(_ context.Context, st *model.Student) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.nisnTaken(st.NISN, 0) {
		return repository.ErrConflict
	}
	s.db.nextStud++
	now := time.Now().UTC()
	st.ID, st.CreatedAt, st.UpdatedAt = s.db.nextStud, now, now
	s.db.students[st.ID] = *st
	return nil
}

func (s *Students) Update(_ context.Context, st *model.Student) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	old, ok := s.db.students[st.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.nisnTaken(st.NISN, st.ID) {
		return repository.ErrConflict
	}
	st.CreatedAt = old.CreatedAt
	st.UpdatedAt = time.Now().UTC()
	s.db.students[st.ID] = *st
	return nil
}

func (s *Students) Delete(_ context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.students[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.db.students, id)
	return nil
}

func (s *Students) List(_ context.Context, p repository.ListParams) (repository.Page[model.Student], error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var rows []model.Student
	for _, st := range s.db.students {
		if matches(p.Search, st.Name, st.NISN) {
			rows = append(rows, st)
		}
	}
	slices.SortFunc(rows, func(a, b model.Student) int { return int(a.ID - b.ID) })
	return paginate(rows, p), nil
}

func (s *Students) All(ctx context.Context) ([]model.Student, error) {
	page, err := s.List(ctx, repository.ListParams{PerPage: 1 << 30})
	return page.Rows, err
}

// Audit implements the audit log store.
type Audit struct{ db *DB }

func (s *Audit) Insert(_ context.Context, entry *model.AuditLog) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.nextAudit++
	entry.ID = s.db.nextAudit
	s.db.audit = append(s.db.audit, *entry)
	return nil
}

// Entries returns a copy of every inserted row.
func (s *Audit) Entries() []model.AuditLog {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return slices.Clone(s.db.audit)
}

func matches(search string, fields ...string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

func paginate[T any](rows []T, p repository.ListParams) repository.Page[T] {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 10
	}
	total := len(rows)
	start := min((p.Page-1)*p.PerPage, total)
	end := min(start+p.PerPage, total)
	page := repository.Page[T]{Rows: append([]T{}, rows[start:end]...)}
	page.Meta = repository.PageMeta{Page: p.Page, PerPage: p.PerPage, TotalRows: total}
	if total > 0 {
		page.Meta.TotalPage = (total + p.PerPage - 1) / p.PerPage
	}
	return page
}
