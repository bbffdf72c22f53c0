package identity

import (
	"context"
	"sync"

	"warden/cmd/identity/ids"
)

// MemoryStore is an in-process Credential Store for development and tests.
//
// Locked reads take an exclusive per-key lock that is held until the
// transaction ends. Writes are staged in the transaction and applied at
// commit, after a final uniqueness check. Distinct keys never contend.
type MemoryStore struct {
	mu         sync.Mutex
	users      map[string]User   // id -> user
	byUsername map[string]string // username_norm -> id
	byEmail    map[string]string // email_norm -> id
	locks      map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int // holders + waiters
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		locks:      make(map[string]*keyLock),
	}
}

// Len returns the number of committed users.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// BeginTx starts a transaction. It never blocks.
func (s *MemoryStore) BeginTx(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{
		s:      s,
		held:   make(map[string]struct{}),
		staged: make(map[string]User),
		isNew:  make(map[string]bool),
	}, nil
}

func (s *MemoryStore) FindByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.FindByUsername"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	norm := NormalizeUsername(username)
	if norm == "" {
		return User{}, invalid(op, "username is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[s.byUsername[norm]]; ok {
		return cloneUser(u), nil
	}
	return User{}, notFoundUser(op)
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.FindByEmail"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	norm := NormalizeEmail(email)
	if norm == "" {
		return User{}, invalid(op, "email is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[s.byEmail[norm]]; ok {
		return cloneUser(u), nil
	}
	return User{}, notFoundUser(op)
}

// acquire blocks until key is held or ctx is done.
func (s *MemoryStore) acquire(ctx context.Context, key string) error {
	s.mu.Lock()
	l := s.locks[key]
	if l == nil {
		l = &keyLock{sem: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		s.dropRef(key, l)
		s.mu.Unlock()
		return ctx.Err()
	}
}

func (s *MemoryStore) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.locks[key]
	if l == nil {
		return
	}
	<-l.sem
	s.dropRef(key, l)
}

// dropRef must be called with s.mu held.
func (s *MemoryStore) dropRef(key string, l *keyLock) {
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

type memTx struct {
	s      *MemoryStore
	held   map[string]struct{}
	order  []string
	staged map[string]User // id -> pending row
	isNew  map[string]bool
	done   bool
}

func (t *memTx) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	if err := t.s.acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = struct{}{}
	t.order = append(t.order, key)
	return nil
}

func (t *memTx) FindByUsername(ctx context.Context, username string, lockForUpdate bool) (User, error) {
	const op = "identity.Tx.FindByUsername"

	if t.done {
		return User{}, txDone(op)
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	norm := NormalizeUsername(username)
	if norm == "" {
		return User{}, invalid(op, "username is required")
	}
	if lockForUpdate {
		if err := t.lock(ctx, usernameLockKey(norm)); err != nil {
			return User{}, err
		}
	}

	for _, u := range t.staged {
		if NormalizeUsername(u.Username) == norm {
			return cloneUser(u), nil
		}
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if u, ok := t.s.users[t.s.byUsername[norm]]; ok {
		return cloneUser(u), nil
	}
	return User{}, notFoundUser(op)
}

func (t *memTx) FindByEmail(ctx context.Context, email string, lockForUpdate bool) (User, error) {
	const op = "identity.Tx.FindByEmail"

	if t.done {
		return User{}, txDone(op)
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	norm := NormalizeEmail(email)
	if norm == "" {
		return User{}, invalid(op, "email is required")
	}
	if lockForUpdate {
		if err := t.lock(ctx, emailLockKey(norm)); err != nil {
			return User{}, err
		}
	}

	for _, u := range t.staged {
		if NormalizeEmail(u.Email) == norm {
			return cloneUser(u), nil
		}
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if u, ok := t.s.users[t.s.byEmail[norm]]; ok {
		return cloneUser(u), nil
	}
	return User{}, notFoundUser(op)
}

func (t *memTx) Create(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.Tx.Create"

	if t.done {
		return User{}, txDone(op)
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	in, err := validateCreate(op, in)
	if err != nil {
		return User{}, err
	}

	uNorm := NormalizeUsername(in.Username)
	eNorm := NormalizeEmail(in.Email)
	for _, u := range t.staged {
		if NormalizeUsername(u.Username) == uNorm {
			return User{}, ConflictError{Op: op, Field: "username"}
		}
		if NormalizeEmail(u.Email) == eNorm {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
	}
	t.s.mu.Lock()
	field := t.s.conflictLocked(uNorm, eNorm)
	t.s.mu.Unlock()
	if field != "" {
		return User{}, ConflictError{Op: op, Field: field}
	}

	id, err := ids.NewULID(in.Now)
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:             id,
		Username:       in.Username,
		Email:          in.Email,
		PasswordDigest: in.PasswordDigest,
		CreatedAt:      in.Now,
		UpdatedAt:      in.Now,
	}
	t.staged[id] = u
	t.isNew[id] = true
	return cloneUser(u), nil
}

func (t *memTx) Update(ctx context.Context, u User, in UpdateUserInput) (User, error) {
	const op = "identity.Tx.Update"

	if t.done {
		return User{}, txDone(op)
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	in, err := validateUpdate(op, u, in)
	if err != nil {
		return User{}, err
	}

	cur, ok := t.staged[u.ID]
	if !ok {
		t.s.mu.Lock()
		cur, ok = t.s.users[u.ID]
		t.s.mu.Unlock()
	}
	if !ok {
		return User{}, notFoundUser(op)
	}

	cur = cloneUser(cur)
	cur.UpdatedAt = in.Now
	if in.MarkVerified {
		cur.Verified = true
		if cur.VerifiedAt == nil {
			at := in.Now
			cur.VerifiedAt = &at
		}
	}
	if in.PasswordDigest != nil {
		cur.PasswordDigest = *in.PasswordDigest
	}
	t.staged[cur.ID] = cur
	return cloneUser(cur), nil
}

func (t *memTx) Commit(ctx context.Context) error {
	const op = "identity.Tx.Commit"

	if t.done {
		return txDone(op)
	}
	t.done = true
	defer t.releaseAll()

	if err := ctx.Err(); err != nil {
		return err
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for id, u := range t.staged {
		if !t.isNew[id] {
			if _, ok := t.s.users[id]; !ok {
				return notFoundUser(op)
			}
			continue
		}
		if field := t.s.conflictLocked(NormalizeUsername(u.Username), NormalizeEmail(u.Email)); field != "" {
			return ConflictError{Op: op, Field: field}
		}
	}

	for id, u := range t.staged {
		t.s.users[id] = u
		if t.isNew[id] {
			t.s.byUsername[NormalizeUsername(u.Username)] = id
			t.s.byEmail[NormalizeEmail(u.Email)] = id
		}
	}
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.releaseAll()
	return nil
}

func (t *memTx) releaseAll() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.s.release(t.order[i])
	}
	t.order = nil
	t.held = nil
	t.staged = nil
}

// conflictLocked must be called with s.mu held.
func (s *MemoryStore) conflictLocked(usernameNorm, emailNorm string) string {
	if _, ok := s.byUsername[usernameNorm]; ok {
		return "username"
	}
	if _, ok := s.byEmail[emailNorm]; ok {
		return "email"
	}
	return ""
}
