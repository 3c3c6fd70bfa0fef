package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tharamac2/Tharamac/internal/model"
)

// The memory repos back local development without Postgres and the unit tests.
// State lives in the value returned by the constructor, never in package globals.

type memoryOtpRepo struct {
	mu   sync.Mutex
	reqs map[string]model.OtpRequest
}

// NewMemoryOtpRepo returns an in-process OtpRepo.
func NewMemoryOtpRepo() OtpRepo {
	return &memoryOtpRepo{reqs: make(map[string]model.OtpRequest)}
}

func (r *memoryOtpRepo) Replace(ctx context.Context, req model.OtpRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req.AttemptCount = 0
	req.CodeHash = append([]byte(nil), req.CodeHash...)
	r.reqs[req.PhoneNumber] = req
	return nil
}

func (r *memoryOtpRepo) Update(ctx context.Context, phone string, fn func(req *model.OtpRequest) (OtpAction, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.reqs[phone]
	if !ok {
		return ErrNotFound
	}
	action, err := fn(&req)
	if action == OtpDelete {
		delete(r.reqs, phone)
	} else {
		r.reqs[phone] = req
	}
	return err
}

func (r *memoryOtpRepo) Purge(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for phone, req := range r.reqs {
		if req.ExpiresAt.Before(before) {
			delete(r.reqs, phone)
			n++
		}
	}
	return n, nil
}

type memoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]model.User
	byPhone map[string]uuid.UUID
}

// NewMemoryUserRepo returns an in-process UserRepo.
func NewMemoryUserRepo() UserRepo {
	return &memoryUserRepo{
		byID:    make(map[uuid.UUID]model.User),
		byPhone: make(map[string]uuid.UUID),
	}
}

func (r *memoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (r *memoryUserRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPhone[phone]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *memoryUserRepo) GetOrCreateByPhone(ctx context.Context, phone, name, businessName string) (model.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byPhone[phone]; ok {
		return r.byID[id], false, nil
	}
	now := time.Now().UTC()
	u := model.User{
		ID:           uuid.New(),
		PhoneNumber:  phone,
		Name:         name,
		BusinessName: businessName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[u.ID] = u
	r.byPhone[phone] = u.ID
	return u, true, nil
}

func (r *memoryUserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, name, businessName string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	if name != "" {
		u.Name = name
	}
	if businessName != "" {
		u.BusinessName = businessName
	}
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u
	return u, nil
}

type memorySessionRepo struct {
	mu     sync.Mutex
	byHash map[string]model.Session
}

// NewMemorySessionRepo returns an in-process SessionRepo.
func NewMemorySessionRepo() SessionRepo {
	return &memorySessionRepo{byHash: make(map[string]model.Session)}
}

func (r *memorySessionRepo) Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := model.Session{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	r.byHash[tokenHash] = s
	return s, nil
}

func (r *memorySessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[tokenHash]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return s, nil
}

func (r *memorySessionRepo) GetByID(ctx context.Context, sessionID uuid.UUID) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byHash {
		if s.ID == sessionID {
			return s, nil
		}
	}
	return model.Session{}, ErrNotFound
}

func (r *memorySessionRepo) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, s := range r.byHash {
		if s.ID != sessionID {
			continue
		}
		if s.RevokedAt == nil {
			now := time.Now().UTC()
			s.RevokedAt = &now
			r.byHash[hash] = s
		}
		return nil
	}
	return ErrNotFound
}

func (r *memorySessionRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for hash, s := range r.byHash {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
			r.byHash[hash] = s
			n++
		}
	}
	return n, nil
}
