package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/tasky/internal/model"
	"github.com/hitoshi/tasky/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// --- モック定義 ---

// memAccountRepo はメモリ上のAccountRepository。
type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.Account

	createFn func(ctx context.Context, account *model.Account) error
	updateFn func(ctx context.Context, account *model.Account) error
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[string]*model.Account)}
}

func (r *memAccountRepo) FindByID(_ context.Context, id string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memAccountRepo) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) Create(ctx context.Context, account *model.Account) error {
	if r.createFn != nil {
		return r.createFn(ctx, account)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == account.Email {
			return repository.ErrDuplicateEmail
		}
	}
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

func (r *memAccountRepo) Update(ctx context.Context, account *model.Account) error {
	if r.updateFn != nil {
		return r.updateFn(ctx, account)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

// put はテスト用にアカウントを直接登録する。
func (r *memAccountRepo) put(a *model.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.accounts[a.ID] = &cp
}

// recordingNotifier は送信依頼を記録するNotifier。
type recordingNotifier struct {
	mu           sync.Mutex
	welcomes     []string
	verification []string
	reset        []string
}

func (n *recordingNotifier) NotifyWelcome(_ context.Context, a *model.Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomes = append(n.welcomes, a.Email)
}

func (n *recordingNotifier) NotifyVerificationOTP(_ context.Context, _ *model.Account, code string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verification = append(n.verification, code)
}

func (n *recordingNotifier) NotifyResetOTP(_ context.Context, _ *model.Account, code string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset = append(n.reset, code)
}

// fakeClock は手動で進める時計。
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testHasher() *BcryptHasher {
	return &BcryptHasher{Cost: bcrypt.MinCost}
}
