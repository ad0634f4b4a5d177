package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/keypass/internal/auth"
	"github.com/BradenHooton/keypass/internal/models"
	pkgauth "github.com/BradenHooton/keypass/pkg/auth"
	pkglogger "github.com/BradenHooton/keypass/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret-32-characters-long!!"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHasher() *pkgauth.Hasher {
	return pkgauth.NewHasher(bcrypt.MinCost)
}

// testClock is a settable time source shared by the services under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockUserRepository is an in-memory UserRepository. Func fields override the
// default behaviour for failure injection.
type MockUserRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
	seq   int

	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
	DeleteFunc     func(ctx context.Context, id string) error
	DemoteFunc     func(ctx context.Context, now time.Time) (int64, error)

	// UpdateErr fails every targeted column update when set
	UpdateErr error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*models.User)}
}

func copyUser(u *models.User) *models.User {
	c := *u
	if u.VerificationCode != nil {
		code := *u.VerificationCode
		c.VerificationCode = &code
	}
	if u.VerificationCodeExpiry != nil {
		exp := *u.VerificationCodeExpiry
		c.VerificationCodeExpiry = &exp
	}
	if u.SubscriptionExpiry != nil {
		exp := *u.SubscriptionExpiry
		c.SubscriptionExpiry = &exp
	}
	return &c
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, models.ErrConflict
		}
	}
	m.seq++
	user.ID = fmt.Sprintf("user-%d", m.seq)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = copyUser(user)
	return copyUser(user), nil
}

// modify applies fn to the stored user, mirroring a column-scoped UPDATE
func (m *MockUserRepository) modify(id string, fn func(u *models.User)) (*models.User, error) {
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return copyUser(u), nil
}

func (m *MockUserRepository) SetVerificationCode(ctx context.Context, id, code string, expiresAt time.Time) (*models.User, error) {
	return m.modify(id, func(u *models.User) { u.SetVerificationCode(code, expiresAt) })
}

func (m *MockUserRepository) SetResendAfter(ctx context.Context, id string, at time.Time) error {
	_, err := m.modify(id, func(u *models.User) { u.LastOtpSentTime = at })
	return err
}

func (m *MockUserRepository) StartSession(ctx context.Context, id, token string) (*models.User, error) {
	return m.modify(id, func(u *models.User) {
		u.SessionToken = token
		u.ClearVerificationCode()
	})
}

func (m *MockUserRepository) ResetPin(ctx context.Context, id, pinHash string) error {
	_, err := m.modify(id, func(u *models.User) {
		u.PinHash = pinHash
		u.ClearVerificationCode()
	})
	return err
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id, fullName string) (*models.User, error) {
	return m.modify(id, func(u *models.User) { u.FullName = fullName })
}

func (m *MockUserRepository) UpdatePin(ctx context.Context, id, pinHash string) (*models.User, error) {
	return m.modify(id, func(u *models.User) { u.PinHash = pinHash })
}

func (m *MockUserRepository) UpdateSubscription(ctx context.Context, id, plan, duration string, expiry *time.Time) (*models.User, error) {
	return m.modify(id, func(u *models.User) {
		u.Plan = plan
		u.SubscriptionDuration = duration
		u.SubscriptionExpiry = expiry
	})
}

func (m *MockUserRepository) UpdatePhrase(ctx context.Context, id string, phrase models.RecoveryPhrase) (*models.User, error) {
	return m.modify(id, func(u *models.User) {
		u.HashedPhrase = phrase.HashedPhrase
		u.HashedAnswer = phrase.HashedAnswer
		u.EncryptedPhrase = phrase.EncryptedPhrase
		u.SecurityQuestion = phrase.SecurityQuestion
		u.IsPhraseSet = true
	})
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) DemoteExpiredSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	if m.DemoteFunc != nil {
		return m.DemoteFunc(ctx, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if u.Plan == models.PlanPremium && u.SubscriptionExpiry != nil && !u.SubscriptionExpiry.After(now) {
			u.Plan = models.PlanFree
			u.SubscriptionExpiry = nil
			n++
		}
	}
	return n, nil
}

// seed stores u directly and returns its stored copy
func (m *MockUserRepository) seed(u *models.User) *models.User {
	created, err := m.Create(context.Background(), u)
	if err != nil {
		panic(err)
	}
	return created
}

// MockRecordRepository is an in-memory RecordRepository
type MockRecordRepository struct {
	mu      sync.Mutex
	records map[string]*models.Record
	order   map[string]int
	seq     int

	DeleteByOwnerFunc func(ctx context.Context, ownerID string) (int64, error)
}

func NewMockRecordRepository() *MockRecordRepository {
	return &MockRecordRepository{
		records: make(map[string]*models.Record),
		order:   make(map[string]int),
	}
}

func copyRecord(r *models.Record) *models.Record {
	c := *r
	if r.DataRecycleExpiry != nil {
		exp := *r.DataRecycleExpiry
		c.DataRecycleExpiry = &exp
	}
	return &c
}

// sorted returns matching records oldest first (creation time, then insertion)
func (m *MockRecordRepository) sorted(match func(*models.Record) bool) []*models.Record {
	out := make([]*models.Record, 0)
	for _, r := range m.records {
		if match(r) {
			out = append(out, copyRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return m.order[out[i].ID] < m.order[out[j].ID]
	})
	return out
}

func (m *MockRecordRepository) Create(ctx context.Context, record *models.Record) (*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	record.ID = fmt.Sprintf("rec-%d", m.seq)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.UpdatedAt = record.CreatedAt
	m.records[record.ID] = copyRecord(record)
	m.order[record.ID] = m.seq
	return copyRecord(record), nil
}

func (m *MockRecordRepository) GetByID(ctx context.Context, id string) (*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		return copyRecord(r), nil
	}
	return nil, models.ErrNotFound
}

func (m *MockRecordRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			out = append(out, copyRecord(r))
		}
	}
	return out, nil
}

func (m *MockRecordRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asc := m.sorted(func(r *models.Record) bool { return r.OwnerID == ownerID })
	out := make([]*models.Record, len(asc))
	for i, r := range asc {
		out[len(asc)-1-i] = r
	}
	return out, nil
}

func (m *MockRecordRepository) ListActiveByOwner(ctx context.Context, ownerID string) ([]*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(r *models.Record) bool {
		return r.OwnerID == ownerID && r.Status == models.StatusActive
	}), nil
}

func (m *MockRecordRepository) CountActiveByOwner(ctx context.Context, ownerID string) (int, error) {
	active, _ := m.ListActiveByOwner(ctx, ownerID)
	return len(active), nil
}

func (m *MockRecordRepository) UpdateContent(ctx context.Context, record *models.Record) (*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[record.ID]
	if !ok {
		return nil, models.ErrNotFound
	}
	stored.Title = record.Title
	stored.EncryptedData = record.EncryptedData
	stored.Salt = record.Salt
	return copyRecord(stored), nil
}

func (m *MockRecordRepository) SetStatus(ctx context.Context, ids []string, status string, recycleExpiry *time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			r.Status = status
			r.DataRecycleExpiry = nil
			if recycleExpiry != nil {
				exp := *recycleExpiry
				r.DataRecycleExpiry = &exp
			}
			n++
		}
	}
	return n, nil
}

func (m *MockRecordRepository) UpdatePlans(ctx context.Context, ownerID string, freeIDs, premiumIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range freeIDs {
		if r, ok := m.records[id]; ok && r.OwnerID == ownerID {
			r.Plan = models.PlanFree
		}
	}
	for _, id := range premiumIDs {
		if r, ok := m.records[id]; ok && r.OwnerID == ownerID {
			r.Plan = models.PlanPremium
		}
	}
	return nil
}

func (m *MockRecordRepository) Delete(ctx context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.records[id]; ok {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *MockRecordRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	if m.DeleteByOwnerFunc != nil {
		return m.DeleteByOwnerFunc(ctx, ownerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.records {
		if r.OwnerID == ownerID {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *MockRecordRepository) DeleteExpiredRecycled(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.records {
		if r.Status == models.StatusRecycle && r.DataRecycleExpiry != nil && !r.DataRecycleExpiry.After(now) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

// MockMailer captures outbound emails
type MockMailer struct {
	mu       sync.Mutex
	Sent     []EmailMessage
	SendFunc func(ctx context.Context, msg EmailMessage) (string, error)
}

func (m *MockMailer) Send(ctx context.Context, msg EmailMessage) (string, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, msg)
	return fmt.Sprintf("msg-%d", len(m.Sent)), nil
}

func (m *MockMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

func (m *MockMailer) last() EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Sent[len(m.Sent)-1]
}

// sequenceCodes hands out predefined codes in order, then repeats the last one
type sequenceCodes struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (g *sequenceCodes) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := g.codes[min(g.next, len(g.codes)-1)]
	g.next++
	return code, nil
}

// MockPaymentVerifier is a mock implementation of PaymentVerifier
type MockPaymentVerifier struct {
	VerifyFunc func(ctx context.Context, reference string) (*PaymentResult, error)
}

func (m *MockPaymentVerifier) Verify(ctx context.Context, reference string) (*PaymentResult, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, reference)
	}
	return &PaymentResult{Reference: reference, Status: "success"}, nil
}

// authFixture wires an AuthService to in-memory collaborators
type authFixture struct {
	svc    *AuthService
	users  *MockUserRepository
	mailer *MockMailer
	codes  *sequenceCodes
	clock  *testClock
	tm     *auth.TokenManager
	guard  *auth.SessionGuard
}

func newAuthFixture(guestEmails ...string) *authFixture {
	clock := newTestClock()
	users := NewMockUserRepository()
	mailer := &MockMailer{}
	codes := &sequenceCodes{codes: []string{"111111", "222222", "333333", "444444"}}

	tm := auth.NewTokenManager(testJWTSecret, 7*24*time.Hour)
	tm.SetClock(clock.Now)

	guest := auth.NewGuestPolicy(len(guestEmails) > 0, guestEmails, "295761", 7*24*time.Hour)
	logger := discardLogger()

	svc := NewAuthService(users, testHasher(), codes, tm, guest,
		NewNotifier(mailer, "", logger), logger, pkglogger.NewAuditLogger(logger),
		AuthSettings{OTPTTL: 5 * time.Minute, ResendCooldown: 2 * time.Minute})
	svc.SetClock(clock.Now)

	return &authFixture{
		svc:    svc,
		users:  users,
		mailer: mailer,
		codes:  codes,
		clock:  clock,
		tm:     tm,
		guard:  auth.NewSessionGuard(tm, users, logger, pkglogger.NewAuditLogger(logger)),
	}
}

func newRecordService(repo RecordRepository, clock *testClock, strict bool) *RecordService {
	svc := NewRecordService(repo, discardLogger(), RecordSettings{
		FreeQuota:           5,
		RecycleRetention:    30 * 24 * time.Hour,
		StrictBulkOwnership: strict,
	})
	svc.SetClock(clock.Now)
	return svc
}
