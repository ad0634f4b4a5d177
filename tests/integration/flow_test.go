//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/keypass/internal/handlers"
	"github.com/BradenHooton/keypass/internal/models"
	"github.com/BradenHooton/keypass/internal/repositories"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = SetupTestDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration setup failed: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := testDB.Teardown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "integration teardown failed: %v\n", err)
	}
	os.Exit(code)
}

func newServer(t *testing.T) *TestServer {
	t.Helper()
	require.NoError(t, testDB.CleanupTables(context.Background()))
	ts := NewTestServer(testDB.DB)
	t.Cleanup(ts.Close)
	return ts
}

// signIn registers email and completes the email code step, returning the session token
func signIn(t *testing.T, ts *TestServer, email string) string {
	t.Helper()

	resp, err := ts.Request("POST", "/register", handlers.RegisterRequest{
		FullName: "Ada Lovelace", Email: email, Pin: TestPin, Salt: "client-salt",
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	return verify(t, ts, email)
}

func verify(t *testing.T, ts *TestServer, email string) string {
	t.Helper()

	msg := ts.Mailer.LastTo(email)
	require.NotNil(t, msg, "no code was emailed to %s", email)
	code := ExtractCodeFromEmail(msg.Text)
	require.NotEmpty(t, code)

	resp, err := ts.Request("POST", "/verify-email", handlers.VerifyEmailRequest{Email: email, Otp: code}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session handlers.SessionResponse
	require.NoError(t, ParseJSONResponse(resp, &session))
	require.NotEmpty(t, session.Token)
	return session.Token
}

func createRecord(t *testing.T, ts *TestServer, token, title string) *http.Response {
	t.Helper()
	resp, err := ts.RequestWithAuth("POST", "/data/create", token, handlers.CreateRecordRequest{
		Title: title, EncryptedData: "cipher-" + title, Salt: "s", Category: "password",
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterAndVerify(t *testing.T) {
	ts := newServer(t)
	email := TestEmail("verify")

	token := signIn(t, ts, email)

	resp, err := ts.RequestWithAuth("GET", "/authenticate-user", token, nil)
	require.NoError(t, err)
	var env handlers.UserEnvelope
	require.NoError(t, ParseJSONResponse(resp, &env))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, email, env.User.Email)
	assert.False(t, env.User.VerificationPending)

	// Codes are single use
	code := ExtractCodeFromEmail(ts.Mailer.LastTo(email).Text)
	resp, err = ts.Request("POST", "/verify-email", handlers.VerifyEmailRequest{Email: email, Otp: code}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRegister_DuplicateEmailIgnoresCase(t *testing.T) {
	ts := newServer(t)
	email := TestEmail("dup")
	signIn(t, ts, email)

	resp, err := ts.Request("POST", "/register", handlers.RegisterRequest{
		FullName: "Other", Email: "  " + strings.ToUpper(email), Pin: TestPin,
	}, nil)
	require.NoError(t, err)
	code, err := ParseErrorCode(resp)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", code)
}

func TestNewLoginSupersedesOldSession(t *testing.T) {
	ts := newServer(t)
	email := TestEmail("supersede")
	first := signIn(t, ts, email)

	resp, err := ts.Request("POST", "/login", handlers.LoginRequest{Email: email, Pin: TestPin}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	second := verify(t, ts, email)
	require.NotEqual(t, first, second)

	resp, err = ts.RequestWithAuth("GET", "/datas/user", first, nil)
	require.NoError(t, err)
	code, err := ParseErrorCode(resp)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "session_superseded", code)

	resp, err = ts.RequestWithAuth("GET", "/datas/user", second, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestRecordQuotaRecycleAndPremium(t *testing.T) {
	ts := newServer(t)
	email := TestEmail("quota")
	token := signIn(t, ts, email)

	var firstID string
	for i := 0; i < 5; i++ {
		resp := createRecord(t, ts, token, fmt.Sprintf("record-%d", i))
		var env handlers.RecordEnvelope
		require.NoError(t, ParseJSONResponse(resp, &env))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, models.PlanFree, env.Data.Plan)
		if i == 0 {
			firstID = env.Data.ID
		}
	}

	resp := createRecord(t, ts, token, "over-quota")
	code, err := ParseErrorCode(resp)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "quota_exceeded", code)

	// Recycling frees a slot and stamps the retention deadline
	resp, err = ts.RequestWithAuth("POST", "/data/change-status", token,
		handlers.ChangeStatusRequest{ID: firstID, Status: models.StatusRecycle})
	require.NoError(t, err)
	var list handlers.RecordsEnvelope
	require.NoError(t, ParseJSONResponse(resp, &list))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, r := range list.Data {
		if r.ID == firstID {
			assert.Equal(t, models.StatusRecycle, r.Status)
			assert.NotNil(t, r.DataRecycleExpiry)
		}
	}

	resp = createRecord(t, ts, token, "fits-again")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Unsettled payments leave the plan alone
	resp, err = ts.RequestWithAuth("POST", "/user/subscribe", token,
		handlers.SubscribeRequest{Duration: models.DurationOneMonth, PaymentReference: "ref-unpaid"})
	require.NoError(t, err)
	code, err = ParseErrorCode(resp)
	require.NoError(t, err)
	assert.Equal(t, "payment_verification_failed", code)

	ts.Payments.Settled["ref-paid"] = true
	resp, err = ts.RequestWithAuth("POST", "/user/subscribe", token,
		handlers.SubscribeRequest{Duration: models.DurationOneMonth, PaymentReference: "ref-paid"})
	require.NoError(t, err)
	var sub handlers.UserEnvelope
	require.NoError(t, ParseJSONResponse(resp, &sub))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.PlanPremium, sub.User.Plan)
	require.NotNil(t, sub.User.SubscriptionExpiry)

	// Beyond the free quota, records are tagged premium
	resp = createRecord(t, ts, token, "premium-only")
	var env handlers.RecordEnvelope
	require.NoError(t, ParseJSONResponse(resp, &env))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.PlanPremium, env.Data.Plan)

	// Everything goes with the account
	resp, err = ts.RequestWithAuth("POST", "/user/delete", token,
		handlers.DeleteAccountRequest{Pin: TestPin, Reason: "testing"})
	require.NoError(t, err)
	var deleted handlers.DeleteAccountResponse
	require.NoError(t, ParseJSONResponse(resp, &deleted))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(7), deleted.RecordsDeleted)

	resp, err = ts.RequestWithAuth("GET", "/authenticate-user", token, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	admin := ts.Mailer.LastTo("admin@keypass.test")
	require.NotNil(t, admin)
	assert.Contains(t, admin.Text, "7 records")
}

func TestDailySweeps(t *testing.T) {
	ts := newServer(t)
	ctx := context.Background()
	users := repositories.NewUserRepository(testDB.DB)
	records := repositories.NewRecordRepository(testDB.DB)

	lapsed, err := SeedUser(ctx, testDB.DB, TestEmail("lapsed"), TestPin)
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	_, err = users.UpdateSubscription(ctx, lapsed.ID, models.PlanPremium, models.DurationOneMonth, &past)
	require.NoError(t, err)

	current, err := SeedUser(ctx, testDB.DB, TestEmail("current"), TestPin)
	require.NoError(t, err)
	future := time.Now().Add(24 * time.Hour)
	_, err = users.UpdateSubscription(ctx, current.ID, models.PlanPremium, models.DurationOneMonth, &future)
	require.NoError(t, err)

	expired, err := SeedRecord(ctx, testDB.DB, current.ID, "expired", time.Now().Add(-40*24*time.Hour))
	require.NoError(t, err)
	fresh, err := SeedRecord(ctx, testDB.DB, current.ID, "fresh", time.Now())
	require.NoError(t, err)
	_, err = records.SetStatus(ctx, []string{expired.ID}, models.StatusRecycle, &past)
	require.NoError(t, err)
	_, err = records.SetStatus(ctx, []string{fresh.ID}, models.StatusRecycle, &future)
	require.NoError(t, err)

	assert.Equal(t, int64(1), ts.Subscriptions.DemoteExpired(ctx))
	assert.Equal(t, int64(1), ts.Records.SweepExpired(ctx))

	got, err := users.GetByID(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, got.Plan)

	got, err = users.GetByID(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanPremium, got.Plan)

	_, err = records.GetByID(ctx, expired.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = records.GetByID(ctx, fresh.ID)
	assert.NoError(t, err)

	// A second run finds nothing
	assert.Equal(t, int64(0), ts.Subscriptions.DemoteExpired(ctx))
	assert.Equal(t, int64(0), ts.Records.SweepExpired(ctx))
}

func TestUserWithRecordsCannotBeDeletedDirectly(t *testing.T) {
	newServer(t)
	ctx := context.Background()

	user, err := SeedUser(ctx, testDB.DB, TestEmail("restrict"), TestPin)
	require.NoError(t, err)
	_, err = SeedRecord(ctx, testDB.DB, user.ID, "kept", time.Now())
	require.NoError(t, err)

	err = repositories.NewUserRepository(testDB.DB).Delete(ctx, user.ID)
	assert.Error(t, err)
}

func TestTargetedUpdatesKeepSession(t *testing.T) {
	newServer(t)
	ctx := context.Background()
	users := repositories.NewUserRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.DB, TestEmail("targeted"), TestPin)
	require.NoError(t, err)
	_, err = users.StartSession(ctx, user.ID, "token-b")
	require.NoError(t, err)
	_, err = users.SetVerificationCode(ctx, user.ID, "333333", time.Now().Add(5*time.Minute))
	require.NoError(t, err)

	expiry := time.Now().Add(30 * 24 * time.Hour)
	_, err = users.UpdateSubscription(ctx, user.ID, models.PlanPremium, models.DurationOneMonth, &expiry)
	require.NoError(t, err)
	_, err = users.UpdateProfile(ctx, user.ID, "Renamed")
	require.NoError(t, err)
	stored, err := users.UpdatePhrase(ctx, user.ID, models.RecoveryPhrase{HashedPhrase: "hp", HashedAnswer: "ha"})
	require.NoError(t, err)

	assert.Equal(t, "token-b", stored.SessionToken)
	require.True(t, stored.HasPendingCode())
	assert.Equal(t, "333333", *stored.VerificationCode)
	assert.Equal(t, models.PlanPremium, stored.Plan)
	assert.Equal(t, "Renamed", stored.FullName)
	assert.True(t, stored.IsPhraseSet)

	_, err = users.UpdatePin(ctx, "not-a-uuid", "hash")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
