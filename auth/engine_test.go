package auth_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-passwordless/auth"
	"github.com/jrsteele09/go-passwordless/delivery"
	"github.com/jrsteele09/go-passwordless/internal/errors"
	"github.com/jrsteele09/go-passwordless/internal/metrics"
	"github.com/jrsteele09/go-passwordless/token"
	"github.com/jrsteele09/go-passwordless/token/memstore"
	"github.com/jrsteele09/go-passwordless/token/storetest"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	testContact = "alice"
	testUID     = "UID/alice"
)

type sentToken struct {
	token     string
	uid       string
	recipient string
}

// testFixture holds all test dependencies
type testFixture struct {
	clock    *storetest.Clock
	store    *memstore.InMemoryStore
	registry *delivery.Registry
	engine   *auth.Engine

	mu       sync.Mutex
	sent     []sentToken
	accepted []string
}

// verify maps "x" to "UID/x"; "unknown" is not a user and "error" breaks the directory.
func verify(_ context.Context, contact string) (string, error) {
	switch contact {
	case "unknown":
		return "", nil
	case "error":
		return "", pkgerrors.New("directory unavailable")
	default:
		return "UID/" + contact, nil
	}
}

func (f *testFixture) send(_ context.Context, tok, uid, recipient string) error {
	if uid == "UID/deliveryError" {
		return pkgerrors.New("mailbox full")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentToken{token: tok, uid: uid, recipient: recipient})
	return nil
}

// setupTestFixture creates a new test fixture with all dependencies
func setupTestFixture(t *testing.T, options ...auth.EngineOption) *testFixture {
	t.Helper()

	f := &testFixture{clock: storetest.NewClock()}
	f.store = memstore.New(memstore.WithNowFunc(f.clock.Now))

	registry, err := delivery.NewRegistry(
		delivery.Adapter{Name: "email", Verify: verify, Send: f.send},
		delivery.Adapter{Name: "sms", Verify: verify, Send: f.send, TTL: 5 * time.Minute, Generator: token.NewNumericGenerator(6)},
	)
	require.NoError(t, err)
	f.registry = registry

	options = append([]auth.EngineOption{
		auth.WithNowTime(f.clock.Now),
		auth.WithAcceptHook(func(_ context.Context, uid string) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.accepted = append(f.accepted, uid)
			return nil
		}),
	}, options...)

	engine, err := auth.NewEngine(f.store, registry, options...)
	require.NoError(t, err)
	f.engine = engine
	return f
}

func (f *testFixture) length(t *testing.T) int {
	t.Helper()
	n, err := f.store.Length(context.Background())
	require.NoError(t, err)
	return n
}

func TestNewEngineValidation(t *testing.T) {
	registry, err := delivery.NewRegistry(delivery.Adapter{Name: "email", Verify: verify, Send: func(context.Context, string, string, string) error { return nil }})
	require.NoError(t, err)
	empty, err := delivery.NewRegistry()
	require.NoError(t, err)

	_, err = auth.NewEngine(nil, registry)
	require.Error(t, err)

	_, err = auth.NewEngine(memstore.New(), nil)
	require.Error(t, err)

	_, err = auth.NewEngine(memstore.New(), empty)
	require.Error(t, err)

	_, err = auth.NewEngine(memstore.New(), registry, auth.WithTTL(0))
	require.Error(t, err)
}

func TestRequestTokenIssuesAndDelivers(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	issued, err := f.engine.RequestToken(ctx, testContact, "", "/restricted")
	require.NoError(t, err)
	require.Equal(t, testUID, issued.UID)
	require.Equal(t, "email", issued.Delivery)
	require.Len(t, issued.Token, 32)
	require.Equal(t, f.clock.Now().Add(auth.DefaultTTL), issued.ExpiresAt)

	require.Len(t, f.sent, 1)
	require.Equal(t, sentToken{token: issued.Token, uid: testUID, recipient: testContact}, f.sent[0])
	require.Equal(t, 1, f.length(t))

	record, err := f.engine.AcceptToken(ctx, issued.Token, "")
	require.NoError(t, err)
	require.Equal(t, testUID, record.UID)
	require.Equal(t, "/restricted", record.Origin)
	require.Equal(t, []string{testUID}, f.accepted)
}

func TestRequestTokenUsesDeliveryOverrides(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	issued, err := f.engine.RequestToken(ctx, "bob", "sms", "")
	require.NoError(t, err)
	require.Equal(t, "sms", issued.Delivery)
	require.Len(t, issued.Token, 6)
	require.Empty(t, strings.Trim(issued.Token, "0123456789"))
	require.Equal(t, f.clock.Now().Add(5*time.Minute), issued.ExpiresAt)

	f.clock.Advance(6 * time.Minute)
	_, err = f.engine.AcceptToken(ctx, issued.Token, "")
	require.ErrorIs(t, err, errors.ErrTokenInvalid)
}

func TestRequestTokenWithEngineTTL(t *testing.T) {
	f := setupTestFixture(t, auth.WithTTL(10*time.Minute))

	issued, err := f.engine.RequestToken(context.Background(), testContact, "email", "")
	require.NoError(t, err)
	require.Equal(t, f.clock.Now().Add(10*time.Minute), issued.ExpiresAt)
}

func TestRequestTokenPerCallTTL(t *testing.T) {
	f := setupTestFixture(t, auth.WithTTL(10*time.Minute))
	ctx := context.Background()

	// the call overrides both the engine and the sms delivery TTL
	issued, err := f.engine.RequestToken(ctx, "bob", "sms", "", auth.WithRequestTTL(30*time.Second))
	require.NoError(t, err)
	require.Equal(t, f.clock.Now().Add(30*time.Second), issued.ExpiresAt)

	f.clock.Advance(time.Minute)
	_, err = f.engine.AcceptToken(ctx, issued.Token, "")
	require.ErrorIs(t, err, errors.ErrTokenInvalid)

	issued, err = f.engine.RequestToken(ctx, testContact, "email", "", auth.WithRequestTTL(0))
	require.NoError(t, err)
	require.Equal(t, f.clock.Now().Add(10*time.Minute), issued.ExpiresAt, "a zero TTL keeps the default")

	_, err = f.engine.RequestToken(ctx, testContact, "email", "", auth.WithRequestTTL(-time.Second))
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestRequestTokenUnknownContact(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.engine.RequestToken(context.Background(), "unknown", "", "")
	require.ErrorIs(t, err, errors.ErrUnknownContact)
	require.Empty(t, f.sent)
	require.Equal(t, 0, f.length(t))
}

func TestRequestTokenMissingContact(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.engine.RequestToken(context.Background(), "", "", "")
	require.ErrorIs(t, err, errors.ErrInvalidInput)
	require.Empty(t, f.sent)
}

func TestRequestTokenVerifyFailure(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.engine.RequestToken(context.Background(), "error", "", "")
	require.ErrorIs(t, err, errors.ErrVerifyFailure)
	require.ErrorContains(t, err, "directory unavailable")
	require.Empty(t, f.sent)
	require.Equal(t, 0, f.length(t))
}

func TestRequestTokenUnknownTransport(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.engine.RequestToken(context.Background(), testContact, "pigeon", "")
	require.ErrorIs(t, err, errors.ErrUnknownTransport)
	require.Equal(t, 0, f.length(t))
}

func TestRequestTokenDeliveryFailureRollsBack(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.engine.RequestToken(context.Background(), "deliveryError", "", "")
	require.ErrorIs(t, err, errors.ErrDeliveryFailure)
	require.ErrorContains(t, err, "mailbox full")
	require.Equal(t, 0, f.length(t))
}

// tokenStore aliases token.Store so the embedded field is not named Store,
// which would collide with failingStore's Store method.
type tokenStore = token.Store

type failingStore struct {
	tokenStore
}

func (failingStore) Store(context.Context, string, string, time.Duration, string) error {
	return pkgerrors.New("disk full")
}

func (failingStore) Authenticate(context.Context, string, string) (*token.Record, error) {
	return nil, pkgerrors.New("connection refused")
}

func (failingStore) InvalidateUser(context.Context, string) error {
	return pkgerrors.New("connection refused")
}

func TestStoreFailures(t *testing.T) {
	f := setupTestFixture(t)
	engine, err := auth.NewEngine(failingStore{f.store}, f.registry)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = engine.RequestToken(ctx, testContact, "", "")
	require.ErrorIs(t, err, errors.ErrStoreFailure)
	require.Empty(t, f.sent)

	_, err = engine.AcceptToken(ctx, "tok", "")
	require.ErrorIs(t, err, errors.ErrStoreFailure)
	require.NotErrorIs(t, err, errors.ErrTokenInvalid)

	require.ErrorIs(t, engine.InvalidateUser(ctx, testUID), errors.ErrStoreFailure)
}

func TestAcceptTokenSingleUse(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	issued, err := f.engine.RequestToken(ctx, testContact, "", "")
	require.NoError(t, err)

	_, err = f.engine.AcceptToken(ctx, issued.Token, testUID)
	require.NoError(t, err)

	_, err = f.engine.AcceptToken(ctx, issued.Token, testUID)
	require.ErrorIs(t, err, errors.ErrTokenInvalid)
	require.Len(t, f.accepted, 1)
}

func TestAcceptTokenExpiry(t *testing.T) {
	f := setupTestFixture(t, auth.WithTTL(time.Minute))
	ctx := context.Background()

	issued, err := f.engine.RequestToken(ctx, testContact, "", "")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	_, err = f.engine.AcceptToken(ctx, issued.Token, "")
	require.ErrorIs(t, err, errors.ErrTokenInvalid)
	require.Equal(t, 0, f.length(t))
}

func TestAcceptTokenIsolation(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	alice, err := f.engine.RequestToken(ctx, "alice", "", "")
	require.NoError(t, err)
	bob, err := f.engine.RequestToken(ctx, "bob", "", "")
	require.NoError(t, err)

	_, err = f.engine.AcceptToken(ctx, alice.Token, "UID/bob")
	require.ErrorIs(t, err, errors.ErrTokenInvalid)

	record, err := f.engine.AcceptToken(ctx, alice.Token, "UID/alice")
	require.NoError(t, err)
	require.Equal(t, "UID/alice", record.UID)

	record, err = f.engine.AcceptToken(ctx, bob.Token, "")
	require.NoError(t, err)
	require.Equal(t, "UID/bob", record.UID)
}

func TestAcceptTokenEmpty(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.engine.AcceptToken(context.Background(), "", testUID)
	require.ErrorIs(t, err, errors.ErrTokenInvalid)
}

func TestAcceptHookFailureDoesNotReject(t *testing.T) {
	f := setupTestFixture(t, auth.WithAcceptHook(func(context.Context, string) error {
		return pkgerrors.New("user repo down")
	}))
	ctx := context.Background()

	issued, err := f.engine.RequestToken(ctx, testContact, "", "")
	require.NoError(t, err)

	record, err := f.engine.AcceptToken(ctx, issued.Token, "")
	require.NoError(t, err)
	require.Equal(t, testUID, record.UID)
}

func TestInvalidateUser(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first, err := f.engine.RequestToken(ctx, testContact, "", "")
	require.NoError(t, err)
	second, err := f.engine.RequestToken(ctx, testContact, "sms", "")
	require.NoError(t, err)
	other, err := f.engine.RequestToken(ctx, "bob", "", "")
	require.NoError(t, err)

	require.NoError(t, f.engine.InvalidateUser(ctx, testUID))
	require.NoError(t, f.engine.InvalidateUser(ctx, ""))

	for _, tok := range []string{first.Token, second.Token} {
		_, err = f.engine.AcceptToken(ctx, tok, "")
		require.ErrorIs(t, err, errors.ErrTokenInvalid)
	}
	_, err = f.engine.AcceptToken(ctx, other.Token, "")
	require.NoError(t, err)
}

func TestConcurrentAcceptSucceedsOnce(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	issued, err := f.engine.RequestToken(ctx, testContact, "", "")
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.AcceptToken(ctx, issued.Token, ""); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), successes.Load())
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.New()
	f := setupTestFixture(t, auth.WithMetrics(m))
	ctx := context.Background()

	issued, err := f.engine.RequestToken(ctx, testContact, "", "")
	require.NoError(t, err)
	_, err = f.engine.RequestToken(ctx, "unknown", "", "")
	require.ErrorIs(t, err, errors.ErrUnknownContact)
	_, err = f.engine.AcceptToken(ctx, issued.Token, "")
	require.NoError(t, err)
	_, err = f.engine.AcceptToken(ctx, issued.Token, "")
	require.ErrorIs(t, err, errors.ErrTokenInvalid)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if metric.GetCounter() != nil {
				values[mf.GetName()] += metric.GetCounter().GetValue()
			}
		}
	}
	require.Equal(t, float64(2), values["passwordless_token_requests_total"])
	require.Equal(t, float64(1), values["passwordless_tokens_accepted_total"])
	require.Equal(t, float64(1), values["passwordless_tokens_rejected_total"])
}
