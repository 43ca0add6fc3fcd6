package validation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reon-protocol/reon-go/pkg/protocol"
	"github.com/reon-protocol/reon-go/pkg/store"
)

// fakeStore is an in-memory store.Store with call counting.
type fakeStore struct {
	mu          sync.Mutex
	credentials map[string]*store.Credential
	keypadCodes map[string]*store.Credential
	users       map[string]*store.User
	events      []store.AccessEvent

	findUserCalls int
	failLookups   bool
	lookupDelay   time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		credentials: make(map[string]*store.Credential),
		keypadCodes: make(map[string]*store.Credential),
		users:       make(map[string]*store.User),
	}
}

func (s *fakeStore) addCredential(cred *store.Credential) {
	s.credentials[cred.Number] = cred
	if cred.KeypadCode != "" {
		s.keypadCodes[cred.KeypadCode] = cred
	}
}

func (s *fakeStore) FindCredential(ctx context.Context, number string) (*store.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLookups {
		return nil, errors.New("store unavailable")
	}
	cred, ok := s.credentials[number]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cred, nil
}

func (s *fakeStore) FindCredentialByKeypadCode(ctx context.Context, code string) (*store.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.keypadCodes[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cred, nil
}

func (s *fakeStore) FindUser(ctx context.Context, code string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findUserCalls++
	user, ok := s.users[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return user, nil
}

func (s *fakeStore) AppendAccess(ctx context.Context, event *store.AccessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

func (s *fakeStore) LastGrantedAccess(ctx context.Context, userCode, direction string) (*store.AccessEvent, error) {
	if s.lookupDelay > 0 {
		time.Sleep(s.lookupDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if e.UserCode == userCode && e.Direction == direction && e.Granted {
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

var _ store.Store = (*fakeStore)(nil)

var testNow = time.Date(2025, 5, 10, 12, 46, 6, 0, time.UTC)

func validEntryRequest(t *testing.T, card string) *AccessRequest {
	t.Helper()
	device, err := protocol.NewDeviceID(15)
	require.NoError(t, err)
	return &AccessRequest{
		Device:    device,
		Card:      card,
		Timestamp: testNow,
		Direction: protocol.DirectionEntry,
		Reader:    protocol.ReaderCard,
	}
}

func seedGrantableUser(s *fakeStore) {
	s.addCredential(&store.Credential{Number: "12345678", UserCode: "U100", Active: true})
	s.users["U100"] = &store.User{Code: "U100", Active: true, AllowCard: true}
}

func TestOfflineGrant(t *testing.T) {
	s := newFakeStore()
	seedGrantableUser(s)

	v := NewOfflineValidatorWithConfig(s, OfflineConfig{Now: func() time.Time { return testNow }})
	decision, err := v.Validate(context.Background(), validEntryRequest(t, "12345678"))
	require.NoError(t, err)

	assert.True(t, decision.Granted)
	assert.Equal(t, DisplayAccessGranted, decision.Display)
	assert.Equal(t, "U100", decision.UserCode)
	assert.Equal(t, StrategyOffline, decision.Strategy)

	// Exactly one access-log entry.
	require.Equal(t, 1, s.eventCount())
	event := s.events[0]
	assert.Equal(t, "U100", event.UserCode)
	assert.Equal(t, "12345678", event.CredentialNumber)
	assert.Equal(t, "15", event.DeviceID)
	assert.Equal(t, "1", event.Direction)
	assert.True(t, event.Granted)
}

func TestOfflineCardNotFoundFailsFast(t *testing.T) {
	s := newFakeStore()

	v := NewOfflineValidatorWithConfig(s, OfflineConfig{Now: func() time.Time { return testNow }})
	decision, err := v.Validate(context.Background(), validEntryRequest(t, "99999999"))
	require.NoError(t, err)

	assert.False(t, decision.Granted)
	assert.Equal(t, DisplayCardNotFound, decision.Display)

	// Fail-fast: the user lookup never ran.
	assert.Equal(t, 0, s.findUserCalls)
	assert.Equal(t, 0, s.eventCount())
}

func TestOfflineDenyBranches(t *testing.T) {
	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)

	tests := []struct {
		name    string
		seed    func(s *fakeStore)
		reader  protocol.ReaderType
		display string
	}{
		{
			"inactive card",
			func(s *fakeStore) {
				s.addCredential(&store.Credential{Number: "12345678", UserCode: "U100", Active: false})
			},
			protocol.ReaderCard,
			DisplayCardInactive,
		},
		{
			"expired card",
			func(s *fakeStore) {
				s.addCredential(&store.Credential{Number: "12345678", UserCode: "U100", Active: true, ValidUntil: &past})
			},
			protocol.ReaderCard,
			DisplayCardExpired,
		},
		{
			"card not yet valid",
			func(s *fakeStore) {
				s.addCredential(&store.Credential{Number: "12345678", UserCode: "U100", Active: true, ValidFrom: &future})
			},
			protocol.ReaderCard,
			DisplayCardExpired,
		},
		{
			"user not found",
			func(s *fakeStore) {
				s.addCredential(&store.Credential{Number: "12345678", UserCode: "U100", Active: true})
			},
			protocol.ReaderCard,
			DisplayUserNotFound,
		},
		{
			"inactive user",
			func(s *fakeStore) {
				s.addCredential(&store.Credential{Number: "12345678", UserCode: "U100", Active: true})
				s.users["U100"] = &store.User{Code: "U100", Active: false, AllowCard: true}
			},
			protocol.ReaderCard,
			DisplayUserInactive,
		},
		{
			"expired user",
			func(s *fakeStore) {
				s.addCredential(&store.Credential{Number: "12345678", UserCode: "U100", Active: true})
				s.users["U100"] = &store.User{Code: "U100", Active: true, AllowCard: true, ValidUntil: &past}
			},
			protocol.ReaderCard,
			DisplayUserExpired,
		},
		{
			"method not permitted",
			func(s *fakeStore) {
				s.addCredential(&store.Credential{Number: "12345678", UserCode: "U100", Active: true})
				s.users["U100"] = &store.User{Code: "U100", Active: true, AllowCard: false, AllowBiometric: true}
			},
			protocol.ReaderCard,
			DisplayMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeStore()
			tt.seed(s)

			v := NewOfflineValidatorWithConfig(s, OfflineConfig{Now: func() time.Time { return testNow }})
			req := validEntryRequest(t, "12345678")
			req.Reader = tt.reader

			decision, err := v.Validate(context.Background(), req)
			require.NoError(t, err)
			assert.False(t, decision.Granted)
			assert.Equal(t, tt.display, decision.Display)
			assert.Equal(t, 0, s.eventCount())
		})
	}
}

func TestOfflineAntiPassback(t *testing.T) {
	s := newFakeStore()
	seedGrantableUser(s)

	clock := testNow
	v := NewOfflineValidatorWithConfig(s, OfflineConfig{
		AntiPassbackWindow: 5 * time.Minute,
		Now:                func() time.Time { return clock },
	})

	// First entry grants.
	decision, err := v.Validate(context.Background(), validEntryRequest(t, "12345678"))
	require.NoError(t, err)
	require.True(t, decision.Granted)

	// Second entry two minutes later is blocked.
	clock = testNow.Add(2 * time.Minute)
	decision, err = v.Validate(context.Background(), validEntryRequest(t, "12345678"))
	require.NoError(t, err)
	assert.False(t, decision.Granted)
	assert.Equal(t, DisplayAntiPassback, decision.Display)

	// An exit in the same window is a different direction: granted.
	exit := validEntryRequest(t, "12345678")
	exit.Direction = protocol.DirectionExit
	decision, err = v.Validate(context.Background(), exit)
	require.NoError(t, err)
	assert.True(t, decision.Granted)

	// A new entry after the window expires is granted again.
	clock = testNow.Add(6 * time.Minute)
	decision, err = v.Validate(context.Background(), validEntryRequest(t, "12345678"))
	require.NoError(t, err)
	assert.True(t, decision.Granted)
}

func TestOfflineAntiPassbackConcurrentSameUser(t *testing.T) {
	s := newFakeStore()
	seedGrantableUser(s)
	s.lookupDelay = 10 * time.Millisecond

	v := NewOfflineValidatorWithConfig(s, OfflineConfig{Now: func() time.Time { return testNow }})

	var wg sync.WaitGroup
	granted := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := v.Validate(context.Background(), validEntryRequest(t, "12345678"))
			if err != nil {
				t.Errorf("Validate failed: %v", err)
				return
			}
			granted <- decision.Granted
		}()
	}
	wg.Wait()
	close(granted)

	grants := 0
	for g := range granted {
		if g {
			grants++
		}
	}
	assert.Equal(t, 1, grants, "exactly one concurrent swipe may pass anti-passback")
	assert.Equal(t, 1, s.eventCount())
}

func TestOfflineKeypadLookup(t *testing.T) {
	s := newFakeStore()
	s.addCredential(&store.Credential{Number: "12345678", KeypadCode: "4711", UserCode: "U100", Active: true})
	s.users["U100"] = &store.User{Code: "U100", Active: true, AllowKeypad: true}

	v := NewOfflineValidatorWithConfig(s, OfflineConfig{Now: func() time.Time { return testNow }})

	req := validEntryRequest(t, "4711")
	req.Reader = protocol.ReaderKeypad

	decision, err := v.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, decision.Granted)
}

func TestOfflineStoreFailureIsError(t *testing.T) {
	s := newFakeStore()
	s.failLookups = true

	v := NewOfflineValidator(s)
	decision, err := v.Validate(context.Background(), validEntryRequest(t, "12345678"))

	require.Error(t, err)
	assert.Nil(t, decision)
	assert.False(t, errors.Is(err, store.ErrNotFound))
}
