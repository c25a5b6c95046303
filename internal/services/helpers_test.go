package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"love-sync-backend/internal/events"
	"love-sync-backend/internal/metrics"
	"love-sync-backend/internal/models"
	"love-sync-backend/internal/notify"
	"love-sync-backend/internal/repository"
	"love-sync-backend/internal/unlock"

	"github.com/jonboulle/clockwork"
)

var ist = time.FixedZone("IST", 5*3600+1800)

const testSecret = "rzp_test_secret"

type sentPush struct {
	token string
	msg   notify.Message
}

type fakeNotifier struct {
	ch chan sentPush
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ch: make(chan sentPush, 16)}
}

func (f *fakeNotifier) Notify(_ context.Context, token string, msg notify.Message) error {
	f.ch <- sentPush{token: token, msg: msg}
	return nil
}

func (f *fakeNotifier) wait(t *testing.T) sentPush {
	t.Helper()
	select {
	case p := <-f.ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no push notification sent")
	}
	return sentPush{}
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.SessionChanged
}

func (r *recordedEvents) handle(ev events.SessionChanged) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordedEvents) all() []events.SessionChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.SessionChanged, len(r.events))
	copy(out, r.events)
	return out
}

type testEnv struct {
	clock    *clockwork.FakeClock
	users    *repository.MemoryUserStore
	pairs    *repository.MemoryPairStore
	store    *repository.MemorySessionStore
	orders   *repository.MemoryOrderStore
	bus      *events.LocalBus
	notifier *fakeNotifier
	recorded *recordedEvents

	userService    *UserService
	pairService    *PairService
	sessionService *SessionService
	paymentService *PaymentService
}

// testCalendar unlocks Rose Day, Propose Day and Chocolate Day on consecutive IST midnights
func testCalendar() *unlock.Calendar {
	day := func(n int, title string) models.ContentDay {
		return models.ContentDay{
			Day:      n,
			Title:    title,
			UnlockAt: time.Date(2026, time.February, 6+n, 0, 0, 0, 0, ist),
		}
	}
	return unlock.NewCalendar([]models.ContentDay{
		day(1, "Rose Day"),
		day(2, "Propose Day"),
		day(3, "Chocolate Day"),
		{Day: 8, Title: "Valentine's Day", UnlockAt: time.Date(2026, time.February, 14, 0, 0, 0, 0, ist), PremiumOnly: true},
	})
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:    clockwork.NewFakeClockAt(now),
		users:    repository.NewMemoryUserStore(),
		pairs:    repository.NewMemoryPairStore(),
		store:    repository.NewMemorySessionStore(),
		orders:   repository.NewMemoryOrderStore(),
		bus:      events.NewLocalBus(),
		notifier: newFakeNotifier(),
		recorded: &recordedEvents{},
	}
	if _, err := env.bus.Subscribe(env.recorded.handle); err != nil {
		t.Fatal(err)
	}

	env.userService = NewUserService(env.users, env.pairs, "test-jwt-secret", env.clock)
	env.pairService = NewPairService(env.pairs, env.users, env.clock)
	env.sessionService = NewSessionService(env.store, env.users, testCalendar(), env.bus, env.notifier, metrics.Nop{}, env.clock, SessionConfig{
		CountdownLead: 3 * time.Second,
		SnapWindow:    10 * time.Second,
		SnapSkew:      250 * time.Millisecond,
		ShareBaseURL:  "https://love.example/",
	})
	env.paymentService = NewPaymentService(env.orders, env.pairs, env.users, env.sessionService, LocalGateway{}, metrics.Nop{}, env.clock, PaymentConfig{
		KeyID:          "rzp_test_key",
		KeySecret:      testSecret,
		Currency:       "INR",
		ProposalAmount: 4900,
		CoupleAmount:   9900,
	})
	return env
}

// afterChocolateDay is when days 1-3 are open to everyone
var afterChocolateDay = time.Date(2026, time.February, 10, 12, 0, 0, 0, ist)

func (env *testEnv) createUser(t *testing.T) *models.User {
	t.Helper()
	u, err := env.userService.CreateUser(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return u
}

// createCouple pairs two fresh users and optionally marks them paid
func (env *testEnv) createCouple(t *testing.T, paid bool) (*models.User, *models.User, *models.Pair) {
	t.Helper()
	ctx := context.Background()
	a, b := env.createUser(t), env.createUser(t)
	pair, err := env.pairService.CreatePair(ctx, a.ID, b.Code)
	if err != nil {
		t.Fatal(err)
	}
	if paid {
		if err := env.users.SetPaid(ctx, true, a.ID, b.ID); err != nil {
			t.Fatal(err)
		}
	}
	return a, b, pair
}
