package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"love-sync-backend/internal/events"
	"love-sync-backend/internal/metrics"
	"love-sync-backend/internal/models"
	"love-sync-backend/internal/notify"
	"love-sync-backend/internal/repository"
	"love-sync-backend/internal/services"
	"love-sync-backend/internal/unlock"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var ist = time.FixedZone("IST", 5*3600+1800)

const paymentSecret = "rzp_test_secret"

// afterChocolateDay is when days 1-3 are open to everyone
var afterChocolateDay = time.Date(2026, time.February, 10, 12, 0, 0, 0, ist)

type fakePresigner struct{}

func (fakePresigner) PresignPutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + *params.Key, Method: "PUT"}, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, notify.Message) error { return nil }

type apiEnv struct {
	clock    *clockwork.FakeClock
	users    *repository.MemoryUserStore
	sessions *services.SessionService
	hub      *services.WSHub
	server   *httptest.Server
}

func newAPIEnv(t *testing.T, now time.Time) *apiEnv {
	t.Helper()

	clock := clockwork.NewFakeClockAt(now)
	users := repository.NewMemoryUserStore()
	pairs := repository.NewMemoryPairStore()
	bus := events.NewLocalBus()

	calendar := unlock.NewCalendar([]models.ContentDay{
		{Day: 1, Title: "Rose Day", UnlockAt: time.Date(2026, time.February, 7, 0, 0, 0, 0, ist)},
		{Day: 2, Title: "Propose Day", UnlockAt: time.Date(2026, time.February, 8, 0, 0, 0, 0, ist)},
		{Day: 3, Title: "Chocolate Day", UnlockAt: time.Date(2026, time.February, 9, 0, 0, 0, 0, ist)},
		{Day: 8, Title: "Valentine's Day", UnlockAt: time.Date(2026, time.February, 14, 0, 0, 0, 0, ist), PremiumOnly: true},
	})

	userService := services.NewUserService(users, pairs, "test-jwt-secret", clock)
	pairService := services.NewPairService(pairs, users, clock)
	sessionService := services.NewSessionService(repository.NewMemorySessionStore(), users, calendar, bus, nopNotifier{}, metrics.Nop{}, clock, services.SessionConfig{
		CountdownLead: 3 * time.Second,
		SnapWindow:    10 * time.Second,
		SnapSkew:      250 * time.Millisecond,
		ShareBaseURL:  "https://love.example",
	})
	paymentService := services.NewPaymentService(repository.NewMemoryOrderStore(), pairs, users, sessionService, services.LocalGateway{}, metrics.Nop{}, clock, services.PaymentConfig{
		KeyID:          "rzp_test_key",
		KeySecret:      paymentSecret,
		Currency:       "INR",
		ProposalAmount: 4900,
		CoupleAmount:   9900,
	})
	photoService := services.NewPhotoService(repository.NewMemoryPhotoStore(), pairs, fakePresigner{}, services.S3Config{
		Region: "ap-south-1",
		Bucket: "love-memories",
	}, clock)
	memoryService := services.NewMemoryGameService(repository.NewMemoryGameStore(), users, photoService, calendar, nopNotifier{}, metrics.Nop{}, clock, "https://love.example")

	hub := services.NewWSHub(pairService)
	if err := hub.Listen(bus); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(hub.Close)

	router := NewRouter(RouterDeps{
		Users:          userService,
		Pairs:          pairService,
		Sessions:       sessionService,
		Calendar:       services.NewCalendarService(calendar, clock),
		Payments:       paymentService,
		Photos:         photoService,
		Memories:       memoryService,
		Hub:            hub,
		AllowedOrigins: []string{"*"},
		Logger:         zerolog.Nop(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &apiEnv{
		clock:    clock,
		users:    users,
		sessions: sessionService,
		hub:      hub,
		server:   srv,
	}
}

// call sends a JSON request and decodes the JSON reply into out when out is non-nil
func (e *apiEnv) call(t *testing.T, method, path, token string, body, out interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: failed to decode response: %v", method, path, err)
		}
	}
	return resp
}

func (e *apiEnv) createUser(t *testing.T) *models.User {
	t.Helper()
	var user models.User
	resp := e.call(t, http.MethodPost, "/api/v1/users", "", nil, &user)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create user status = %d", resp.StatusCode)
	}
	return &user
}

func (e *apiEnv) createSession(t *testing.T, token string, req services.CreateSessionRequest) *services.CreateSessionResponse {
	t.Helper()
	var created services.CreateSessionResponse
	resp := e.call(t, http.MethodPost, "/api/v1/sessions", token, req, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	return &created
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d", resp.StatusCode, want)
	}
}
