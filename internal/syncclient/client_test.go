package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"love-sync-backend/internal/models"
	"love-sync-backend/internal/services"
)

func TestClientRoundTrips(t *testing.T) {
	var gotAuth, gotChoice string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(services.CreateSessionResponse{
			Session:   &models.Session{ID: "s1", Kind: models.KindRose, Version: 1},
			ShareLink: "https://love.example/games/day1/rose-picker/invite/s1",
		})
	})
	mux.HandleFunc("GET /api/v1/sessions/s1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.Session{ID: "s1", Kind: models.KindRose, Version: 1})
	})
	mux.HandleFunc("PUT /api/v1/sessions/s1", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Choice string `json:"choice"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotChoice = body.Choice
		json.NewEncoder(w).Encode(services.TransitionResult{
			Applied: true,
			Session: &models.Session{ID: "s1", Status: models.StatusResolved, Version: 2},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL+"/", WithToken("tok"))
	ctx := context.Background()

	created, err := c.Create(ctx, services.CreateSessionRequest{Kind: models.KindRose, Choice: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if created.Session.ID != "s1" || created.ShareLink == "" {
		t.Errorf("created = %+v", created)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	sess, err := c.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Version != 1 {
		t.Errorf("version = %d", sess.Version)
	}

	res, err := c.Respond(ctx, "s1", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Applied || res.Session.Status != models.StatusResolved || gotChoice != "3" {
		t.Errorf("respond = %+v, choice sent %q", res, gotChoice)
	}
}

func TestClientErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sessions/s1/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"both participants must join first","code":"NOT_READY"}`))
	})
	mux.HandleFunc("POST /api/v1/sessions/s1/snap", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	if _, err := c.Get(ctx, "gone"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("missing session: err = %v, want ErrSessionNotFound", err)
	}

	_, err := c.Start(ctx, "s1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("start: err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Code != "NOT_READY" {
		t.Errorf("api error = %+v", apiErr)
	}

	_, err = c.Snap(ctx, "s1", models.ParticipantA, 1000)
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway || apiErr.Message != "upstream down" {
		t.Errorf("snap: err = %v", err)
	}
}
