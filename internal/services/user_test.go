package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"love-sync-backend/internal/models"
)

func TestCreateUserIssuesToken(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)

	u := env.createUser(t)
	if len(u.Code) != codeLength {
		t.Errorf("code %q has length %d", u.Code, len(u.Code))
	}
	if strings.Trim(u.Code, codeChars) != "" {
		t.Errorf("code %q has characters outside the alphabet", u.Code)
	}

	userID, err := env.userService.ValidateJWT(u.Token)
	if err != nil {
		t.Fatal(err)
	}
	if userID != u.ID {
		t.Errorf("token user = %q, want %q", userID, u.ID)
	}
}

func TestValidateJWTRejects(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	u := env.createUser(t)

	other := NewUserService(env.users, env.pairs, "another-secret", env.clock)
	if _, err := other.ValidateJWT(u.Token); err == nil {
		t.Error("token signed with another secret was accepted")
	}
	if _, err := env.userService.ValidateJWT("not.a.token"); err == nil {
		t.Error("garbage token was accepted")
	}

	env.clock.Advance((jwtExpDays + 1) * 24 * time.Hour)
	if _, err := env.userService.ValidateJWT(u.Token); err == nil {
		t.Error("expired token was accepted")
	}
}

func TestRole(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	ctx := context.Background()

	solo := env.createUser(t)
	paidSolo := env.createUser(t)
	if err := env.users.SetPaid(ctx, true, paidSolo.ID); err != nil {
		t.Fatal(err)
	}
	freeA, _, _ := env.createCouple(t, false)
	paidA, _, _ := env.createCouple(t, true)

	tests := []struct {
		name   string
		userID string
		want   models.ViewerRole
	}{
		{"anonymous", "", models.RoleGuest},
		{"unknown user", "ghost", models.RoleGuest},
		{"solo", solo.ID, models.RoleAuthenticated},
		{"paid without partner", paidSolo.ID, models.RoleAuthenticated},
		{"unpaid couple", freeA.ID, models.RoleAuthenticated},
		{"paid couple", paidA.ID, models.RolePremiumCouple},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.userService.Role(ctx, tt.userID)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Role() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUpdatePushToken(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	ctx := context.Background()
	u := env.createUser(t)

	if err := env.userService.UpdatePushToken(ctx, u.ID, "  device-1 "); err != nil {
		t.Fatal(err)
	}
	got, _ := env.userService.GetUser(ctx, u.ID)
	if got.PushToken == nil || *got.PushToken != "device-1" {
		t.Fatalf("push token = %v", got.PushToken)
	}

	if err := env.userService.UpdatePushToken(ctx, u.ID, ""); err != nil {
		t.Fatal(err)
	}
	got, _ = env.userService.GetUser(ctx, u.ID)
	if got.PushToken != nil {
		t.Errorf("push token should be cleared, got %q", *got.PushToken)
	}
}

func TestCreatePair(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	ctx := context.Background()

	a, b, c := env.createUser(t), env.createUser(t), env.createUser(t)

	if _, err := env.pairService.CreatePair(ctx, a.ID, a.Code); !errors.Is(err, models.ErrSelfPair) {
		t.Errorf("self pair: err = %v", err)
	}
	for _, code := range []string{"ABC", "ABCDEFG", "  ", "AB-CD1"} {
		if _, err := env.pairService.CreatePair(ctx, a.ID, code); !errors.Is(err, models.ErrInvalidCode) {
			t.Errorf("code %q: err = %v, want ErrInvalidCode", code, err)
		}
	}
	if _, err := env.pairService.CreatePair(ctx, a.ID, "ZZZZZZ"); !errors.Is(err, models.ErrUserNotFound) {
		t.Errorf("unknown code: err = %v, want ErrUserNotFound", err)
	}

	pair, err := env.pairService.CreatePair(ctx, a.ID, strings.ToLower(b.Code))
	if err != nil {
		t.Fatalf("lowercase code should match: %v", err)
	}
	if pair.UserAID > pair.UserBID {
		t.Errorf("pair members not ordered: %s > %s", pair.UserAID, pair.UserBID)
	}
	if got := env.pairService.PartnerID(ctx, a.ID); got != b.ID {
		t.Errorf("partner of a = %q, want %q", got, b.ID)
	}

	if _, err := env.pairService.CreatePair(ctx, c.ID, a.Code); !errors.Is(err, models.ErrAlreadyPaired) {
		t.Errorf("partner already paired: err = %v", err)
	}
	if _, err := env.pairService.CreatePair(ctx, a.ID, c.Code); !errors.Is(err, models.ErrAlreadyPaired) {
		t.Errorf("caller already paired: err = %v", err)
	}
}

func TestDeletePairRevokesPremium(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	ctx := context.Background()

	a, b, pair := env.createCouple(t, true)
	outsider := env.createUser(t)

	if _, err := env.pairService.DeletePair(ctx, pair.ID, outsider.ID); !errors.Is(err, models.ErrNotPairMember) {
		t.Fatalf("outsider delete: err = %v", err)
	}
	if _, err := env.pairService.DeletePair(ctx, pair.ID, b.ID); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{a.ID, b.ID} {
		role, err := env.userService.Role(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if role != models.RoleAuthenticated {
			t.Errorf("role after unpair = %s, want %s", role, models.RoleAuthenticated)
		}
	}
	if env.pairService.PartnerID(ctx, a.ID) != "" {
		t.Error("partner should be gone")
	}
}
