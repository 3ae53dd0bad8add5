package store

import (
	"context"
	"testing"

	"github.com/cityshare/cityshare/internal/db"
)

func strPtr(s string) *string { return &s }

func TestUpsertProfileCreatesAndPatches(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "erin@example.com", "")

	p, err := UpsertProfile(ctx, database, user.ID, ProfileUpdate{
		DisplayName: strPtr("Erin"),
		Location:    strPtr("San Jose"),
	})
	if err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	if p.DisplayName != "Erin" || p.Location != "San Jose" {
		t.Errorf("unexpected profile: %+v", p)
	}

	// Only bio changes; other fields are kept.
	p, err = UpsertProfile(ctx, database, user.ID, ProfileUpdate{Bio: strPtr("Likes bikes")})
	if err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	if p.DisplayName != "Erin" {
		t.Errorf("display name lost on partial update: %q", p.DisplayName)
	}
	if p.Bio != "Likes bikes" {
		t.Errorf("expected bio 'Likes bikes', got %q", p.Bio)
	}

	// Empty string clears.
	p, _ = UpsertProfile(ctx, database, user.ID, ProfileUpdate{Location: strPtr("")})
	if p.Location != "" {
		t.Errorf("expected location cleared, got %q", p.Location)
	}
}

func TestUsernameUnique(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	u1, _ := CreateUser(ctx, database, "one@example.com", "")
	u2, _ := CreateUser(ctx, database, "two@example.com", "")

	if _, err := UpsertProfile(ctx, database, u1.ID, ProfileUpdate{Username: strPtr("sam")}); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}

	_, err := UpsertProfile(ctx, database, u2.ID, ProfileUpdate{Username: strPtr("Sam")})
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation for taken username, got %v", err)
	}

	// Users without a username don't collide.
	u3, _ := CreateUser(ctx, database, "three@example.com", "")
	if _, err := UpsertProfile(ctx, database, u3.ID, ProfileUpdate{Bio: strPtr("hi")}); err != nil {
		t.Errorf("UpsertProfile without username: %v", err)
	}
}

func TestGetProfileMissing(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, err := GetProfile(ctx, database, 42)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil profile, got %+v", p)
	}
}
