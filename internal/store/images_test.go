package store

import (
	"context"
	"testing"

	"github.com/cityshare/cityshare/internal/db"
	"github.com/cityshare/cityshare/internal/model"
)

func TestAddListingImagesKeepsOrder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "owner@example.com", "")
	id := mustInsert(t, database, newListing(user.ID, "Desk", model.KindDonate))

	if _, err := AddListingImages(ctx, database, id, []string{"a.png", "b.png"}); err != nil {
		t.Fatalf("AddListingImages: %v", err)
	}
	images, err := AddListingImages(ctx, database, id, []string{"c.png"})
	if err != nil {
		t.Fatalf("AddListingImages: %v", err)
	}

	want := []string{"a.png", "b.png", "c.png"}
	if len(images) != len(want) {
		t.Fatalf("expected %d images, got %d", len(want), len(images))
	}
	for i, img := range images {
		if img.URL != want[i] {
			t.Errorf("image %d: expected %q, got %q", i, want[i], img.URL)
		}
		if img.Position != i {
			t.Errorf("image %d: expected position %d, got %d", i, i, img.Position)
		}
	}
}

func TestDeleteListingImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "owner@example.com", "")
	id := mustInsert(t, database, newListing(user.ID, "Desk", model.KindDonate))
	images, _ := AddListingImages(ctx, database, id, []string{"a.png", "b.png"})

	if err := DeleteListingImage(ctx, database, images[0].ID); err != nil {
		t.Fatalf("DeleteListingImage: %v", err)
	}

	got, _ := GetListingImage(ctx, database, images[0].ID)
	if got != nil {
		t.Error("expected image to be gone")
	}

	remaining, _ := ListListingImages(ctx, database, id)
	if len(remaining) != 1 || remaining[0].URL != "b.png" {
		t.Errorf("unexpected remaining images: %+v", remaining)
	}
}

func TestPrimaryImagesEmpty(t *testing.T) {
	database := db.NewTestDB(t)

	primary, err := PrimaryImages(context.Background(), database, nil)
	if err != nil {
		t.Fatalf("PrimaryImages: %v", err)
	}
	if len(primary) != 0 {
		t.Errorf("expected empty map, got %v", primary)
	}
}

func TestImageURLInUse(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "owner@example.com", "")
	l := newListing(user.ID, "Desk", model.KindDonate)
	l.ImageURL = "primary.png"
	id := mustInsert(t, database, l)
	if _, err := AddListingImages(ctx, database, id, []string{"a.png"}); err != nil {
		t.Fatalf("AddListingImages: %v", err)
	}

	for url, want := range map[string]bool{"a.png": true, "primary.png": true, "gone.png": false} {
		used, err := ImageURLInUse(ctx, database, url)
		if err != nil {
			t.Fatalf("ImageURLInUse(%q): %v", url, err)
		}
		if used != want {
			t.Errorf("ImageURLInUse(%q) = %v, want %v", url, used, want)
		}
	}
}
