package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/musicrec/internal/apperror"
	"github.com/sakif/musicrec/internal/model"
)

// =========================================================================
// GENRES
// =========================================================================

func TestGenreCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g := createTestGenre(t, db, "Rock")
	if g.ID == 0 {
		t.Fatal("Create() did not set ID")
	}

	g.Name = "Rock Clássico"
	if err := db.Genres().Update(ctx, g); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	found, err := db.Genres().GetByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Name != "Rock Clássico" {
		t.Errorf("Name = %q", found.Name)
	}

	if err := db.Genres().Delete(ctx, g.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.Genres().GetByID(ctx, g.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after delete = %v, want ErrNotFound", err)
	}
}

func TestGenreCreate_DuplicateNameIsConflict(t *testing.T) {
	db := newTestDB(t)
	createTestGenre(t, db, "Jazz")

	err := db.Genres().Create(context.Background(), &model.Genre{Name: "jazz"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() error = %v, want ErrConflict", err)
	}
}

func TestGenreUpdate_MissingIsNotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Genres().Update(context.Background(), &model.Genre{ID: 404, Name: "Nada"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestGenreDelete_RestrictedWhileTracksUseIt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rock := createTestGenre(t, db, "Rock")
	a := createTestArtist(t, db, "Queen")
	createTestTrack(t, db, "Bohemian Rhapsody", a.ID, rock.ID)

	err := db.Genres().Delete(ctx, rock.ID)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Delete() error = %v, want ErrConflict", err)
	}
	if _, err := db.Genres().GetByID(ctx, rock.ID); err != nil {
		t.Errorf("genre should still exist: %v", err)
	}
}

func TestGenreList_OrderedByName(t *testing.T) {
	db := newTestDB(t)
	createTestGenre(t, db, "Samba")
	createTestGenre(t, db, "Axé")
	createTestGenre(t, db, "MPB")

	genres, err := db.Genres().List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(genres) != 3 || genres[0].Name != "Axé" || genres[2].Name != "Samba" {
		t.Errorf("List() = %+v", genres)
	}
}

// =========================================================================
// ARTISTS
// =========================================================================

func TestArtistEnsure_ReusesExistingCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	queen := createTestArtist(t, db, "Queen")

	got, err := db.Artists().Ensure(ctx, "QUEEN")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if got.ID != queen.ID || got.Name != "Queen" {
		t.Errorf("Ensure() = %+v, want existing %+v", got, queen)
	}

	artists, _ := db.Artists().List(ctx)
	if len(artists) != 1 {
		t.Errorf("len(artists) = %d, want 1 (no duplicate)", len(artists))
	}
}

func TestArtistEnsure_ReusesExistingAccentedName(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	elis := createTestArtist(t, db, "Élis Regina")

	for _, spelling := range []string{"élis regina", "ÉLIS REGINA"} {
		got, err := db.Artists().Ensure(ctx, spelling)
		if err != nil {
			t.Fatalf("Ensure(%q) error = %v", spelling, err)
		}
		if got.ID != elis.ID || got.Name != "Élis Regina" {
			t.Errorf("Ensure(%q) = %+v, want existing %+v", spelling, got, elis)
		}
	}

	artists, _ := db.Artists().List(ctx)
	if len(artists) != 1 {
		t.Errorf("len(artists) = %d, want 1 (no duplicate): %+v", len(artists), artists)
	}
}

func TestArtistCreate_AccentedDuplicateConflicts(t *testing.T) {
	db := newTestDB(t)
	createTestArtist(t, db, "Ñengo Flow")

	err := db.Artists().Create(context.Background(), &model.Artist{Name: "ñENGO FLOW"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() error = %v, want ErrConflict", err)
	}
}

func TestGenreCreate_AccentedDuplicateConflicts(t *testing.T) {
	db := newTestDB(t)
	createTestGenre(t, db, "Música Clássica")

	err := db.Genres().Create(context.Background(), &model.Genre{Name: "MÚSICA CLÁSSICA"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() error = %v, want ErrConflict", err)
	}
}

func TestArtistEnsure_CreatesMissing(t *testing.T) {
	db := newTestDB(t)

	got, err := db.Artists().Ensure(context.Background(), "Djavan")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if got.ID == 0 || got.Name != "Djavan" {
		t.Errorf("Ensure() = %+v", got)
	}
}

func TestArtistSearch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, name := range []string{"The Beatles", "Beat Happening", "Queen", "100%_Real"} {
		createTestArtist(t, db, name)
	}

	got, err := db.Artists().Search(ctx, "BEAT", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "Beat Happening" || got[1].Name != "The Beatles" {
		t.Errorf("Search(BEAT) = %+v", got)
	}

	// Wildcards in the query are literal.
	got, _ = db.Artists().Search(ctx, "%_", 10)
	if len(got) != 1 || got[0].Name != "100%_Real" {
		t.Errorf("Search(%%_) = %+v", got)
	}

	createTestArtist(t, db, "Élis Regina")
	got, _ = db.Artists().Search(ctx, "ÉLIS", 10)
	if len(got) != 1 || got[0].Name != "Élis Regina" {
		t.Errorf("Search(ÉLIS) = %+v", got)
	}

	got, _ = db.Artists().Search(ctx, "e", 2)
	if len(got) != 2 {
		t.Errorf("Search with limit 2 returned %d rows", len(got))
	}
}

func TestArtistDelete_RestrictedWhileTracksExist(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestArtist(t, db, "Queen")
	tr := createTestTrack(t, db, "Innuendo", a.ID)

	if err := db.Artists().Delete(ctx, a.ID); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Delete() error = %v, want ErrConflict", err)
	}

	if err := db.Tracks().Delete(ctx, tr.ID); err != nil {
		t.Fatalf("deleting track: %v", err)
	}
	if err := db.Artists().Delete(ctx, a.ID); err != nil {
		t.Errorf("Delete() after removing tracks error = %v", err)
	}
}

func TestArtistDelete_MissingIsNotFound(t *testing.T) {
	db := newTestDB(t)
	if err := db.Artists().Delete(context.Background(), 77); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// TRACKS
// =========================================================================

func TestTrackCreate_WithGenres(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rock := createTestGenre(t, db, "Rock")
	pop := createTestGenre(t, db, "Pop")
	a := createTestArtist(t, db, "Queen")

	tr := createTestTrack(t, db, "Radio Ga Ga", a.ID, rock.ID, pop.ID)

	found, err := db.Tracks().GetByID(ctx, tr.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.ArtistName != "Queen" {
		t.Errorf("ArtistName = %q", found.ArtistName)
	}
	if len(found.Genres) != 2 || found.GenreNames() != "Pop, Rock" {
		t.Errorf("Genres = %+v", found.Genres)
	}
}

func TestTrackCreate_UnknownArtistIsValidation(t *testing.T) {
	db := newTestDB(t)

	err := db.Tracks().Create(context.Background(), &model.Track{Title: "Orphan", ArtistID: 999})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Create() error = %v, want ErrValidation", err)
	}
}

func TestTrackUpdate_ReplacesGenreSet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rock := createTestGenre(t, db, "Rock")
	jazz := createTestGenre(t, db, "Jazz")
	a := createTestArtist(t, db, "Queen")
	b := createTestArtist(t, db, "Miles Davis")
	tr := createTestTrack(t, db, "Untitled", a.ID, rock.ID)

	tr.Title = "So What"
	tr.ArtistID = b.ID
	tr.GenreIDs = []int64{jazz.ID}
	if err := db.Tracks().Update(ctx, tr); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	found, _ := db.Tracks().GetByID(ctx, tr.ID)
	if found.Title != "So What" || found.ArtistID != b.ID {
		t.Errorf("Update() not applied: %+v", found)
	}
	if len(found.GenreIDs) != 1 || found.GenreIDs[0] != jazz.ID {
		t.Errorf("GenreIDs = %v, want [%d]", found.GenreIDs, jazz.ID)
	}
}

func TestTrackList_IncludesTracksWithoutGenres(t *testing.T) {
	db := newTestDB(t)
	a := createTestArtist(t, db, "Queen")
	createTestTrack(t, db, "A", a.ID)
	createTestTrack(t, db, "B", a.ID)

	tracks, err := db.Tracks().List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(tracks) != 2 || tracks[0].Title != "A" {
		t.Errorf("List() = %+v", tracks)
	}
	if tracks[0].GenreIDs == nil {
		t.Error("GenreIDs should be empty, not nil")
	}
}

func TestTrackDelete_MissingIsNotFound(t *testing.T) {
	db := newTestDB(t)
	if err := db.Tracks().Delete(context.Background(), 5); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}
