package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/musicrec/internal/model"
	"github.com/sakif/musicrec/internal/repository"
)

// RecommendationService answers "what should this user listen to".
type RecommendationService struct {
	tracks repository.TrackRepository
	logger *slog.Logger
}

func NewRecommendationService(tracks repository.TrackRepository, logger *slog.Logger) *RecommendationService {
	return &RecommendationService{tracks: tracks, logger: logger}
}

// Recommend returns every track that shares a genre with the user's favorite
// genres or whose artist is a favorite artist. Each track appears once, in
// id order. A user without favorites gets an empty list, not the catalog.
func (s *RecommendationService) Recommend(ctx context.Context, userID int64) ([]model.Track, error) {
	tracks, err := s.tracks.Recommend(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/recommendation: user %d: %w", userID, err)
	}
	s.logger.Debug("recommendations computed",
		slog.Int64("userID", userID),
		slog.Int("count", len(tracks)),
	)
	return tracks, nil
}
