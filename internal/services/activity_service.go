package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"event-planner-core/internal/clients"
	"event-planner-core/internal/domain/audit"
	"event-planner-core/internal/redis"
	"event-planner-core/internal/repository"
	"event-planner-core/pkg/logger"
)

// UserCache is the read-through cache for Auth-service user summaries.
// Satisfied by redis.PermissionCache; nil means every lookup hits Auth.
type UserCache interface {
	GetUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*redis.UserSummary, []uuid.UUID, error)
	SetUser(ctx context.Context, u *redis.UserSummary) error
}

// ActivityEntry is one row of an entity's activity trail with the actor
// resolved to a display name.
type ActivityEntry struct {
	ID        uuid.UUID       `json:"id"`
	Action    string          `json:"action"`
	ActorID   *uuid.UUID      `json:"actor_id,omitempty"`
	ActorName string          `json:"actor_name,omitempty"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ActivityService reads the system_logs trail and resolves actor ids to
// names through the user cache, falling back to the Auth service in batch.
type ActivityService struct {
	logs  repository.SystemLogRepository
	jobs  repository.JobRepository
	auth  clients.AuthClient
	users UserCache
	log   *logger.Logger
}

func NewActivityService(
	logs repository.SystemLogRepository,
	jobs repository.JobRepository,
	auth clients.AuthClient,
	users UserCache,
	log *logger.Logger,
) *ActivityService {
	return &ActivityService{logs: logs, jobs: jobs, auth: auth, users: users, log: log}
}

// JobActivity returns the lifecycle trail of one generation job, oldest
// first. Unknown jobs are ErrNotFound.
func (s *ActivityService) JobActivity(ctx context.Context, jobID uuid.UUID) ([]ActivityEntry, error) {
	if _, err := s.jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}

	rows, err := s.logs.ListByEntity(ctx, audit.EntityJob, jobID)
	if err != nil {
		return nil, err
	}

	var actorIDs []uuid.UUID
	seen := map[uuid.UUID]bool{}
	for _, row := range rows {
		if row.ActorID.Valid && !seen[row.ActorID.UUID] {
			seen[row.ActorID.UUID] = true
			actorIDs = append(actorIDs, row.ActorID.UUID)
		}
	}
	names := s.resolveActors(ctx, actorIDs)

	entries := make([]ActivityEntry, 0, len(rows))
	for _, row := range rows {
		entry := ActivityEntry{
			ID:        row.ID,
			Action:    row.Action,
			Detail:    row.Detail,
			CreatedAt: row.CreatedAt,
		}
		if row.ActorID.Valid {
			actorID := row.ActorID.UUID
			entry.ActorID = &actorID
			entry.ActorName = names[actorID]
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// resolveActors is best-effort: cache hits first, then one Auth batch call
// for the misses. A failed lookup leaves names blank rather than failing
// the listing.
func (s *ActivityService) resolveActors(ctx context.Context, actorIDs []uuid.UUID) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(actorIDs))
	if len(actorIDs) == 0 {
		return names
	}

	pending := actorIDs
	if s.users != nil {
		hits, misses, err := s.users.GetUsers(ctx, actorIDs)
		if err == nil {
			for id, u := range hits {
				names[id] = u.DisplayName
			}
			pending = misses
		}
	}
	if len(pending) == 0 {
		return names
	}

	fetched, err := s.auth.GetUsersBatch(ctx, pending)
	if err != nil {
		s.log.Warnf("actor name lookup failed for %d users: %v", len(pending), err)
		return names
	}
	for id, u := range fetched {
		names[id] = u.DisplayName
		if s.users != nil {
			if err := s.users.SetUser(ctx, &redis.UserSummary{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}); err != nil {
				s.log.Warnf("user cache write failed for %s: %v", id, err)
			}
		}
	}
	return names
}
