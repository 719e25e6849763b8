package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sunsizer/sunsizer/pkg/log"
	"github.com/sunsizer/sunsizer/pkg/storage"
	"github.com/sunsizer/sunsizer/pkg/types"
)

// getSessionWithMigration fetches a session and migrates its sizing
// configuration to the current version if needed. Migrated configs are saved
// back best effort so later reads do not repeat the migration.
func (s *Server) getSessionWithMigration(ctx context.Context, sessionID string) (types.Session, error) {
	session, err := s.storage.GetSession(ctx, sessionID)
	if err != nil {
		return types.Session{}, err
	}

	// Check for migration
	if session.ConfigVersion < types.CurrentSizingConfigVersion {
		log.Ctx(ctx).InfoContext(ctx, "migrating sizing config", slog.Int("oldVersion", session.ConfigVersion), slog.Int("newVersion", types.CurrentSizingConfigVersion))
		newConfig, changed, err := types.MigrateSizingConfig(session.Config, session.ConfigVersion)
		if err != nil {
			// Log error but return session as is (best effort)
			log.Ctx(ctx).ErrorContext(ctx, "failed to migrate sizing config", slog.Int("currentVersion", session.ConfigVersion), slog.Any("error", err))
		} else if changed {
			session.Config = newConfig
			session.ConfigVersion = types.CurrentSizingConfigVersion
			if err := s.storage.UpdateSession(ctx, session); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to save migrated sizing config", slog.Any("error", err))
				// Return migrated config even if save failed, so current request works with new defaults
			} else {
				log.Ctx(ctx).InfoContext(ctx, "saved migrated sizing config", slog.Int("oldVersion", session.ConfigVersion), slog.Int("newVersion", types.CurrentSizingConfigVersion))
			}
		}
	}

	return session, nil
}

func (s *Server) writeSessionError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrSessionNotFound) {
		writeJSONError(w, "session not found", http.StatusNotFound)
		return
	}
	log.Ctx(ctx).ErrorContext(ctx, "failed to get session", slog.Any("error", err))
	writeJSONError(w, "failed to get session", http.StatusInternalServerError)
}

type createSessionRequest struct {
	Name   string           `json:"name"`
	Client types.ClientInfo `json:"client"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)

	// first-time users are registered when they create their first session
	if userToRegister, ok := ctx.Value(userToRegisterContextKey).(types.User); ok {
		if err := s.storage.CreateUser(ctx, userToRegister); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to register user", slog.String("userID", userToRegister.ID), slog.Any("error", err))
			writeJSONError(w, "failed to register user", http.StatusInternalServerError)
			return
		}
		log.Ctx(ctx).InfoContext(ctx, "registered new user", slog.String("userID", userToRegister.ID), slog.String("email", userToRegister.Email))
		user = userToRegister
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode session", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeJSONError(w, "session name is required", http.StatusBadRequest)
		return
	}

	// new sessions start with the current default config
	defaults, _, err := types.MigrateSizingConfig(types.SizingConfig{}, 0)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to build default config", slog.Any("error", err))
		writeJSONError(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	session := types.Session{
		ID:            uuid.NewString(),
		Name:          req.Name,
		OwnerID:       user.ID,
		Client:        req.Client,
		Config:        defaults,
		ConfigVersion: types.CurrentSizingConfigVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.storage.CreateSession(ctx, session); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to create session", slog.Any("error", err))
		writeJSONError(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "session created", slog.String("sessionID", session.ID))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)

	// admins see every session, everyone else only their own
	ownerID := user.ID
	if user.Admin {
		ownerID = ""
	}

	sessions, err := s.storage.ListSessions(ctx, ownerID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list sessions", slog.Any("error", err))
		writeJSONError(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		Sessions []types.Session `json:"sessions"`
	}{Sessions: sessions}); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := s.getSessionWithMigration(ctx, s.getSessionID(r))
	if err != nil {
		s.writeSessionError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := s.getSessionID(r)
	if err := s.storage.DeleteSession(ctx, sessionID); err != nil {
		s.writeSessionError(ctx, w, err)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "session deleted", slog.String("sessionID", sessionID))
	w.WriteHeader(http.StatusOK)
}

type addLoadRequest struct {
	SessionID string          `json:"sessionID"`
	Entry     types.LoadEntry `json:"entry"`
}

func (s *Server) handleAddLoad(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addLoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode load entry", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Entry.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := s.getSessionWithMigration(ctx, s.getSessionID(r))
	if err != nil {
		s.writeSessionError(ctx, w, err)
		return
	}

	session.Entries = append(session.Entries, req.Entry)
	session.UpdatedAt = time.Now().UTC()
	if err := s.storage.UpdateSession(ctx, session); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save session", slog.Any("error", err))
		writeJSONError(w, "failed to save session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleRemoveLoad(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeJSONError(w, "invalid index", http.StatusBadRequest)
		return
	}

	session, err := s.getSessionWithMigration(ctx, s.getSessionID(r))
	if err != nil {
		s.writeSessionError(ctx, w, err)
		return
	}

	if index < 0 || index >= len(session.Entries) {
		writeJSONError(w, "load entry index out of range", http.StatusBadRequest)
		return
	}

	session.Entries = append(session.Entries[:index], session.Entries[index+1:]...)
	session.UpdatedAt = time.Now().UTC()
	if err := s.storage.UpdateSession(ctx, session); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save session", slog.Any("error", err))
		writeJSONError(w, "failed to save session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleClearLoads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := s.getSessionWithMigration(ctx, s.getSessionID(r))
	if err != nil {
		s.writeSessionError(ctx, w, err)
		return
	}

	session.Entries = nil
	session.UpdatedAt = time.Now().UTC()
	if err := s.storage.UpdateSession(ctx, session); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save session", slog.Any("error", err))
		writeJSONError(w, "failed to save session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session); err != nil {
		panic(http.ErrAbortHandler)
	}
}
