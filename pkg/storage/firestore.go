package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/sunsizer/sunsizer/pkg/log"
	"github.com/sunsizer/sunsizer/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Sessions and users are stored as JSON-blob documents; quotes are
// a per-session sub-collection keyed by RFC3339 timestamp so history queries
// can use document ID ranges.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) quotesCollection(sessionID string) (*firestore.CollectionRef, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}
	return f.client.Collection("sessions").Doc(sessionID).Collection("quotes"), nil
}

// GetSession retrieves a session from the "sessions" collection.
func (f *FirestoreProvider) GetSession(ctx context.Context, sessionID string) (types.Session, error) {
	if sessionID == "" {
		return types.Session{}, fmt.Errorf("sessionID cannot be empty")
	}
	doc, err := f.client.Collection("sessions").Doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return types.Session{}, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return sessionFromDoc(ctx, doc)
}

// CreateSession creates a new session document. Fails if the document exists.
func (f *FirestoreProvider) CreateSession(ctx context.Context, session types.Session) error {
	data, err := sessionDocData(session)
	if err != nil {
		return err
	}
	if _, err := f.client.Collection("sessions").Doc(session.ID).Create(ctx, data); err != nil {
		return fmt.Errorf("failed to create session %s: %w", session.ID, err)
	}
	return nil
}

// UpdateSession overwrites an existing session document.
func (f *FirestoreProvider) UpdateSession(ctx context.Context, session types.Session) error {
	data, err := sessionDocData(session)
	if err != nil {
		return err
	}
	if _, err := f.client.Collection("sessions").Doc(session.ID).Set(ctx, data); err != nil {
		return fmt.Errorf("failed to update session %s: %w", session.ID, err)
	}
	return nil
}

// DeleteSession removes a session document. Quote history under the session
// is left in place; Firestore sub-collections survive parent deletion.
func (f *FirestoreProvider) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	if _, err := f.client.Collection("sessions").Doc(sessionID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// ListSessions retrieves sessions, optionally filtered by owner. The owner is
// stored as a top-level field alongside the JSON blob so Firestore can index
// the query.
func (f *FirestoreProvider) ListSessions(ctx context.Context, ownerID string) ([]types.Session, error) {
	q := f.client.Collection("sessions").Query
	if ownerID != "" {
		q = q.Where("owner", "==", ownerID)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var sessions []types.Session
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating sessions: %w", err)
		}
		s, err := sessionFromDoc(ctx, doc)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping malformed session doc", slog.String("sessionID", doc.Ref.ID), slog.Any("err", err))
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// InsertQuote adds a quote record under the session as a JSON blob.
// The document ID is the RFC3339 timestamp for efficient range queries.
func (f *FirestoreProvider) InsertQuote(ctx context.Context, quote types.Quote) error {
	if quote.Timestamp.IsZero() {
		return fmt.Errorf("quote missing timestamp")
	}
	jsonBytes, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}

	coll, err := f.quotesCollection(quote.SessionID)
	if err != nil {
		return err
	}
	// Use RFC3339 as document ID for lexicographic ordering and efficient range queries
	docID := quote.Timestamp.UTC().Format(time.RFC3339)
	_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": quote.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to insert quote: %w", err)
	}
	return nil
}

// GetQuoteHistory retrieves quote records within the specified time range.
// Uses document ID range queries for efficient filtering without reading all documents.
func (f *FirestoreProvider) GetQuoteHistory(ctx context.Context, sessionID string, start, end time.Time) ([]types.Quote, error) {
	startDocID := start.UTC().Format(time.RFC3339)
	endDocID := end.UTC().Format(time.RFC3339)

	coll, err := f.quotesCollection(sessionID)
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var quotes []types.Quote
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating quotes: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "quote doc missing json", slog.String("quoteID", doc.Ref.ID), slog.String("sessionID", sessionID), slog.Any("err", err))
			return nil, fmt.Errorf("quote document %s missing 'json' field: %w", doc.Ref.ID, err)
		}

		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "quote doc json not string", slog.String("quoteID", doc.Ref.ID), slog.String("sessionID", sessionID))
			return nil, fmt.Errorf("quote document %s 'json' field is not string", doc.Ref.ID)
		}

		var q types.Quote
		if err := json.Unmarshal([]byte(jsonStr), &q); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal quote", slog.String("quoteID", doc.Ref.ID), slog.String("sessionID", sessionID), slog.Any("err", err))
			return nil, fmt.Errorf("failed to unmarshal quote (id=%s): %w", doc.Ref.ID, err)
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// GetLatestQuoteTime retrieves the timestamp of the last generated quote for a session.
func (f *FirestoreProvider) GetLatestQuoteTime(ctx context.Context, sessionID string) (time.Time, error) {
	coll, err := f.quotesCollection(sessionID)
	if err != nil {
		return time.Time{}, err
	}

	// firestore automatically creates indexes for top-level fields
	iter := coll.
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest quote doc: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, doc.Ref.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid quote doc id %s: %w", doc.Ref.ID, err)
	}
	return ts, nil
}

// GetUser retrieves a user from the "users" collection.
func (f *FirestoreProvider) GetUser(ctx context.Context, userID string) (types.User, error) {
	doc, err := f.client.Collection("users").Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return types.User{}, fmt.Errorf("failed to get user %s: %w", userID, err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "user doc missing json", slog.String("userID", userID))
		return types.User{}, fmt.Errorf("user %s missing json: %w", userID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "user doc json not string", slog.String("userID", userID))
		return types.User{}, fmt.Errorf("user %s json not string", userID)
	}

	var user types.User
	if err := json.Unmarshal([]byte(jsonStr), &user); err != nil {
		return types.User{}, fmt.Errorf("failed to unmarshal user %s: %w", userID, err)
	}
	return user, nil
}

// CreateUser creates a new user document in the "users" collection.
func (f *FirestoreProvider) CreateUser(ctx context.Context, user types.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user %s: %w", user.ID, err)
	}
	_, err = f.client.Collection("users").Doc(user.ID).Create(ctx, map[string]interface{}{
		"json": string(userJSON),
	})
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}
	return nil
}

// UpdateUser updates an existing user document in the "users" collection.
func (f *FirestoreProvider) UpdateUser(ctx context.Context, user types.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user %s: %w", user.ID, err)
	}
	_, err = f.client.Collection("users").Doc(user.ID).Set(ctx, map[string]interface{}{
		"json": string(userJSON),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	return nil
}

func sessionDocData(session types.Session) (map[string]interface{}, error) {
	if session.ID == "" {
		return nil, fmt.Errorf("session missing ID")
	}
	jsonBytes, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}
	return map[string]interface{}{
		"json":      string(jsonBytes),
		"owner":     session.OwnerID,
		"updatedAt": session.UpdatedAt,
	}, nil
}

func sessionFromDoc(ctx context.Context, doc *firestore.DocumentSnapshot) (types.Session, error) {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "session doc missing json", slog.String("sessionID", doc.Ref.ID), slog.Any("err", err))
		return types.Session{}, fmt.Errorf("session %s missing json: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "session doc json not string", slog.String("sessionID", doc.Ref.ID))
		return types.Session{}, fmt.Errorf("session %s json not string", doc.Ref.ID)
	}

	var s types.Session
	if err := json.Unmarshal([]byte(jsonStr), &s); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal session", slog.String("sessionID", doc.Ref.ID), slog.Any("err", err))
		return types.Session{}, fmt.Errorf("failed to unmarshal session %s: %w", doc.Ref.ID, err)
	}
	return s, nil
}
