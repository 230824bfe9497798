package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"idscan/internal/logger"
)

// usersCollection holds one document per user id.
const usersCollection = "users"

// userDocuments is the part of the users collection the store needs.
type userDocuments interface {
	// MergeField writes value under field of document id, merging nested maps.
	MergeField(ctx context.Context, id, field string, value map[string]string) error

	// Data returns the document fields, or ErrNotFound.
	Data(ctx context.Context, id string) (map[string]interface{}, error)
}

// FirestoreStore keeps each record as the aadharData map field of
// users/{id}, next to whatever else the document holds.
type FirestoreStore struct {
	client *firestore.Client
	docs   userDocuments
	log    zerolog.Logger
}

// NewFirestoreStore opens a Firestore client for projectID. Credentials come
// from GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS, falling back to
// application default credentials. FIRESTORE_EMULATOR_HOST is honored.
func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	const op = "NewFirestoreStore"

	if projectID == "" {
		return nil, fmt.Errorf("%s: project id is required", op)
	}

	client, err := firestore.NewClient(ctx, projectID, firestoreCredentials()...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create client: %w", op, err)
	}

	s := newFirestoreStore(firestoreUsers{users: client.Collection(usersCollection)})
	s.client = client
	s.log.Debug().Str("project_id", projectID).Msg("Using Firestore")
	return s, nil
}

func newFirestoreStore(docs userDocuments) *FirestoreStore {
	return &FirestoreStore{
		docs: docs,
		log:  logger.WithComponent("store").With().Str("driver", DriverFirestore).Logger(),
	}
}

func firestoreCredentials() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}

// Merge implements Store. Keys of record are merged into the aadharData map;
// the document's other fields and the record's other keys are kept.
func (s *FirestoreStore) Merge(ctx context.Context, id string, record map[string]string) error {
	const op = "Merge"

	if id == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyID)
	}
	// An empty map under MergeAll would replace the stored record.
	if len(record) == 0 {
		return nil
	}

	if err := s.docs.MergeField(ctx, id, RecordKey, record); err != nil {
		return fmt.Errorf("%s: failed to write %s/%s: %w", op, usersCollection, id, err)
	}

	s.log.Debug().Str("user_id", id).Int("fields", len(record)).Msg("Record merged")
	return nil
}

// Get implements Store. A user document without an aadharData map counts as
// not found.
func (s *FirestoreStore) Get(ctx context.Context, id string) (map[string]string, error) {
	const op = "Get"

	if id == "" {
		return nil, ErrNotFound
	}

	data, err := s.docs.Data(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: failed to read %s/%s: %w", op, usersCollection, id, err)
	}

	record, ok := recordFromData(data)
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *FirestoreStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// recordFromData reads the aadharData map out of a user document. Non-string
// values are formatted with fmt.Sprint.
func recordFromData(data map[string]interface{}) (map[string]string, bool) {
	raw, ok := data[RecordKey].(map[string]interface{})
	if !ok {
		return nil, false
	}
	record := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			record[k] = s
			continue
		}
		record[k] = fmt.Sprint(v)
	}
	return record, true
}

// firestoreUsers implements userDocuments on a collection reference.
type firestoreUsers struct {
	users *firestore.CollectionRef
}

func (u firestoreUsers) MergeField(ctx context.Context, id, field string, value map[string]string) error {
	_, err := u.users.Doc(id).Set(ctx, map[string]interface{}{field: value}, firestore.MergeAll)
	return err
}

func (u firestoreUsers) Data(ctx context.Context, id string) (map[string]interface{}, error) {
	snap, err := u.users.Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snap.Data(), nil
}
