package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"meetbook/internal/models"
)

// fileState is the JSON document written by FileStore.
type fileState struct {
	BookingRequests []models.BookingRequest `json:"bookingRequests"`
	Meetings        []models.Meeting        `json:"meetings"`
}

// FileStore keeps all rows in a single JSON file, rewritten atomically on every write.
// It suits a single user running the CLI; concurrent callers in one process are
// serialized by a mutex.
type FileStore struct {
	mu    sync.Mutex
	path  string
	state fileState
	now   func() time.Time
}

// OpenFileStore loads the state file at path, starting empty if it does not exist.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, now: time.Now}
	state, err := loadState(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load store file: %w", err)
		}
		state = fileState{}
	}
	s.state = state
	return s, nil
}

func (s *FileStore) CreateBookingRequest(_ context.Context, rawCommand, parsedJSON string) (models.BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	br := models.BookingRequest{
		ID:         uuid.NewString(),
		RawCommand: rawCommand,
		ParsedJSON: parsedJSON,
		CreatedAt:  s.now().UTC(),
	}
	s.state.BookingRequests = append(s.state.BookingRequests, br)
	if err := s.saveState(); err != nil {
		s.state.BookingRequests = s.state.BookingRequests[:len(s.state.BookingRequests)-1]
		return models.BookingRequest{}, err
	}
	return br, nil
}

func (s *FileStore) CreateMeeting(_ context.Context, m NewMeeting) (models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findBookingRequest(m.BookingRequestID) < 0 {
		return models.Meeting{}, fmt.Errorf("booking request %s: %w", m.BookingRequestID, ErrNotFound)
	}
	meeting := models.Meeting{
		ID:               uuid.NewString(),
		BookingRequestID: m.BookingRequestID,
		Start:            m.Start.UTC(),
		End:              m.End.UTC(),
		Title:            m.Title,
		Attendees:        append([]models.ContactInfo(nil), m.Attendees...),
		CreatedAt:        s.now().UTC(),
	}
	s.state.Meetings = append(s.state.Meetings, meeting)
	if err := s.saveState(); err != nil {
		s.state.Meetings = s.state.Meetings[:len(s.state.Meetings)-1]
		return models.Meeting{}, err
	}
	return meeting, nil
}

func (s *FileStore) AttachExternalID(_ context.Context, meetingID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.Meetings {
		m := &s.state.Meetings[i]
		if m.ID != meetingID {
			continue
		}
		if m.ExternalEventID != "" {
			return fmt.Errorf("meeting %s: %w", meetingID, ErrAlreadyLinked)
		}
		m.ExternalEventID = externalID
		if err := s.saveState(); err != nil {
			m.ExternalEventID = ""
			return err
		}
		return nil
	}
	return fmt.Errorf("meeting %s: %w", meetingID, ErrNotFound)
}

func (s *FileStore) GetBookingRequest(_ context.Context, id string) (models.BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findBookingRequest(id)
	if i < 0 {
		return models.BookingRequest{}, fmt.Errorf("booking request %s: %w", id, ErrNotFound)
	}
	return s.state.BookingRequests[i], nil
}

func (s *FileStore) ListMeetings(_ context.Context, bookingRequestID string) ([]models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Meeting
	for _, m := range s.state.Meetings {
		if m.BookingRequestID == bookingRequestID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *FileStore) findBookingRequest(id string) int {
	for i, br := range s.state.BookingRequests {
		if br.ID == id {
			return i
		}
	}
	return -1
}

// loadState loads the store state from the JSON file.
func loadState(path string) (fileState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileState{}, err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fileState{}, err
	}
	return state, nil
}

// saveState writes the state to a temp file in the same directory and renames it over
// the store file.
func (s *FileStore) saveState() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".meetbook-store-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
