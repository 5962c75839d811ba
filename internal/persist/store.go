package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/ryanhaqueIT/vibedeck/schema"
	"pkt.systems/pslog"
)

// TabRecord captures a tab for persistence. Busy state is never persisted;
// tabs always reload idle.
type TabRecord struct {
	ID           schema.TabID          `json:"id"`
	Name         schema.TabName        `json:"name"`
	ReadOnly     bool                  `json:"read_only,omitempty"`
	AgentSession schema.AgentSessionID `json:"agent_session,omitempty"`
	Entries      []schema.Entry        `json:"entries,omitempty"`
}

// ItemRecord captures a queued unit of work for persistence.
type ItemRecord struct {
	ID        string                   `json:"id"`
	CreatedAt time.Time                `json:"created_at"`
	TabID     schema.TabID             `json:"tab_id"`
	Kind      schema.ItemKind          `json:"kind"`
	Text      string                   `json:"text"`
	Images    []schema.ImageAttachment `json:"images,omitempty"`
	ReadOnly  bool                     `json:"read_only,omitempty"`
	Label     string                   `json:"label,omitempty"`
}

// SessionRecord captures a session's durable state.
type SessionRecord struct {
	ID         schema.SessionID       `json:"id"`
	WorkDir    string                 `json:"work_dir"`
	DisplayDir string                 `json:"display_dir,omitempty"`
	InputMode  schema.InputMode       `json:"input_mode"`
	GitRepo    bool                   `json:"git_repo,omitempty"`
	Overrides  schema.AgentOverrides  `json:"overrides,omitempty"`
	Order      []schema.TabID         `json:"order"`
	ActiveTab  schema.TabID           `json:"active_tab,omitempty"`
	Tabs       []TabRecord            `json:"tabs"`
	Queue      []ItemRecord           `json:"queue,omitempty"`
}

// Store persists session records to disk, one JSON file per session.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads one session record from disk.
func (s *Store) Load(sessionID schema.SessionID) (SessionRecord, bool, error) {
	path := s.pathForSession(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("state load miss", "session", sessionID)
			}
			return SessionRecord{}, false, nil
		}
		if s.log != nil {
			s.log.Warn("state load failed", "session", sessionID, "err", err)
		}
		return SessionRecord{}, false, err
	}
	var record SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		if s.log != nil {
			s.log.Warn("state load failed", "session", sessionID, "err", err)
		}
		return SessionRecord{}, false, err
	}
	if s.log != nil {
		s.log.Debug("state load ok", "session", sessionID, "tabs", len(record.Tabs))
	}
	return record, true, nil
}

// LoadAll reads every session record in the store directory.
func (s *Store) LoadAll() ([]SessionRecord, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	records := make([]SessionRecord, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			if s.log != nil {
				s.log.Warn("state load failed", "file", entry.Name(), "err", err)
			}
			continue
		}
		var record SessionRecord
		if err := json.Unmarshal(data, &record); err != nil {
			if s.log != nil {
				s.log.Warn("state load failed", "file", entry.Name(), "err", err)
			}
			continue
		}
		if record.ID == "" {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Save writes a session record to disk atomically.
func (s *Store) Save(record SessionRecord) error {
	path := s.pathForSession(record.ID)
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "state-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Trace("state save ok", "session", record.ID, "tabs", len(record.Tabs))
	}
	return nil
}

// Delete removes a session record from disk.
func (s *Store) Delete(sessionID schema.SessionID) error {
	err := os.Remove(s.pathForSession(sessionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) pathForSession(sessionID schema.SessionID) string {
	return filepath.Join(s.dir, sanitize(string(sessionID))+".json")
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	if b.Len() == 0 {
		return "session"
	}
	return b.String()
}
