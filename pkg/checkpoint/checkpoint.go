package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"ctpull/pkg/logger"

	"github.com/google/uuid"
)

// CurrentVersion is the checkpoint file format version
const CurrentVersion = 1

// Checkpoint is the resumable state of one collection job
type Checkpoint struct {
	Key       string   `json:"key"`
	RunID     string   `json:"run_id"`
	ListIDs   []string `json:"list_ids"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
	Output    string   `json:"output,omitempty"`
	// NextLocator is the page a resumed run starts from
	NextLocator string `json:"next_locator"`
	// Calls and Records accumulate over every run of the job
	Calls     int       `json:"calls"`
	Records   int       `json:"records"`
	Complete  bool      `json:"complete"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Resumable reports whether a later run can continue this job
func (c *Checkpoint) Resumable() bool {
	return c != nil && !c.Complete && c.NextLocator != ""
}

// Key identifies a job by its lists and date range. List order does not matter.
func Key(listIDs []string, start, end string) string {
	ids := append([]string(nil), listIDs...)
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, ",") + "|" + start + "|" + end))
	return hex.EncodeToString(sum[:8])
}

// Manager handles checkpoint operations for one job
type Manager struct {
	key            string
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a manager storing checkpoints in the user data directory
func NewManager(key string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerInDir(filepath.Join(dataDir, "checkpoints"), key)
}

// NewManagerInDir creates a manager storing checkpoints in dir
func NewManagerInDir(dir, key string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		key:            key,
		checkpointPath: filepath.Join(dir, key+".checkpoint.json"),
		logger:         logger.GetLogger().WithField("component", "checkpoint"),
	}, nil
}

// SetLogger replaces the manager's logger
func (m *Manager) SetLogger(l logger.Logger) {
	m.logger = l
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create starts a fresh checkpoint for the job and saves it
func (m *Manager) Create(listIDs []string, start, end, output string) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		Key:       m.key,
		RunID:     uuid.NewString(),
		ListIDs:   listIDs,
		StartDate: start,
		EndDate:   end,
		Output:    output,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   CurrentVersion,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"key":    m.key,
		"run_id": checkpoint.RunID,
		"path":   m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Version > CurrentVersion {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", checkpoint.Version, CurrentVersion)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"key":          checkpoint.Key,
		"records":      checkpoint.Records,
		"next_locator": checkpoint.NextLocator != "",
		"complete":     checkpoint.Complete,
		"updated_at":   checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Resume returns the stored checkpoint with a new run ID, or creates one
// when nothing is stored or the stored job already finished
func (m *Manager) Resume(listIDs []string, start, end, output string) (*Checkpoint, error) {
	checkpoint, err := m.Load()
	if err != nil {
		return nil, err
	}
	if !checkpoint.Resumable() {
		return m.Create(listIDs, start, end, output)
	}

	checkpoint.RunID = uuid.NewString()
	if err := m.Save(checkpoint); err != nil {
		return nil, err
	}
	return checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"key":     checkpoint.Key,
		"calls":   checkpoint.Calls,
		"records": checkpoint.Records,
	})

	return nil
}

// UpdateProgress records one accepted page and the locator after it
func (m *Manager) UpdateProgress(checkpoint *Checkpoint, nextLocator string, pageRecords int) error {
	checkpoint.NextLocator = nextLocator
	checkpoint.Calls++
	checkpoint.Records += pageRecords
	return m.Save(checkpoint)
}

// Finish stores where the run ended. A run with nothing left to fetch
// marks the job complete.
func (m *Manager) Finish(checkpoint *Checkpoint, hasMore bool, nextLocator string) error {
	if hasMore {
		checkpoint.NextLocator = nextLocator
	} else {
		checkpoint.NextLocator = ""
		checkpoint.Complete = true
	}
	return m.Save(checkpoint)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Info returns a summary of the stored checkpoint, or nil when none exists
func (m *Manager) Info() (map[string]interface{}, error) {
	checkpoint, err := m.Load()
	if err != nil || checkpoint == nil {
		return nil, err
	}

	return map[string]interface{}{
		"key":        checkpoint.Key,
		"run_id":     checkpoint.RunID,
		"lists":      checkpoint.ListIDs,
		"calls":      checkpoint.Calls,
		"records":    checkpoint.Records,
		"complete":   checkpoint.Complete,
		"created_at": checkpoint.CreatedAt,
		"updated_at": checkpoint.UpdatedAt,
		"age":        time.Since(checkpoint.UpdatedAt),
	}, nil
}

// Backup copies the current checkpoint next to itself
func (m *Manager) Backup() error {
	if !m.Exists() {
		return nil
	}

	backupPath := m.checkpointPath + ".backup"

	src, err := os.Open(m.checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}

	m.logger.Debug("Checkpoint backed up")
	return nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "ctpull")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "ctpull")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "ctpull")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "ctpull")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
