// Package file provides a file-based record store for payment workflows.
// Intended for development and tests; production deployments use the
// postgresql store.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/paygrid/payflow/pkg/models"
	"github.com/paygrid/payflow/pkg/persistence"
)

// Store implements persistence.RecordStore on the local file system. Records
// live under <root>/<owner>/workflows/<id>.json and the source index under
// <root>/<owner>/sources.json.
type Store struct {
	root string
	mu   sync.RWMutex
}

// NewStore creates a file-backed record store rooted at root.
func NewStore(root string) *Store {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Store{root: cleanRoot}
}

// Close performs any necessary cleanup. There is nothing to clean up for
// the file store.
func (s *Store) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Store atomically upserts a workflow record and its source index entries.
func (s *Store) Store(_ context.Context, workflow *models.Workflow) error {
	if err := persistence.ValidateRecord(workflow); err != nil {
		return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.workflowDir(workflow.Owner)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
	}

	tmp := filepath.Join(dir, workflow.ID+".json.tmp")

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
	}

	err = os.Rename(tmp, filepath.Join(dir, workflow.ID+".json"))
	if err != nil {
		return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
	}

	err = s.indexSources(workflow)
	if err != nil {
		return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
	}

	return nil
}

// Load returns the workflow record for (owner, workflowID).
func (s *Store) Load(_ context.Context, owner, workflowID string) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.load(owner, workflowID)
}

func (s *Store) load(owner, workflowID string) (*models.Workflow, error) {
	data, err := os.ReadFile(filepath.Join(s.workflowDir(owner), workflowID+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewStoreError("Load", owner, workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewStoreError("Load", owner, workflowID, err)
	}

	workflow, err := models.UnmarshalWorkflow(data)
	if err != nil {
		return nil, persistence.NewStoreError("Load", owner, workflowID, err)
	}

	return workflow, nil
}

// LookupBySource resolves the secondary index (owner, sourceID) to a
// workflow ID.
func (s *Store) LookupBySource(_ context.Context, owner, sourceID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.readIndex(owner)
	if err != nil {
		return "", persistence.NewStoreError("LookupBySource", owner, "", err)
	}

	workflowID, ok := index[sourceID]
	if !ok {
		return "", persistence.NewStoreError("LookupBySource", owner, "", persistence.ErrSourceNotFound)
	}

	return workflowID, nil
}

// ListByState returns the IDs of the owner's workflows of one kind in one
// state.
func (s *Store) ListByState(_ context.Context, owner string, kind models.Kind, state models.State) ([]string, error) {
	return s.scan(owner, func(w *models.Workflow) bool {
		return w.Type == kind && w.State == state
	})
}

// ListByAccount returns the IDs of the owner's workflows touching the given
// account.
func (s *Store) ListByAccount(_ context.Context, owner, accountID string) ([]string, error) {
	return s.scan(owner, func(w *models.Workflow) bool {
		return w.HasAccount(accountID)
	})
}

func (s *Store) scan(owner string, match func(*models.Workflow) bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := s.workflowDir(owner)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, persistence.NewStoreError("List", owner, "", err)
	}

	ids := make([]string, 0)

	for _, file := range jsonFiles {
		workflowID := file[:len(file)-5] // strip .json

		workflow, err := s.load(owner, workflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
		}

		if match(workflow) {
			ids = append(ids, workflow.ID)
		}
	}

	return ids, nil
}

func (s *Store) workflowDir(owner string) string {
	return filepath.Join(s.root, owner, "workflows")
}

func (s *Store) indexPath(owner string) string {
	return filepath.Join(s.root, owner, "sources.json")
}

func (s *Store) readIndex(owner string) (map[string]string, error) {
	data, err := os.ReadFile(s.indexPath(owner))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}

		return nil, err
	}

	index := make(map[string]string)

	err = json.Unmarshal(data, &index)
	if err != nil {
		return nil, err
	}

	return index, nil
}

func (s *Store) indexSources(workflow *models.Workflow) error {
	index, err := s.readIndex(workflow.Owner)
	if err != nil {
		return err
	}

	changed := false

	for _, src := range workflow.Source {
		existing, ok := index[src.ID]
		if ok {
			if existing != workflow.ID {
				return persistence.ErrDuplicateSource
			}

			continue
		}

		index[src.ID] = workflow.ID
		changed = true
	}

	if !changed {
		return nil
	}

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.indexPath(workflow.Owner), data, 0600)
}
