// Package criteria persists the labelled training examples the similarity
// engine and hybrid classifier score against: a JSON file guarded by the
// same advisory-lock read-modify-write discipline as the workflow registry.
package criteria

import (
	"encoding/json"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/juanre/mail-flow/internal/archivekit"
	"github.com/juanre/mail-flow/internal/errs"
	"github.com/juanre/mail-flow/internal/similarity"
)

// MaxInstancesSoft is the soft cap storage.max_criteria_instances_soft
// enforces: Add keeps working past it, only logging a warning, since
// training data loss is worse than an oversized file.
const MaxInstancesSoft = 10_000

type storeFile struct {
	Instances []similarity.CriteriaInstance `json:"instances"`
}

// Store is the persistent, file-backed training example catalogue.
type Store struct {
	path      string
	store     *archivekit.Store
	logger    hclog.Logger
	instances []similarity.CriteriaInstance
}

// Config configures a Store.
type Config struct {
	Path   string
	Logger hclog.Logger
}

// Load opens (creating if absent) the criteria file at cfg.Path.
func Load(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	s := &Store{
		path:   cfg.Path,
		store:  archivekit.NewStore(archivekit.StoreConfig{Logger: cfg.Logger}),
		logger: cfg.Logger.Named("criteria-store"),
	}

	raw, err := os.ReadFile(cfg.Path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errs.New(errs.IOError, "read-criteria", err)
	}

	var file storeFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, errs.New(errs.SchemaValidationErr, "parse-criteria", err)
	}
	s.instances = file.Instances
	return s, nil
}

// All returns every training example currently on disk.
func (s *Store) All() ([]similarity.CriteriaInstance, error) {
	return s.instances, nil
}

// CountNonSkip returns the number of training examples not labelled
// similarity.SkipWorkflow; used to gate whether the classifier has enough
// signal to trust similarity scoring over the LLM.
func (s *Store) CountNonSkip() (int, error) {
	n := 0
	for _, ci := range s.instances {
		if ci.WorkflowName != similarity.SkipWorkflow {
			n++
		}
	}
	return n, nil
}

// Add appends a new training example and persists the store.
func (s *Store) Add(ci similarity.CriteriaInstance) error {
	if ci.Timestamp.IsZero() {
		ci.Timestamp = time.Now().UTC()
	}
	s.instances = append(s.instances, ci)
	if len(s.instances) > MaxInstancesSoft {
		s.logger.Warn("criteria store past soft cap", "count", len(s.instances), "soft_cap", MaxInstancesSoft)
	}
	return s.persist()
}

func (s *Store) persist() error {
	lock := archivekit.NewFileLock(s.path)
	if err := lock.Acquire(10 * time.Second); err != nil {
		return err
	}
	defer lock.Release()

	raw, err := json.MarshalIndent(storeFile{Instances: s.instances}, "", "  ")
	if err != nil {
		return errs.New(errs.IOError, "marshal-criteria", err)
	}
	return s.store.WriteAtomic(s.path, raw)
}

// IsReferenced reports whether any training example is labelled with
// workflowName, satisfying workflow.ReferenceChecker.
func (s *Store) IsReferenced(workflowName string) (bool, error) {
	for _, ci := range s.instances {
		if ci.WorkflowName == workflowName {
			return true, nil
		}
	}
	return false, nil
}
