// Package workflow implements the workflow registry: a persistent catalogue
// of named workflows with entity/doctype and handling policy.
package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/juanre/mail-flow/internal/archivekit"
	"github.com/juanre/mail-flow/internal/errs"
)

// MaxWorkflows is the hard cap on registry size.
const MaxWorkflows = 100

var namePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ArchiveHandling describes where and how a matched document is archived.
type ArchiveHandling struct {
	Target  string `json:"target"`
	Entity  string `json:"entity"`
	Doctype string `json:"doctype"`
}

// IndexHandling describes optional semantic indexing behavior.
type IndexHandling struct {
	LLMemory bool `json:"llmemory"`
}

// Handling bundles archive and index handling policy.
type Handling struct {
	Archive ArchiveHandling `json:"archive"`
	Index   IndexHandling   `json:"index"`
}

// Workflow is a user-defined archival policy.
type Workflow struct {
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Entity          string         `json:"entity"`
	Doctype         string         `json:"doctype"`
	Handling        Handling       `json:"handling"`
	ClassifierHints map[string]any `json:"classifier_hints,omitempty"`
	Summary         string         `json:"summary,omitempty"`
}

// Validate enforces the name pattern and basic required fields.
func (w *Workflow) Validate() error {
	if !namePattern.MatchString(w.Name) {
		return errs.New(errs.WorkflowConfigError, "validate",
			fmt.Errorf("workflow name must match ^[a-z0-9_-]+$: %q", w.Name))
	}
	if w.Entity == "" || w.Doctype == "" {
		return errs.New(errs.WorkflowConfigError, "validate",
			fmt.Errorf("workflow %q missing entity/doctype", w.Name))
	}
	if w.Handling.Archive.Entity == "" {
		w.Handling.Archive.Entity = w.Entity
	}
	if w.Handling.Archive.Doctype == "" {
		w.Handling.Archive.Doctype = w.Doctype
	}
	// a document's workflow must match its own archive handling.
	if w.Handling.Archive.Entity != w.Entity || w.Handling.Archive.Doctype != w.Doctype {
		return errs.New(errs.WorkflowConfigError, "validate",
			fmt.Errorf("workflow %q handling.archive entity/doctype must match entity/doctype", w.Name))
	}
	return nil
}

type registryFile struct {
	Workflows map[string]*Workflow `json:"workflows"`
}

// Registry is the persistent workflow catalogue.
type Registry struct {
	path      string
	store     *archivekit.Store
	logger    hclog.Logger
	workflows map[string]*Workflow
}

// Config configures a Registry.
type Config struct {
	Path   string
	Logger hclog.Logger
}

// Load reads the registry file at cfg.Path; a missing file yields an empty
// registry, and the file is first written by the next Add, Update or
// delete. Invalid entries are logged and skipped; the rest load.
func Load(cfg Config) (*Registry, error) {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	r := &Registry{
		path:      cfg.Path,
		store:     archivekit.NewStore(archivekit.StoreConfig{Logger: cfg.Logger}),
		logger:    cfg.Logger.Named("workflow-registry"),
		workflows: map[string]*Workflow{},
	}

	raw, err := os.ReadFile(cfg.Path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, errs.New(errs.IOError, "read-registry", err)
	}

	var file registryFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, errs.New(errs.SchemaValidationErr, "parse-registry", err)
	}
	for name, wf := range file.Workflows {
		if err := wf.Validate(); err != nil {
			r.logger.Warn("skipping invalid workflow on load", "name", name, "error", err)
			continue
		}
		r.workflows[name] = wf
	}
	return r, nil
}

func (r *Registry) persist() error {
	lock := archivekit.NewFileLock(r.path)
	if err := lock.Acquire(10 * time.Second); err != nil {
		return err
	}
	defer lock.Release()

	file := registryFile{Workflows: r.workflows}
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return errs.New(errs.IOError, "marshal-registry", err)
	}
	return r.store.WriteAtomic(r.path, raw)
}

// List returns all workflows, sorted by name for deterministic output.
func (r *Registry) List() []*Workflow {
	out := make([]*Workflow, 0, len(r.workflows))
	for _, wf := range r.workflows {
		out = append(out, wf)
	}
	sortWorkflowsByName(out)
	return out
}

// Get returns the workflow with the given name, or an error if unknown.
func (r *Registry) Get(name string) (*Workflow, error) {
	wf, ok := r.workflows[name]
	if !ok {
		return nil, errs.New(errs.WorkflowNotFound, "get", fmt.Errorf("no workflow named %q", name))
	}
	return wf, nil
}

// Add inserts a new workflow, enforcing MaxWorkflows and name uniqueness.
func (r *Registry) Add(wf *Workflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}
	if _, exists := r.workflows[wf.Name]; exists {
		return errs.New(errs.WorkflowConfigError, "add",
			fmt.Errorf("workflow %q already exists", wf.Name))
	}
	if len(r.workflows) >= MaxWorkflows {
		return errs.New(errs.WorkflowConfigError, "add",
			fmt.Errorf("registry at MAX_WORKFLOWS limit (%d)", MaxWorkflows))
	}
	r.workflows[wf.Name] = wf
	return r.persist()
}

// Update replaces an existing workflow in place.
func (r *Registry) Update(wf *Workflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}
	if _, exists := r.workflows[wf.Name]; !exists {
		return errs.New(errs.WorkflowNotFound, "update", fmt.Errorf("no workflow named %q", wf.Name))
	}
	r.workflows[wf.Name] = wf
	return r.persist()
}

// ReferenceChecker reports whether a workflow name is still referenced by
// training criteria; injected so the registry doesn't import the
// similarity/classify packages directly.
type ReferenceChecker func(name string) (bool, error)

// DeleteIfUnreferenced removes a workflow, failing if isReferenced reports
// it is still used by a CriteriaInstance, preserving referential integrity.
func (r *Registry) DeleteIfUnreferenced(name string, isReferenced ReferenceChecker) error {
	if _, exists := r.workflows[name]; !exists {
		return errs.New(errs.WorkflowNotFound, "delete", fmt.Errorf("no workflow named %q", name))
	}
	if isReferenced != nil {
		referenced, err := isReferenced(name)
		if err != nil {
			return err
		}
		if referenced {
			return errs.New(errs.WorkflowConfigError, "delete",
				fmt.Errorf("workflow %q is still referenced by training criteria", name))
		}
	}
	delete(r.workflows, name)
	return r.persist()
}

func sortWorkflowsByName(wfs []*Workflow) {
	for i := 1; i < len(wfs); i++ {
		for j := i; j > 0 && wfs[j-1].Name > wfs[j].Name; j-- {
			wfs[j-1], wfs[j] = wfs[j], wfs[j-1]
		}
	}
}
