// Package config loads and validates the single HCL configuration document
// that drives every other package's defaults: feature weights, similarity
// thresholds, classifier gating, archive layout, LLM mode, and storage caps.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/juanre/mail-flow/internal/errs"
)

// FeatureWeights mirrors similarity.Weights in HCL-decodable form.
type FeatureWeights struct {
	FromDomain        float64 `hcl:"from_domain,optional"`
	SubjectSimilarity float64 `hcl:"subject_similarity,optional"`
	HasPDF            float64 `hcl:"has_pdf,optional"`
	BodyKeywords      float64 `hcl:"body_keywords,optional"`
	ToAddress         float64 `hcl:"to_address,optional"`
}

// SimilarityConfig mirrors the similarity engine's thresholds.
type SimilarityConfig struct {
	MinThreshold        float64 `hcl:"min_threshold,optional"`
	SkipLLMThreshold    float64 `hcl:"skip_llm_threshold,optional"`
	MinTrainingExamples int     `hcl:"min_training_examples,optional"`
}

// ClassifierConfig gates when the hybrid classifier consults similarity at
// all.
type ClassifierConfig struct {
	GateEnabled      bool    `hcl:"gate_enabled,optional"`
	GateMinConfidence float64 `hcl:"gate_min_confidence,optional"`
}

// ArchiveConfig mirrors archive.Config.
type ArchiveConfig struct {
	BasePath            string `hcl:"base_path"`
	Layout              string `hcl:"layout,optional"`
	SaveOriginals       bool   `hcl:"save_originals,optional"`
	OriginalsPrefixDate bool   `hcl:"originals_prefix_date,optional"`
	ConvertAttachments  bool   `hcl:"convert_attachments,optional"`
}

// ModelAlias selects which LLM tier the advisor should request.
type ModelAlias string

const (
	ModelFast     ModelAlias = "fast"
	ModelBalanced ModelAlias = "balanced"
	ModelDeep     ModelAlias = "deep"
)

// LLMConfig controls whether and how the LLM advisor is consulted.
type LLMConfig struct {
	Enabled    bool   `hcl:"enabled,optional"`
	ModelAlias string `hcl:"model_alias,optional"`
}

// SecurityConfig bounds untrusted input.
type SecurityConfig struct {
	MaxEmailSizeMB int `hcl:"max_email_size_mb,optional"`
}

// StorageConfig caps the size of the on-disk stores.
type StorageConfig struct {
	MaxCriteriaInstancesSoft int `hcl:"max_criteria_instances_soft,optional"`
	MaxWorkflows             int `hcl:"max_workflows,optional"`
}

// Config is the full decoded document.
type Config struct {
	FeatureWeights FeatureWeights   `hcl:"feature_weights,block"`
	Similarity     SimilarityConfig `hcl:"similarity,block"`
	Classifier     ClassifierConfig `hcl:"classifier,block"`
	Archive        ArchiveConfig    `hcl:"archive,block"`
	LLM            LLMConfig        `hcl:"llm,block"`
	Security       SecurityConfig   `hcl:"security,block"`
	Storage        StorageConfig    `hcl:"storage,block"`
}

// Default returns the documented default configuration, rooted at basePath
// for archive storage.
func Default(basePath string) *Config {
	return &Config{
		FeatureWeights: FeatureWeights{
			FromDomain: 0.30, SubjectSimilarity: 0.25, HasPDF: 0.20, BodyKeywords: 0.15, ToAddress: 0.10,
		},
		Similarity: SimilarityConfig{
			MinThreshold: 0.0, SkipLLMThreshold: 0.98, MinTrainingExamples: 5,
		},
		Classifier: ClassifierConfig{
			GateEnabled: true, GateMinConfidence: 0.85,
		},
		Archive: ArchiveConfig{
			BasePath: basePath, Layout: "v2", SaveOriginals: true, ConvertAttachments: true,
		},
		LLM: LLMConfig{
			Enabled: true, ModelAlias: string(ModelBalanced),
		},
		Security: SecurityConfig{
			MaxEmailSizeMB: 25,
		},
		Storage: StorageConfig{
			MaxCriteriaInstancesSoft: 10_000, MaxWorkflows: 100,
		},
	}
}

// Validate checks cross-field and range invariants Load can't express via
// hcl tags alone.
func (c *Config) Validate() error {
	if c.Archive.BasePath == "" {
		return errs.New(errs.WorkflowConfigError, "validate-config", fmt.Errorf("archive.base_path is required"))
	}
	if c.Archive.Layout != "" && c.Archive.Layout != "v2" {
		return errs.New(errs.WorkflowConfigError, "validate-config", fmt.Errorf("archive.layout %q is not supported", c.Archive.Layout))
	}
	switch ModelAlias(c.LLM.ModelAlias) {
	case "", ModelFast, ModelBalanced, ModelDeep:
	default:
		return errs.New(errs.WorkflowConfigError, "validate-config",
			fmt.Errorf("llm.model_alias must be one of fast/balanced/deep, got %q", c.LLM.ModelAlias))
	}
	if c.Security.MaxEmailSizeMB < 0 {
		return errs.New(errs.WorkflowConfigError, "validate-config", fmt.Errorf("security.max_email_size_mb must be >= 0"))
	}
	if c.Similarity.MinTrainingExamples < 0 {
		return errs.New(errs.WorkflowConfigError, "validate-config", fmt.Errorf("similarity.min_training_examples must be >= 0"))
	}
	return nil
}

// Load decodes the HCL config file at path. An invalid file (parse error or
// failed Validate) is renamed aside with a timestamped ".invalid-<ts>"
// suffix and the caller gets Default(fallbackBasePath) instead, so a typo
// never blocks ingestion.
func Load(path, fallbackBasePath string) (*Config, error) {
	var cfg Config
	err := hclsimple.DecodeFile(path, nil, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(fallbackBasePath), nil
		}
		backupPath := path + ".invalid-" + time.Now().UTC().Format("20060102T150405Z")
		if renameErr := os.Rename(path, backupPath); renameErr != nil {
			return nil, errs.New(errs.WorkflowConfigError, "load-config",
				fmt.Errorf("config invalid (%w) and could not be backed up: %v", err, renameErr))
		}
		return Default(fallbackBasePath), nil
	}

	if err := cfg.Validate(); err != nil {
		backupPath := path + ".invalid-" + time.Now().UTC().Format("20060102T150405Z")
		if renameErr := os.Rename(path, backupPath); renameErr != nil {
			return nil, errs.New(errs.WorkflowConfigError, "load-config",
				fmt.Errorf("config invalid (%w) and could not be backed up: %v", err, renameErr))
		}
		return Default(fallbackBasePath), nil
	}

	return &cfg, nil
}

// WriteDefault writes a default config document as HCL text to path,
// creating parent directories as needed. Used by `init`.
func WriteDefault(path, basePath string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.New(errs.IOError, "write-default-config", err)
		}
	}
	body := fmt.Sprintf(defaultConfigTemplate, basePath)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return errs.New(errs.IOError, "write-default-config", err)
	}
	return nil
}

const defaultConfigTemplate = `feature_weights {
  from_domain        = 0.30
  subject_similarity = 0.25
  has_pdf            = 0.20
  body_keywords      = 0.15
  to_address         = 0.10
}

similarity {
  min_threshold         = 0.0
  skip_llm_threshold    = 0.98
  min_training_examples = 5
}

classifier {
  gate_enabled        = true
  gate_min_confidence = 0.85
}

archive {
  base_path             = %q
  layout                = "v2"
  save_originals        = true
  originals_prefix_date = false
  convert_attachments   = true
}

llm {
  enabled     = true
  model_alias = "balanced"
}

security {
  max_email_size_mb = 25
}

storage {
  max_criteria_instances_soft = 10000
  max_workflows               = 100
}
`
