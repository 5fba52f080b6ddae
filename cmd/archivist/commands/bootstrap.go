package commands

import (
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/juanre/mail-flow/internal/archive"
	"github.com/juanre/mail-flow/internal/classify"
	"github.com/juanre/mail-flow/internal/classify/advisor"
	advisormock "github.com/juanre/mail-flow/internal/classify/advisor/mock"
	"github.com/juanre/mail-flow/internal/config"
	"github.com/juanre/mail-flow/internal/criteria"
	"github.com/juanre/mail-flow/internal/dedup"
	"github.com/juanre/mail-flow/internal/feature"
	"github.com/juanre/mail-flow/internal/index"
	"github.com/juanre/mail-flow/internal/pipeline"
	"github.com/juanre/mail-flow/internal/renderer/mock"
	"github.com/juanre/mail-flow/internal/similarity"
	"github.com/juanre/mail-flow/internal/workflow"
)

// app bundles every collaborator an ingest/index/search command needs,
// built once from a loaded config. Close releases the underlying stores.
type app struct {
	Config       *config.Config
	Workflows    *workflow.Registry
	Criteria     *criteria.Store
	Dedup        *dedup.Tracker
	Index        *index.Index
	Orchestrator *pipeline.Orchestrator
}

// appOptions carries the per-run overrides a CLI subcommand can apply on
// top of the loaded config.
type appOptions struct {
	WorkflowFilter []string
	MinConfidence  *float64 // overrides classify.Config.HighThreshold
	TrustLLM       *float64 // overrides classify.Config.TrustLLMThreshold
}

func buildApp(base string, logger hclog.Logger, opts appOptions) (*app, error) {
	cfg := loadConfigOrDefault(base, logger)

	workflows, err := workflow.Load(workflow.Config{
		Path:   filepath.Join(base, "workflows.json"),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	critStore, err := criteria.Load(criteria.Config{
		Path:   filepath.Join(base, "criteria.json"),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	dedupTracker, err := dedup.Open(filepath.Join(base, "dedup.db"))
	if err != nil {
		return nil, err
	}

	ix, err := index.New(index.Config{
		DBPath:   filepath.Join(base, "indexes", "metadata.db"),
		BleveDir: filepath.Join(base, "indexes", "full.bleve"),
		Logger:   logger,
	})
	if err != nil {
		dedupTracker.Close()
		return nil, err
	}

	engine := similarity.New(similarity.Weights{
		FromDomain:        cfg.FeatureWeights.FromDomain,
		SubjectSimilarity: cfg.FeatureWeights.SubjectSimilarity,
		HasPDF:            cfg.FeatureWeights.HasPDF,
		BodyKeywords:      cfg.FeatureWeights.BodyKeywords,
		ToAddress:         cfg.FeatureWeights.ToAddress,
	})

	// The concrete LLM provider is an external adapter (see DESIGN.md); the
	// CLI always runs against the deterministic mock so classification is
	// reproducible without network access or provider credentials.
	var adv advisor.Advisor = advisormock.New()

	highThreshold := classify.HighConfidence
	if opts.MinConfidence != nil {
		highThreshold = *opts.MinConfidence
	}
	trustLLM := 0.6
	if opts.TrustLLM != nil {
		trustLLM = *opts.TrustLLM
	}

	classifier := classify.New(classify.Config{
		HighThreshold:       highThreshold,
		MediumThreshold:     classify.MediumConfidence,
		SkipLLMThreshold:    cfg.Similarity.SkipLLMThreshold,
		MinTrainingExamples: cfg.Similarity.MinTrainingExamples,
		TrustLLMThreshold:   trustLLM,
		AllowLLM:            cfg.LLM.Enabled,
		Logger:              logger,
	}, engine, adv, critStore)

	extractor := feature.New(feature.Config{
		Logger:       logger,
		MaxBodyChars: 0,
	})

	archiver := archive.New(archive.Config{
		BasePath:            cfg.Archive.BasePath,
		SaveOriginals:       cfg.Archive.SaveOriginals,
		OriginalsPrefixDate: cfg.Archive.OriginalsPrefixDate,
		ConvertAttachments:  cfg.Archive.ConvertAttachments,
		Logger:              logger,
	}, mock.New())

	orch := pipeline.New(pipeline.Config{
		Extractor:      extractor,
		Dedup:          dedupTracker,
		Classifier:     classifier,
		Workflows:      workflows,
		Archiver:       archiver,
		Index:          ix,
		WorkflowFilter: opts.WorkflowFilter,
		Logger:         logger,
	})

	return &app{
		Config:       cfg,
		Workflows:    workflows,
		Criteria:     critStore,
		Dedup:        dedupTracker,
		Index:        ix,
		Orchestrator: orch,
	}, nil
}

func (a *app) Close() {
	a.Dedup.Close()
	a.Index.Close()
}
