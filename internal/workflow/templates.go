package workflow

// DefaultTemplates seeds a small set of built-in workflow templates that
// `archivist init` adds to the registry through SeedDefaults, rather than
// starting from an empty registry.
func DefaultTemplates() []*Workflow {
	return []*Workflow{
		{
			Name:        "generic-receipt",
			Description: "Generic purchase receipts and order confirmations",
			Entity:      "personal",
			Doctype:     "receipt",
			Handling: Handling{
				Archive: ArchiveHandling{Entity: "personal", Doctype: "receipt"},
				Index:   IndexHandling{LLMemory: true},
			},
			Summary: "Matches receipts/order confirmations by subject keywords and PDF attachments.",
		},
		{
			Name:        "generic-statement",
			Description: "Bank and credit card statements",
			Entity:      "personal",
			Doctype:     "statement",
			Handling: Handling{
				Archive: ArchiveHandling{Entity: "personal", Doctype: "statement"},
				Index:   IndexHandling{LLMemory: true},
			},
			Summary: "Matches monthly account statements, usually with a PDF attachment.",
		},
		{
			Name:        "_skip",
			Description: "Negative training examples; documents classified _skip are never archived",
			Entity:      "none",
			Doctype:     "none",
			Handling: Handling{
				Archive: ArchiveHandling{Entity: "none", Doctype: "none"},
			},
			Summary: "Special workflow used only as a label for user-confirmed negatives.",
		},
	}
}

// SeedDefaults adds any DefaultTemplates not already present in r. Used by
// `archivist init`.
func (r *Registry) SeedDefaults() error {
	for _, tmpl := range DefaultTemplates() {
		if _, exists := r.workflows[tmpl.Name]; exists {
			continue
		}
		if err := r.Add(tmpl); err != nil {
			return err
		}
	}
	return nil
}
