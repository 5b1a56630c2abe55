package jobs

import (
	"fmt"
	"strings"

	"github.com/ansonxing23/mt-evaluation/internal/language"
	"github.com/ansonxing23/mt-evaluation/pkg/storage"
)

const (
	maxInlineSentences = 10000
	maxReferenceSets   = 16
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// Validate checks the language and that the corpora are given in exactly one
// form with aligned sizes.
func Validate(req *Request) error {
	errs := make(map[string]string)

	if strings.TrimSpace(req.Language) == "" {
		errs["language"] = "language is required"
	} else if _, err := language.Resolve(req.Language); err != nil {
		errs["language"] = fmt.Sprintf("%s does not exist", req.Language)
	}

	inline := len(req.Hypotheses) > 0 || len(req.References) > 0
	remote := req.HypothesesURI != "" || len(req.ReferencesURIs) > 0
	switch {
	case inline && remote:
		errs["request"] = "give the corpora either inline or as s3 uris, not both"
	case inline:
		validateInline(req, errs)
	case remote:
		validateRemote(req, errs)
	default:
		errs["hypotheses"] = "hypotheses are required"
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateInline(req *Request, errs map[string]string) {
	switch {
	case len(req.Hypotheses) == 0:
		errs["hypotheses"] = "hypotheses are required"
	case len(req.Hypotheses) > maxInlineSentences:
		errs["hypotheses"] = fmt.Sprintf("at most %d inline sentences; upload larger corpora to s3", maxInlineSentences)
	}
	if len(req.References) == 0 {
		errs["references"] = "at least one reference set is required"
		return
	}
	if len(req.References) > maxReferenceSets {
		errs["references"] = fmt.Sprintf("at most %d reference sets", maxReferenceSets)
		return
	}
	for i, doc := range req.References {
		if len(doc) != len(req.Hypotheses) {
			errs["references"] = fmt.Sprintf("reference set %d has %d sentences, want %d", i, len(doc), len(req.Hypotheses))
			return
		}
	}
}

func validateRemote(req *Request, errs map[string]string) {
	if _, _, err := storage.ParseURI(req.HypothesesURI); err != nil {
		errs["hypotheses_uri"] = err.Error()
	}
	if len(req.ReferencesURIs) == 0 {
		errs["references_uris"] = "at least one reference uri is required"
		return
	}
	if len(req.ReferencesURIs) > maxReferenceSets {
		errs["references_uris"] = fmt.Sprintf("at most %d reference sets", maxReferenceSets)
		return
	}
	for _, uri := range req.ReferencesURIs {
		if _, _, err := storage.ParseURI(uri); err != nil {
			errs["references_uris"] = err.Error()
			return
		}
	}
}
