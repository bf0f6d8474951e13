package inbound

import (
	"context"
	"errors"
	"fmt"

	apperrors "verdict/pkg/errors"
)

// Taxonomy classifies a business fault for the decision policy.
type Taxonomy string

const (
	TaxonomyValidation Taxonomy = "VALIDATION"
	TaxonomyTransient  Taxonomy = "TRANSIENT"
	TaxonomyPermanent  Taxonomy = "PERMANENT"
	TaxonomySecurity   Taxonomy = "SECURITY"
	TaxonomyDuplicate  Taxonomy = "DUPLICATE"
	TaxonomyInternal   Taxonomy = "INTERNAL"
)

// Failure is a business fault collected while a message is processed.
// Unlike a violation it does not stop the pipeline; it is handed to the
// decision policy.
type Failure struct {
	Taxonomy Taxonomy `json:"taxonomy"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Cause    error    `json:"-"`
}

func NewFailure(taxonomy Taxonomy, code, message string) Failure {
	return Failure{Taxonomy: taxonomy, Code: code, Message: message}
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s/%s: %s", f.Taxonomy, f.Code, f.Message)
}

// Classify maps an error to a taxonomy. Errors that carry no classification
// are treated as transient.
func Classify(err error) Taxonomy {
	var f Failure
	if errors.As(err, &f) {
		return f.Taxonomy
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), apperrors.IsTimeout(err):
		return TaxonomyTransient
	case apperrors.IsSecurity(err):
		return TaxonomySecurity
	case apperrors.IsConflict(err):
		return TaxonomyDuplicate
	case apperrors.IsValidation(err):
		return TaxonomyValidation
	}
	if appErr, ok := apperrors.As(err); ok {
		var p *apperrors.PanicError
		if appErr.Code == apperrors.ErrInternal.Code && errors.As(err, &p) {
			return TaxonomyInternal
		}
		if appErr.IsFatal() {
			return TaxonomyPermanent
		}
		return TaxonomyTransient
	}
	var fatal apperrors.FatalError
	if errors.As(err, &fatal) && fatal.IsFatal() {
		return TaxonomyPermanent
	}
	return TaxonomyTransient
}

// FailureFromError builds a Failure with code from err and its taxonomy.
func FailureFromError(code string, err error) Failure {
	var f Failure
	if errors.As(err, &f) {
		return f
	}
	return Failure{Taxonomy: Classify(err), Code: code, Message: err.Error(), Cause: err}
}

// Failures is the ordered list of faults collected for one message.
type Failures []Failure

func (fs Failures) Has(t Taxonomy) bool {
	_, ok := fs.First(t)
	return ok
}

func (fs Failures) First(t Taxonomy) (Failure, bool) {
	for _, f := range fs {
		if f.Taxonomy == t {
			return f, true
		}
	}
	return Failure{}, false
}

// FirstOf returns the first failure whose taxonomy is any of ts.
func (fs Failures) FirstOf(ts ...Taxonomy) (Failure, bool) {
	for _, f := range fs {
		for _, t := range ts {
			if f.Taxonomy == t {
				return f, true
			}
		}
	}
	return Failure{}, false
}

func (fs Failures) Codes() []string {
	codes := make([]string, 0, len(fs))
	for _, f := range fs {
		codes = append(codes, f.Code)
	}
	return codes
}
