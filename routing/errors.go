package routing

import (
	"errors"
	"fmt"

	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/predicates"
)

// Reasons of invalid route definitions, used as metric labels.
const (
	ReasonUnknownFilter          = "unknown_filter"
	ReasonInvalidFilterParams    = "invalid_filter_params"
	ReasonUnknownPredicate       = "unknown_predicate"
	ReasonInvalidPredicateParams = "invalid_predicate_params"
	ReasonInvalidURI             = "invalid_uri"
	ReasonInvalidMetadata        = "invalid_metadata"
	ReasonMissingID              = "missing_id"
	ReasonOther                  = "other"
)

// ConfigError is returned for a route definition that cannot be built.
type ConfigError struct {
	RouteID string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid route %q: %s: %v", e.RouteID, e.Reason, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configError(routeID, reason string, err error) error {
	return &ConfigError{RouteID: routeID, Reason: reason, Err: err}
}

func predicateError(routeID string, err error) error {
	if errors.Is(err, predicates.ErrUnknownPredicate) {
		return configError(routeID, ReasonUnknownPredicate, err)
	}

	return configError(routeID, ReasonInvalidPredicateParams, err)
}

func filterError(routeID string, err error) error {
	if errors.Is(err, filters.ErrUnknownFilter) {
		return configError(routeID, ReasonUnknownFilter, err)
	}

	return configError(routeID, ReasonInvalidFilterParams, err)
}

// Reason returns the reason of a ConfigError, or ReasonOther.
func Reason(err error) string {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Reason
	}

	return ReasonOther
}
