package config

import (
	"fmt"
	"strings"

	"github.com/zalando/gateway/routedef"
)

// defaultFiltersFlags collects the filters added to every route, one
// shortcut definition per flag occurrence, e.g.
//
//	-default-filters AddResponseHeader=X-Gateway,1 -default-filters PreserveHostHeader
type defaultFiltersFlags struct {
	filters []*routedef.Spec
}

func (dpf *defaultFiltersFlags) String() string {
	if dpf == nil || len(dpf.filters) == 0 {
		return ""
	}

	s := make([]string, len(dpf.filters))
	for i, f := range dpf.filters {
		s[i] = f.String()
	}

	return strings.Join(s, " ")
}

func (dpf *defaultFiltersFlags) Set(value string) error {
	f, err := routedef.ParseSpec(value)
	if err != nil {
		return fmt.Errorf("failed to parse default filter: %w", err)
	}

	dpf.filters = append(dpf.filters, f)
	return nil
}

func (dpf *defaultFiltersFlags) UnmarshalYAML(unmarshal func(any) error) error {
	var values []string
	if err := unmarshal(&values); err != nil {
		return err
	}

	dpf.filters = nil
	for _, v := range values {
		if err := dpf.Set(v); err != nil {
			return err
		}
	}

	return nil
}
