// Package builtin provides the predicate factories available in route
// definitions.
package builtin

import "github.com/zalando/gateway/predicates"

const (
	PathName       = "Path"
	HostName       = "Host"
	MethodName     = "Method"
	HeaderName     = "Header"
	QueryName      = "Query"
	CookieName     = "Cookie"
	AfterName      = "After"
	BeforeName     = "Before"
	BetweenName    = "Between"
	RemoteAddrName = "RemoteAddr"
	ReadBodyName   = "ReadBody"
)

// MakeRegistry returns a registry with all the builtin predicate factories.
func MakeRegistry() predicates.Registry {
	r := make(predicates.Registry)
	for _, s := range []predicates.Spec{
		NewPath(),
		NewHost(),
		NewMethod(),
		NewHeader(),
		NewQuery(),
		NewCookie(),
		NewAfter(),
		NewBefore(),
		NewBetween(),
		NewRemoteAddr(),
		NewReadBody(),
	} {
		r.Register(s)
	}

	return r
}
