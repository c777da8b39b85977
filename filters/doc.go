// Copyright 2015 Zalando SE
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package filters implements the filter chain executed for every routed
request.

A filter wraps a Handler with an order. The filters of a route, the global
filters of the gateway and the default filters shared by all routes are
combined into a single list, sorted by ascending order with ties kept in
declaration order, and executed as a chain of responsibility: each handler
receives the exchange and the continuation of the chain. Work done before
calling Next is the request phase, work done after Next returned is the
response phase.

A handler calls Next at most once. A second call returns
ErrChainReentered. Not calling Next at all short-circuits the chain, which
is how filters answer requests themselves, e.g. with 401 or 429. Errors
returned by Next are returned unchanged by every handler except those
designed to recover from them, like the circuit breaker with a fallback.

Route filters without an explicit order get the order index+1 of their
position in the declaring list. Handlers implementing Ordered declare their
own order instead.

Filter factories implement Spec and are registered by name in a Registry.
Their arguments are bound by the binding package.
*/
package filters
