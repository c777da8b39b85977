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
Package proxy implements the HTTP handler of the gateway, based on the
continuously updated routes.

# Proxy Mechanism

1. route matching:

The incoming request is wrapped in an exchange, and matched against the
current route snapshot. The routes are tested in ascending order, and the
first route with a matching predicate is used. When no route matches, the
proxy responds with 404 or 503, depending on its configuration.

2. filter chain:

The filters of the matched route are executed in their order. The filters
include the global dispatch filters, that resolve the target of the route
and call the upstream, an in-process function or a websocket backend, and
the response writing filter, that sends the upstream body once every other
filter completed.

A filter may short-circuit the chain by not calling the next filter. In
this case, the response consists of the status and the headers set by the
filters so far.

3. errors:

When the chain fails, the proxy responds with the status selected by the
error, unless the response was already committed or the connection was
hijacked. Routing failures are answered with 404 or 503, upstream
timeouts with 504, upstream connection failures with 502, and other
errors with 500.

Every request is logged to the access log, with the id of the matched
route and the id of the exchange.
*/
package proxy
