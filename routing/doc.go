/*
Package routing implements matching of http requests to a continuously
updatable set of routes.

# Route Definitions

Route definitions are loaded from one or more data clients. A definition
names its predicates and filters, which are created with the predicate
and filter registries. Unknown names and invalid arguments make the
definition invalid. Depending on the options, an invalid definition is
logged and dropped, or the whole update is rejected and the previous
routes stay active.

The filters of a route are the global filters, the default filters and
the filters of the definition, ordered by their order. Filters of the
same order keep their declaration order.

# Request Evaluation

Routes are evaluated in ascending order. The first route whose predicate
matches serves the request. A route without predicates matches every
request. When evaluating the predicate of a route fails, the failure is
logged and the route is skipped.

# Updates

The data clients are polled for updates. The routes built from the merged
definitions of all clients replace the active routes atomically; requests
in flight keep the routes they matched against.
*/
package routing
