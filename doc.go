/*
Package gateway provides an HTTP and WebSocket API gateway with runtime
updates of the routing rules.

Every request is matched against the current routes. A route consists of a
predicate, a list of filters and a target URI. The first route, in
ascending order, whose predicate accepts the request is selected. The
filters of the route, combined with the default filters and the global
dispatch filters, run as a chain that may modify the request before the
upstream call and the response after it.

# Route definitions

Routes are loaded from YAML route files, local ones watched for changes or
remote ones polled over HTTP:

	routes:
	- id: users
	  uri: lb://users
	  order: 1
	  predicates:
	  - Path=/api/users/{segment}
	  - Method=GET,POST
	  filters:
	  - StripPrefix=1
	  - AddRequestHeader=X-Segment,{segment}
	  metadata:
	    response-timeout: 2000
	- id: upper
	  uri: fn://uppercase
	  predicates:
	  - Path=/upper

Predicates and filters use the shortcut form Name=arg0,arg1, or the named
form with name and args keys.

# Targets

The scheme of the route URI selects the dispatch:

	http, https  forwarded to the URI
	ws, wss      WebSocket relay, http and https routes are upgraded too
	lb           a service instance chosen by the load balancer
	fn           an in-process function of the catalog

Without a matching route, the gateway responds with 503, or 404 when
configured.

# Running

The gateway command in cmd/gateway starts the gateway from command line
flags and an optional YAML config file. Programs embedding the gateway call
Run with Options, registering their own predicates, filters and functions.
*/
package gateway
