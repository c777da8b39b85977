/*
Package routefile implements data clients reading the route definitions
from YAML or JSON files, see routedef.Parse for the format:

	routes:
	- id: red
	  uri: http://red.example.org
	  predicates:
	  - Path=/red/**
	  filters:
	  - StripPrefix=1

Open reads a file once. Watch rereads the file on every poll of the
routing, and reports the changed and the deleted routes. RemoteWatch
downloads the file from an http or https URL before reading it.

Routes without an id get an id derived from their definition. Changing
such a route replaces it with a new one.
*/
package routefile
