/*
Package loadbalancer defines the contract between the gateway and the load
balancers resolving lb:// route targets, and provides a static client
factory with in-process algorithms.

A LoadBalancer chooses a ServiceInstance for a service id. Every choice is
accompanied by Lifecycle callbacks: OnStart before choosing, OnStartRequest
once an instance was chosen and the request is about to be sent, and
exactly one OnComplete with the status Success, Failed or Discard, the
latter when no instance was available.

roundRobin Algorithm

	The roundRobin algorithm chooses the instances of a service in
	turn. It has a mutex to update the index and starts at a random
	index.

random Algorithm

	The random algorithm chooses a random instance.

consistentHash Algorithm

	The consistentHash algorithm chooses instances by hashing the hint
	of the request, or the client IP when no hint is set, with xxhash
	and mapping the hash to an instance with jump consistent hashing.
	Adding an instance moves only the keys that the new instance takes
	over.

powerOfRandomNChoices Algorithm

	The powerOfRandomNChoices algorithm selects N random instances and
	picks the one with least outstanding requests from them.
	Currently, N is 2. The outstanding requests are counted through the
	lifecycle callbacks.

Route example:

	{"id": "users", "uri": "lb://user-service", "predicates": ["Path=/users/**"]}
*/
package loadbalancer
