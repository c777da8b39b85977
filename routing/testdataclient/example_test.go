package testdataclient_test

import (
	"fmt"
	"log"
	"net/http/httptest"
	"time"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/predicates"
	"github.com/zalando/gateway/predicates/builtin"
	"github.com/zalando/gateway/routedef"
	"github.com/zalando/gateway/routing"
	"github.com/zalando/gateway/routing/testdataclient"
)

func Example() {
	path, _ := routedef.ParsePredicate("Path=/some/path")
	dataClient := testdataclient.New([]*routedef.Route{{
		Id:         "example",
		URI:        "https://www.example.org",
		Predicates: []*routedef.Spec{path},
	}})

	pr := make(predicates.Registry)
	pr.Register(builtin.NewPath())
	r := routing.New(routing.Options{
		Predicates:   pr,
		DataClients:  []routing.DataClient{dataClient},
		PollInterval: 10 * time.Millisecond,
	})
	defer r.Close()

	<-r.FirstLoad()

	ex := exchange.New(httptest.NewRecorder(), httptest.NewRequest("GET", "http://gateway/some/path", nil))
	route, err := r.Match(ex)
	if err != nil || route == nil {
		log.Fatal("failed to route request")
	}

	fmt.Println(route.URI)

	// Output:
	// https://www.example.org
}
