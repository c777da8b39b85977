package routefile

import (
	"fmt"
	"os"

	"github.com/zalando/gateway/routedef"
)

// DataClient serves the routes of a file read once.
type DataClient struct {
	routes []*routedef.Route
}

func readFile(path string) ([]*routedef.Route, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	routes, err := routedef.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return routes, nil
}

// Open reads the routes of a file.
func Open(path string) (*DataClient, error) {
	routes, err := readFile(path)
	if err != nil {
		return nil, err
	}

	return &DataClient{routes: routes}, nil
}

// LoadAll returns the routes of the file.
func (dc *DataClient) LoadAll() ([]*routedef.Route, error) {
	return dc.routes, nil
}

// LoadUpdate returns no changes.
func (dc *DataClient) LoadUpdate() ([]*routedef.Route, []string, error) {
	return nil, nil, nil
}
