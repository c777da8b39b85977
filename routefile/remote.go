package routefile

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/gateway/routedef"
	"github.com/zalando/gateway/routing"
)

var errContentNotChanged = errors.New("content in cache did not change, 304 response status code")

type remoteFile struct {
	once       sync.Once
	preloaded  bool
	remotePath string
	localPath  string
	fileClient *WatchClient
	threshold  int
	verbose    bool
	http       *http.Client
	etag       string
}

type RemoteWatchOptions struct {
	// URL of the route file
	RemoteFile string

	// Verbose mode for the dataClient
	Verbose bool

	// Amount of route changes that will trigger logs after route updates
	Threshold int

	// It does an initial download and parsing of remote routes, and makes RemoteWatch to return an error
	FailOnStartup bool

	// HTTPTimeout is the timeout of a single download of RemoteFile.
	HTTPTimeout time.Duration
}

// RemoteWatch creates a route configuration client with (remote) file
// watching. Paths other than http and https URLs are watched as local
// files.
func RemoteWatch(o *RemoteWatchOptions) (routing.DataClient, error) {
	if !isFileRemote(o.RemoteFile) {
		return Watch(o.RemoteFile), nil
	}

	tempFile, err := os.CreateTemp("", "routes")
	if err != nil {
		return nil, err
	}

	if err := tempFile.Close(); err != nil {
		return nil, err
	}

	dataClient := &remoteFile{
		remotePath: o.RemoteFile,
		localPath:  tempFile.Name(),
		threshold:  o.Threshold,
		verbose:    o.Verbose,
		http:       &http.Client{Timeout: o.HTTPTimeout},
	}

	if o.FailOnStartup {
		if err := dataClient.DownloadRemoteFile(); err != nil {
			os.Remove(dataClient.localPath)
			return nil, err
		}

		if _, err := readFile(dataClient.localPath); err != nil {
			os.Remove(dataClient.localPath)
			return nil, err
		}

		dataClient.preloaded = true
	}

	dataClient.fileClient = Watch(dataClient.localPath)
	return dataClient, nil
}

// LoadAll returns the parsed route definitions found in the file.
func (client *remoteFile) LoadAll() ([]*routedef.Route, error) {
	var err error
	if client.preloaded {
		client.preloaded = false
	} else {
		err = client.DownloadRemoteFile()
	}

	if err != nil {
		log.Errorf("LoadAll from remote %s failed. Continue using the last loaded routes", client.remotePath)
		return nil, err
	}

	if client.verbose {
		log.Infof("New routes file %s was downloaded", client.remotePath)
	}

	return client.fileClient.LoadAll()
}

// LoadUpdate returns differential updates when a remote file has changed.
func (client *remoteFile) LoadUpdate() ([]*routedef.Route, []string, error) {
	if err := client.DownloadRemoteFile(); err != nil {
		log.Errorf("LoadUpdate from remote %s failed. Trying to LoadAll", client.remotePath)
		return nil, nil, err
	}

	newRoutes, deletedRoutes, err := client.fileClient.LoadUpdate()
	if err != nil {
		log.Errorf("LoadUpdate of %s failed, the gateway continues to serve the last successfully updated routes: %v", client.remotePath, err)
		return newRoutes, deletedRoutes, err
	}

	if client.verbose {
		log.Infof("New routes were loaded. New: %d; deleted: %d", len(newRoutes), len(deletedRoutes))

		if client.threshold > 0 && len(newRoutes)+len(deletedRoutes) > client.threshold {
			log.Warnf("Significant amount of routes was updated. New: %d; deleted: %d", len(newRoutes), len(deletedRoutes))
		}
	}

	return newRoutes, deletedRoutes, nil
}

func (client *remoteFile) Close() {
	client.once.Do(func() {
		client.http.CloseIdleConnections()
		client.fileClient.Close()
		os.Remove(client.localPath)
	})
}

func isFileRemote(remotePath string) bool {
	return strings.HasPrefix(remotePath, "http://") || strings.HasPrefix(remotePath, "https://")
}

// DownloadRemoteFile stores the remote file in the local copy, unless it
// did not change since the last download.
func (client *remoteFile) DownloadRemoteFile() error {
	resBody, err := client.getRemoteData()
	if errors.Is(err, errContentNotChanged) {
		return nil
	}

	if err != nil {
		return err
	}

	defer resBody.Close()

	outFile, err := os.OpenFile(client.localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	if _, err = io.Copy(outFile, resBody); err != nil {
		outFile.Close()
		return err
	}

	return outFile.Close()
}

func (client *remoteFile) getRemoteData() (io.ReadCloser, error) {
	req, err := http.NewRequest("GET", client.remotePath, nil)
	if err != nil {
		return nil, err
	}

	if client.etag != "" {
		req.Header.Set("If-None-Match", client.etag)
	}

	resp, err := client.http.Do(req)
	if err != nil {
		return nil, err
	}

	if client.etag != "" && resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		return nil, errContentNotChanged
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download remote file %s, status code: %d", client.remotePath, resp.StatusCode)
	}

	client.etag = resp.Header.Get("ETag")
	return resp.Body, nil
}
