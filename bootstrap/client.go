package bootstrap

import (
	"net/http"

	"github.com/urbaine/upwatch/common/utils/netutil"
	"github.com/urbaine/upwatch/config"
	"github.com/urbaine/upwatch/pkg/uploadclient"
)

// NewClient builds the upload client from the loaded client config.
func NewClient() (*uploadclient.Client, error) {
	cfg := config.C().Client
	transport, err := netutil.NewTransport(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	return uploadclient.New(cfg.Server,
		uploadclient.WithHTTPClient(&http.Client{Transport: transport}),
		uploadclient.WithRequestTimeout(cfg.RequestTimeout),
	)
}
