package cmd

import (
	"context"
	"io"
	"time"

	"github.com/jimezsa/jobops/internal/backend"
	"github.com/jimezsa/jobops/internal/config"
	"github.com/jimezsa/jobops/internal/network"
	"github.com/jimezsa/jobops/internal/ui"
	"github.com/rs/zerolog"
)

const proxyBanDuration = 10 * time.Minute

type Context struct {
	Ctx        context.Context
	Out        io.Writer
	Err        io.Writer
	UI         *ui.UI
	Config     config.Config
	ConfigDir  string
	Logger     zerolog.Logger
	Verbose    bool
	JSONOutput bool
	PlainText  bool
	Version    string
	ColorMode  ui.ColorMode

	APIBase   string
	ProxyURLs string
	Retries   int
	HistoryDB string
}

func (c *Context) RunContext() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

func (c *Context) backendClient() (*backend.Client, error) {
	proxies, err := config.LoadProxies(c.ProxyURLs)
	if err != nil {
		return nil, err
	}

	var rotator *network.Rotator
	if len(proxies) > 0 {
		rotator, err = network.NewRotator(proxies, proxyBanDuration)
		if err != nil {
			return nil, err
		}
		c.Logger.Debug().Int("proxies", len(proxies)).Msg("proxy rotation enabled")
	}

	doer, err := network.NewClient(network.Options{
		Rotator:   rotator,
		UserAgent: "jobops/" + c.Version,
	})
	if err != nil {
		return nil, err
	}

	return backend.New(backend.Config{
		BaseURL: c.APIBase,
		Doer:    doer,
		Retry:   backend.RetryPolicy{Retries: c.Retries},
		Logger:  c.Logger,
	}), nil
}
