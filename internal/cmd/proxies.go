package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/jimezsa/jobops/internal/backend"
	"github.com/jimezsa/jobops/internal/config"
	"github.com/jimezsa/jobops/internal/export"
	"github.com/jimezsa/jobops/internal/network"
)

type ProxiesCmd struct {
	Check ProxyCheckCmd `cmd:"" help:"Validate proxies against the backend or a target URL."`
}

type ProxyCheckCmd struct {
	Target  string `help:"Target URL (default: the backend's job count endpoint)."`
	Timeout int    `help:"Timeout in seconds." default:"15"`
}

type ProxyCheckResult struct {
	Proxy     string `json:"proxy"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

func (p *ProxyCheckCmd) Run(ctx *Context) error {
	proxies, err := config.LoadProxies(ctx.ProxyURLs)
	if err != nil {
		return err
	}
	if len(proxies) == 0 {
		return fmt.Errorf("no proxies configured")
	}

	target := p.Target
	if target == "" {
		target = backend.New(backend.Config{BaseURL: ctx.APIBase}).BaseURL() + backend.CountPath
	}

	results := make([]ProxyCheckResult, 0, len(proxies))
	for _, proxy := range proxies {
		results = append(results, p.check(ctx, proxy, target))
	}

	return writeProxyResults(ctx, results)
}

func (p *ProxyCheckCmd) check(ctx *Context, proxy, target string) ProxyCheckResult {
	result := ProxyCheckResult{Proxy: proxy, Status: "error"}

	rotator, err := network.NewRotator([]string{proxy}, 5*time.Minute)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	client, err := network.NewClient(network.Options{Rotator: rotator, UserAgent: "jobops/" + ctx.Version})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	reqCtx, cancel := context.WithTimeout(ctx.RunContext(), time.Duration(p.Timeout)*time.Second)
	defer cancel()
	req, err := fhttp.NewRequestWithContext(reqCtx, fhttp.MethodGet, target, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	_ = resp.Body.Close()

	result.LatencyMS = time.Since(start).Milliseconds()
	result.Status = strconv.Itoa(resp.StatusCode)
	ctx.Logger.Debug().Str("proxy", proxy).Int("status", resp.StatusCode).Int64("latency_ms", result.LatencyMS).Msg("proxy checked")
	return result
}

func writeProxyResults(ctx *Context, results []ProxyCheckResult) error {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, []string{res.Proxy, res.Status, strconv.FormatInt(res.LatencyMS, 10), res.Error})
	}
	table := export.Table{
		Header: []string{"proxy", "status", "latency_ms", "error"},
		Rows:   rows,
		JSON:   results,
	}

	format := export.FormatTable
	if ctx.JSONOutput {
		format = export.FormatJSON
	} else if ctx.PlainText {
		format = export.FormatTSV
	}
	return export.Write(ctx.Out, table, format, export.WriteOptions{ColorEnabled: ctx.UI != nil && ctx.UI.ColorEnabled})
}
