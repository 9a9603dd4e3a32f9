package scraper

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aluiziolira/go-product-scraper/config"
	"github.com/gocolly/colly/v2"
)

const (
	phaseListing = "listing"
	phaseDetail  = "detail"

	ctxKeyStatus = "status"
	ctxKeyBody   = "body"
	ctxKeySize   = "size"

	// rawLengthHeader carries the body length as read off the wire, before the
	// collector transcodes it.
	rawLengthHeader = "X-Raw-Body-Length"
)

// Page is the outcome of a fetch. Size is the byte length of the body as
// served; Body may differ from it once decoded to UTF-8. Reason explains why
// a page was unavailable.
type Page struct {
	URL        string
	StatusCode int
	Body       string
	Size       int
	Reason     string
}

// Fetcher resolves links against the base URL and downloads them.
type Fetcher struct {
	base      *url.URL
	collector *colly.Collector
	metrics   *Metrics
}

// NewFetcher builds a synchronous collector configured from cfg.
func NewFetcher(base *url.URL, cfg *config.Config, metrics *Metrics) *Fetcher {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)

	collector.MaxBodySize = 0
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(measuringTransport{next: &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}})

	collector.OnResponse(func(r *colly.Response) {
		size := len(r.Body)
		if r.Headers != nil {
			if n, err := strconv.Atoi(r.Headers.Get(rawLengthHeader)); err == nil {
				size = n
			}
		}
		r.Ctx.Put(ctxKeyStatus, r.StatusCode)
		r.Ctx.Put(ctxKeyBody, r.Body)
		r.Ctx.Put(ctxKeySize, size)
	})

	return &Fetcher{
		base:      base,
		collector: collector,
		metrics:   metrics,
	}
}

// WithTransport replaces the HTTP transport used by the collector.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(measuringTransport{next: rt})
}

// measuringTransport records the length of each response body in
// rawLengthHeader.
type measuringTransport struct {
	next http.RoundTripper
}

func (t measuringTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.next.RoundTrip(req)
	if err != nil || res.Body == nil {
		return res, err
	}
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return nil, err
	}
	res.Body = io.NopCloser(bytes.NewReader(body))
	if res.Header == nil {
		res.Header = make(http.Header)
	}
	res.Header.Set(rawLengthHeader, strconv.Itoa(len(body)))
	return res, nil
}

// Resolve turns a possibly relative reference into an absolute URL.
func (f *Fetcher) Resolve(ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", ErrInvalidReference{Ref: ref, Err: err}
	}
	return f.base.ResolveReference(parsed).String(), nil
}

// Fetch downloads ref. A non-2xx status or an empty body is reported with
// ok=false and no error; only transport faults return an error.
func (f *Fetcher) Fetch(ctx context.Context, phase, ref string) (Page, bool, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, false, err
	}

	target, err := f.Resolve(ref)
	if err != nil {
		f.metrics.IncError(errorTypeLabel(err))
		return Page{}, false, err
	}
	page := Page{URL: target}

	reqCtx := colly.NewContext()
	f.metrics.IncRequest(phase)
	start := time.Now()
	err = f.collector.Request(http.MethodGet, target, nil, reqCtx, nil)
	f.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		classified := classifyError(target, err, 0)
		f.metrics.IncError(errorTypeLabel(classified))
		return page, false, classified
	}

	page.StatusCode, _ = reqCtx.GetAny(ctxKeyStatus).(int)
	body, _ := reqCtx.GetAny(ctxKeyBody).([]byte)
	page.Size, _ = reqCtx.GetAny(ctxKeySize).(int)

	if unavailable := classifyError(target, nil, page.StatusCode); unavailable != nil {
		page.Reason = errorTypeLabel(unavailable)
		f.metrics.IncUnavailable(phase, page.Reason)
		return page, false, nil
	}
	if len(body) == 0 {
		page.Reason = errorTypeLabel(errEmptyBody)
		f.metrics.IncUnavailable(phase, page.Reason)
		return page, false, nil
	}

	page.Body = string(body)
	return page, true, nil
}
