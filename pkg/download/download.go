// Package download fetches artifacts over plain HTTP(S).
package download

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// partialSuffix marks a download that has not completed yet, so an
// interrupted transfer is never mistaken for an existing artifact.
const partialSuffix = ".part"

// HTTPError is returned when a server answers with an unexpected status.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Client downloads files and probes URLs.
type Client struct {
	httpClient *http.Client
	fs         afero.Fs
	// progress receives download progress bars, nil disables them.
	progress io.Writer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithFs sets the filesystem downloads are written to.
func WithFs(fs afero.Fs) Option {
	return func(c *Client) {
		c.fs = fs
	}
}

// WithProgress renders a progress bar per download to w.
func WithProgress(w io.Writer) Option {
	return func(c *Client) {
		c.progress = w
	}
}

// NewClient returns a Client using the system trust store and proxy
// settings from the environment.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		fs: afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		tlsConfig, err := getTLSConfig()
		if err != nil {
			return nil, err
		}
		c.httpClient = &http.Client{Transport: createRT(tlsConfig)}
	}
	return c, nil
}

func getTLSConfig() (*tls.Config, error) {
	certPool, err := x509.SystemCertPool()
	if err != nil {
		return nil, err
	}
	return &tls.Config{RootCAs: certPool}, nil
}

func createRT(tlsConfig *tls.Config) http.RoundTripper {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       tlsConfig,
	}
}

// Probe requests url and returns the response status code.
func (c *Client) Probe(ctx context.Context, url string) (int, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Reachable reports whether url answers at all within timeout.
func (c *Client) Reachable(ctx context.Context, url string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := c.Probe(ctx, url); err != nil {
		logrus.Debugf("%s is not reachable: %v", url, err)
		return false
	}
	return true
}

// Get returns the body of url.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// ToFile streams url into dest. The file only appears under dest once the
// transfer completed.
func (c *Client) ToFile(ctx context.Context, url, dest string) (err error) {
	logrus.Infof("Downloading %s", url)
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &HTTPError{URL: url, StatusCode: resp.StatusCode}
	}

	partial := dest + partialSuffix
	f, err := c.fs.Create(partial)
	if err != nil {
		return fmt.Errorf("create %s: %w", partial, err)
	}
	defer func() {
		if err != nil {
			_ = c.fs.Remove(partial)
		}
	}()

	n, err := c.copy(ctx, f, resp, filepath.Base(dest))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := c.fs.Rename(partial, dest); err != nil {
		return fmt.Errorf("rename %s: %w", partial, err)
	}
	logrus.Infof("Saved %s to %s (%d bytes)", url, dest, n)
	return nil
}

func (c *Client) copy(ctx context.Context, w io.Writer, resp *http.Response, name string) (int64, error) {
	if c.progress == nil {
		return io.Copy(w, resp.Body)
	}

	p := mpb.NewWithContext(ctx, mpb.WithOutput(c.progress))
	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	bar := p.AddBar(total,
		mpb.PrependDecorators(decor.Name(name+" ")),
		mpb.AppendDecorators(decor.CountersKibiByte("% .1f / % .1f")),
		mpb.BarRemoveOnComplete(),
	)
	proxy := bar.ProxyReader(resp.Body)
	n, err := io.Copy(w, proxy)
	proxy.Close()
	if err != nil {
		bar.Abort(true)
	} else {
		bar.SetTotal(-1, true)
	}
	p.Wait()
	return n, err
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}
