// Package download streams files to disk with progress reporting, resume
// support and cancellation.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/apex/log"
	"github.com/pkg/errors"
	"golang.org/x/net/http/httpproxy"
)

// Progress is a point-in-time snapshot of a running transfer. Fraction is in
// [0,1]; TotalBytes is zero when the server did not announce a length.
type Progress struct {
	Fraction     float64
	BytesWritten int64
	TotalBytes   int64
}

// Download is a downloader object
type Download struct {
	URL      string
	DestName string
	Headers  map[string]string
	// Progress, when set, receives an initial zero event before the first
	// byte, best-effort monotonic events while copying, and a terminal 100%
	// event exactly once on completion.
	Progress func(Progress)

	// resume behavior for a leftover partial file
	SkipAll    bool
	ResumeAll  bool
	RestartAll bool

	size         int64
	bytesResumed int64
	resume       bool
	canResume    bool
	verbose      bool

	client *http.Client
}

// New creates a new downloader
func New(proxy string, insecure, verbose bool) *Download {
	return &Download{
		verbose: verbose,
		client: &http.Client{
			Transport: NewTransport(proxy, insecure),
		},
	}
}

// WithClient substitutes the HTTP client, e.g. an authenticated session whose
// cookies the signed URL requires.
func (d *Download) WithClient(client *http.Client) {
	d.client = client
}

// GetProxy takes either an input string or reads the environment and returns a proxy function
func GetProxy(proxy string) func(*http.Request) (*url.URL, error) {
	if len(proxy) > 0 {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			log.WithError(err).Error("bad proxy url")
		}
		log.Debugf("proxy set to: %s", proxyURL)

		return http.ProxyURL(proxyURL)
	}

	conf := httpproxy.FromEnvironment()
	if len(conf.HTTPProxy) > 0 || len(conf.HTTPSProxy) > 0 {
		log.WithFields(log.Fields{
			"http_proxy":  conf.HTTPProxy,
			"https_proxy": conf.HTTPSProxy,
			"no_proxy":    conf.NoProxy,
		}).Debugf("proxy info from environment")
	}

	return http.ProxyFromEnvironment
}

func (d *Download) getHEAD(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "HEAD", d.URL, nil)
	if err != nil {
		return errors.Wrap(err, "cannot create http request")
	}
	req.Header.Add("User-Agent", "ipaverse")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.ContentLength < 0 {
		return fmt.Errorf("content length is not set")
	}

	d.size = resp.ContentLength

	if resp.Header.Get("Accept-Ranges") == "bytes" {
		d.canResume = true
	}

	return nil
}

var errSkipped = errors.New("download skipped")

func (d *Download) chooseResume() error {
	f, err := os.Stat(d.DestName + ".download")
	if os.IsNotExist(err) {
		return nil
	}

	switch {
	case d.SkipAll:
		return errSkipped
	case d.ResumeAll:
		d.resume = true
	case d.RestartAll:
		log.Infof("Downloading %s - RESTARTED", d.DestName+".download")
	default:
		choice := ""
		prompt := &survey.Select{
			Message: fmt.Sprintf("Previous download of %s can be resumed:", d.DestName),
			Options: []string{"resume", "skip", "restart"},
		}
		survey.AskOne(prompt, &choice)

		switch choice {
		case "resume":
			d.resume = true
		case "skip":
			log.Infof("%s - SKIPPED", d.DestName+".download")
			return errSkipped
		case "restart":
			log.Infof("Downloading %s - RESTARTED", d.DestName+".download")
		}
	}

	if d.resume {
		d.bytesResumed = f.Size()
	}

	return nil
}

// progressWriter counts bytes and forwards snapshots. It never reports a full
// fraction itself; the terminal event is Do's to emit, exactly once.
type progressWriter struct {
	total   int64
	written int64
	emit    func(Progress)
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	pw.written += int64(len(p))
	if pw.emit != nil && (pw.total <= 0 || pw.written < pw.total) {
		frac := 0.0
		if pw.total > 0 {
			frac = float64(pw.written) / float64(pw.total)
		}
		pw.emit(Progress{Fraction: frac, BytesWritten: pw.written, TotalBytes: pw.total})
	}
	return len(p), nil
}

// Do downloads d.URL to d.DestName. It writes as it downloads instead of
// loading the whole file into memory, staging into a ".download" temp file
// that replaces the destination (remove then move) only on success. A
// cancelled ctx aborts the copy and leaves the destination untouched.
func (d *Download) Do(ctx context.Context) error {
	d.getHEAD(ctx)

	req, err := http.NewRequestWithContext(ctx, "GET", d.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create http GET request: %v", err)
	}
	req.Header.Add("User-Agent", "ipaverse")

	for k, v := range d.Headers {
		req.Header.Add(k, v)
	}

	if d.canResume {
		if err := d.chooseResume(); err != nil {
			if errors.Is(err, errSkipped) {
				return nil
			}
			return err
		}
		if d.resume {
			rangeHeader := fmt.Sprintf("bytes=%d-", d.bytesResumed)
			log.WithField("range", rangeHeader).Debug("Setting Header")
			req.Header.Add("Range", rangeHeader)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNRESET) && ctx.Err() == nil {
			log.Errorf("CONNECTION RESET: %v", err)
			log.Warn("trying again...")
			return d.Do(ctx)
		}
		return fmt.Errorf("failed to download file: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("server return status: %s", resp.Status)
	}

	// Apple likes to return 200 OK even when the file is not found/or is not available
	if resp.Header.Get("Content-type") == "text/html; charset=UTF-8" {
		log.Warn("Server returned a HTML page")
	}

	if d.size <= 0 && resp.ContentLength > 0 {
		d.size = resp.ContentLength
	}

	var dest *os.File
	if d.resume {
		log.WithField("file", d.DestName).Warn("Resuming a previous download")
		dest, err = os.OpenFile(d.DestName+".download", os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("cannot open %s: %v", d.DestName+".download", err)
		}
		dest.Seek(0, io.SeekEnd)
	} else {
		dest, err = os.Create(d.DestName + ".download")
		if err != nil {
			return fmt.Errorf("cannot open %s: %v", d.DestName+".download", err)
		}
	}

	pw := &progressWriter{total: d.size, written: d.bytesResumed, emit: d.Progress}
	if d.Progress != nil {
		d.Progress(Progress{Fraction: 0, BytesWritten: d.bytesResumed, TotalBytes: d.size})
	}

	_, err = io.Copy(dest, io.TeeReader(resp.Body, pw))

	dest.Sync()
	if cerr := dest.Close(); cerr != nil {
		return fmt.Errorf("failed to close %s: %v", d.DestName+".download", cerr)
	}

	if ctx.Err() != nil {
		os.Remove(d.DestName + ".download")
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("failed to copy body reader data: %v", err)
	}

	// remove-then-move so the destination is only ever absent or complete
	if err := os.Remove(d.DestName); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %v", d.DestName, err)
	}
	if err := os.Rename(d.DestName+".download", d.DestName); err != nil {
		if linkErr, ok := err.(*os.LinkError); ok {
			return fmt.Errorf("failed to rename %s to %s: link error: %v", d.DestName+".download", d.DestName, linkErr.Err)
		}
		return fmt.Errorf("failed to rename %s to %s: %v", d.DestName+".download", d.DestName, err)
	}

	if d.Progress != nil {
		total := d.size
		if total < pw.written {
			total = pw.written
		}
		d.Progress(Progress{Fraction: 1.0, BytesWritten: pw.written, TotalBytes: total})
	}

	return nil
}
