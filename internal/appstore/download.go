package appstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/apex/log"
	"github.com/blacktop/go-plist"

	"github.com/bahattinkoc/ipaverse/internal/download"
)

// EnsureLicense verifies the account holds a license for app, purchasing one
// when the store reports none.
func (as *AppStore) EnsureLicense(ctx context.Context, app *App, account *Account) error {
	if _, err := as.resolve(ctx, app, account); err != nil {
		if errors.Is(err, ErrLicenseNotFound) {
			return as.Purchase(ctx, app, account)
		}
		return err
	}
	return nil
}

// Download resolves the signed package URL for app and streams it to dest,
// reporting progress through onProgress (an initial zero event before the
// first byte, a terminal 100% event on completion, monotonic bytes in between).
// A missing license triggers exactly one purchase before the resolution is
// retried. Cancelling ctx aborts the transfer without touching dest.
func (as *AppStore) Download(ctx context.Context, app *App, account *Account, dest string, onProgress func(Progress)) error {
	item, err := as.resolve(ctx, app, account)
	if err != nil {
		if !errors.Is(err, ErrLicenseNotFound) {
			return err
		}
		log.Info("no license for app, purchasing")
		if err := as.Purchase(ctx, app, account); err != nil {
			return fmt.Errorf("failed to purchase app: %w", err)
		}
		if item, err = as.resolve(ctx, app, account); err != nil {
			return err
		}
	}

	log.WithField("url", item.URL).Debug("resolved signed package URL")

	dl := download.New(as.config.Proxy, as.config.Insecure, as.config.Verbose)
	dl.WithClient(as.Client) // signed URLs want the authenticated session
	dl.URL = item.URL
	dl.DestName = dest
	dl.Progress = onProgress
	dl.RestartAll = true // signed URLs are time limited, partials are worthless

	if err := dl.Do(ctx); err != nil {
		return fmt.Errorf("failed to download app: %w", err)
	}

	return nil
}

// resolve requests the signed download manifest for app and returns its first
// entry. A failureType in the response surfaces as a typed error, notably
// ErrLicenseNotFound and ErrTokenExpired.
func (as *AppStore) resolve(ctx context.Context, app *App, account *Account) (*downloadItem, error) {
	guid := as.guid()

	buf := new(bytes.Buffer)
	if err := plist.NewEncoderForFormat(buf, plist.XMLFormat).Encode(&downloadRequest{
		CreditDisplay: "",
		GuID:          guid,
		SalableAdamID: app.ID,
	}); err != nil {
		return nil, fmt.Errorf("failed to encode download request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", as.ep.Download, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create http POST request: %v", err)
	}

	q := url.Values{}
	q.Add("guid", guid)
	req.URL.RawQuery = q.Encode()

	req.Header.Add("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-apple-plist")
	req.Header.Set("iCloud-DSID", account.DirectoryServicesID)
	req.Header.Set("X-Dsid", account.DirectoryServicesID)

	response, err := as.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	log.Debugf("POST Download: (%d):\n%s\n", response.StatusCode, string(body))

	var dl downloadResponse
	if err := plist.NewDecoder(bytes.NewReader(body)).Decode(&dl); err != nil {
		return nil, fmt.Errorf("failed to decode download response: %v", err)
	}

	if err := classifyFailure(dl.FailureType, dl.CustomerMessage); err != nil {
		return nil, err
	}

	if len(dl.Items) == 0 {
		return nil, fmt.Errorf("no items found in download response")
	}

	return &dl.Items[0], nil
}

// PackageName is the canonical file name for a downloaded app package.
func PackageName(app *App) string {
	ext := "ipa"
	if app.Platform == PlatformMacOS {
		ext = "pkg"
	}
	return fmt.Sprintf("%s_%d.v%s.%s", app.BundleID, app.ID, app.Version, ext)
}
