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
)

// Purchase acquires a zero-cost license for app. Paid apps are rejected before
// any network I/O; this client does not support buying anything. An HTTP 500
// from the store means the account already holds a license and is success.
func (as *AppStore) Purchase(ctx context.Context, app *App, account *Account) error {
	if app.Price > 0 {
		return fmt.Errorf("paid apps cannot be purchased")
	}

	guid := as.guid()

	if err := as.buy(ctx, app, account, guid, pricingParamAppStore); err != nil {
		// the store front sometimes merchandises an item under the arcade
		// category instead; one retry with the alternate pricing code
		if errors.Is(err, ErrTemporarilyUnavailable) {
			log.Debug("item temporarily unavailable, retrying with arcade pricing")
			return as.buy(ctx, app, account, guid, pricingParamAppleArcade)
		}
		return err
	}

	return nil
}

func (as *AppStore) buy(ctx context.Context, app *App, account *Account, guid, pricingParameters string) error {
	buf := new(bytes.Buffer)

	if err := plist.NewEncoderForFormat(buf, plist.XMLFormat).Encode(&purchaseRequest{
		AppExtVrsID:               "0",
		HasAskedToFulfillPreorder: "true",
		BuyWithoutAuthorization:   "true",
		HasDoneAgeCheck:           "true",
		GuID:                      guid,
		NeedDiv:                   "0",
		OrigPage:                  fmt.Sprintf("Software-%d", app.ID),
		OrigPageLocation:          "Buy",
		Price:                     "0",
		PricingParameters:         pricingParameters,
		ProductType:               "C",
		SalableAdamID:             app.ID,
	}); err != nil {
		return fmt.Errorf("failed to encode purchase request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", as.ep.Purchase, buf)
	if err != nil {
		return fmt.Errorf("failed to create http POST request: %v", err)
	}

	q := url.Values{}
	q.Add("guid", guid)
	req.URL.RawQuery = q.Encode()

	req.Header.Add("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-apple-plist")
	req.Header.Set("iCloud-DSID", account.DirectoryServicesID)
	req.Header.Set("X-Dsid", account.DirectoryServicesID)
	req.Header.Set("X-Apple-Store-Front", account.StoreFront)
	req.Header.Set("X-Token", account.PasswordToken)

	response, err := as.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	log.Debugf("POST Purchase: (%d):\n%s\n", response.StatusCode, string(body))

	if response.StatusCode == http.StatusInternalServerError {
		log.Debug("account already has a license for this app")
		return nil
	}

	var purc purchaseResponse
	if err := plist.NewDecoder(bytes.NewReader(body)).Decode(&purc); err != nil {
		return fmt.Errorf("failed to decode purchase response: %v", err)
	}

	if err := classifyFailure(purc.FailureType, purc.CustomerMessage); err != nil {
		return err
	}

	if purc.JingleDocType != "purchaseSuccess" || purc.Status != 0 {
		return fmt.Errorf("failed to purchase app %s", app.Name)
	}

	return nil
}
