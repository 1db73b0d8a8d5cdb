package appstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/blacktop/go-plist"
)

const maxLoginAttempts = 4

// Login runs the multi-attempt authentication ladder against Apple's private
// endpoints and returns an authenticated Account.
//
// Attempts 1-3 hit the buy domain (bare, p25-, p71-) with plist or form bodies,
// attempt 4 the idmsa JSON sign-in endpoint. A 404 advances to the next
// attempt; a 302 advances and carries the Location header as the next target.
// Two-factor accounts fail with ErrTwoFactorRequired until the caller
// resubmits with Credentials.AuthCode set.
func (as *AppStore) Login(ctx context.Context, creds Credentials) (*Account, error) {
	guid := as.guid()

	var redirect string

	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		req, err := as.loginRequest(ctx, creds, guid, attempt, redirect)
		if err != nil {
			return nil, err
		}

		response, err := as.Client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
		}

		body, err := io.ReadAll(response.Body)
		response.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
		}

		log.Debugf("POST Login attempt %d: (%d):\n%s\n", attempt, response.StatusCode, string(body))

		switch response.StatusCode {
		case http.StatusNotFound:
			// malformed endpoint for this domain/attempt combination
			redirect = ""
			continue
		case http.StatusFound:
			loc := response.Header.Get("Location")
			if loc == "" {
				return nil, fmt.Errorf("%w: redirected without a location", ErrNetwork)
			}
			log.Debugf("login redirected to %s", loc)
			redirect = loc
			continue
		}

		account, err := as.parseLogin(creds, body, response)
		if err != nil {
			return nil, err
		}

		log.WithField("name", account.Name).Debug("login successful")
		return account, nil
	}

	return nil, &UnknownError{Message: "too many attempts were made"}
}

// loginRequest builds the per-attempt request. The encoding varies across
// attempts on purpose, different Apple hosts expect different bodies.
func (as *AppStore) loginRequest(ctx context.Context, creds Credentials, guid string, attempt int, redirect string) (*http.Request, error) {
	target := as.ep.Authenticate[attempt-1]
	if redirect != "" {
		target = redirect
	}

	var body *bytes.Buffer
	var contentType string

	switch attempt {
	case 1, 2:
		// The declared Content-Type does not match the XML plist body. The
		// server expects exactly this mismatch; do not "fix" it.
		body = new(bytes.Buffer)
		if err := plist.NewEncoderForFormat(body, plist.XMLFormat).Encode(&loginRequest{
			AppleID:  creds.Email,
			Attempt:  strconv.Itoa(attempt),
			GuID:     guid,
			Password: creds.wirePassword(),
			Rmp:      "0",
			Why:      "signIn",
		}); err != nil {
			return nil, fmt.Errorf("failed to encode login plist: %v", err)
		}
		contentType = "application/x-www-form-urlencoded"
	case 3:
		form := url.Values{}
		form.Set("appleId", creds.Email)
		form.Set("attempt", strconv.Itoa(attempt))
		form.Set("guid", guid)
		form.Set("password", creds.wirePassword())
		form.Set("rmp", "0")
		form.Set("why", "signIn")
		body = bytes.NewBufferString(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		dat, err := json.Marshal(&signInRequest{
			AccountName: creds.Email,
			Password:    creds.wirePassword(),
			RememberMe:  creds.RememberMe,
			TrustTokens: []string{},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode sign-in JSON: %v", err)
		}
		body = bytes.NewBuffer(dat)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, "POST", target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create http POST request: %v", err)
	}

	req.Header.Add("User-Agent", userAgent)
	req.Header.Set("Content-Type", contentType)

	return req, nil
}

func (as *AppStore) parseLogin(creds Credentials, body []byte, response *http.Response) (*Account, error) {
	var login loginResponse
	if err := plist.NewDecoder(bytes.NewReader(body)).Decode(&login); err != nil {
		return nil, fmt.Errorf("%w: failed to decode login response: %v", ErrNetwork, err)
	}

	if login.FailureType == FailureTypeInvalidCredentials {
		return nil, ErrInvalidCredentials
	}

	if login.CustomerMessage == MsgAccountDisabled {
		return nil, ErrAccountLocked
	}

	// Fires whether or not a code was supplied: a bad-login sentinel with a
	// code means the code was wrong and the caller must collect a fresh one.
	if login.FailureType == "" && login.CustomerMessage == ErrLoginRequires2fa {
		return nil, ErrTwoFactorRequired
	}

	if login.FailureType != "" {
		if err := classifyFailure(login.FailureType, login.CustomerMessage); err != nil {
			return nil, err
		}
	}

	if response.StatusCode != http.StatusOK || login.PasswordToken == "" || login.DsPersonID == "" {
		return nil, fmt.Errorf("%w: login response is missing token data", ErrNetwork)
	}

	storeFront := response.Header.Get(storeFrontHeader)
	if storeFront == "" {
		storeFront = defaultStoreFront
	}

	name := strings.TrimSpace(login.AccountInfo.Address.FirstName + " " + login.AccountInfo.Address.LastName)

	return &Account{
		Email:               creds.Email,
		Password:            creds.Password,
		Name:                name,
		StoreFront:          storeFront,
		PasswordToken:       login.PasswordToken,
		DirectoryServicesID: login.DsPersonID,
	}, nil
}
