// Package appstore implements the private MZFinance App Store protocol:
// authentication, license/purchase, download resolution and catalog search.
package appstore

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/bahattinkoc/ipaverse/internal/download"
)

// CREDIT - https://github.com/majd/ipatool

const (
	urlPrefex    = "https://p25-"
	url2faPrefex = "https://p71-"

	authPath = "/WebObjects/MZFinance.woa/wa/authenticate"

	appStoreAuthURL     = "https://buy.itunes.apple.com" + authPath
	appStoreAuthP25URL  = urlPrefex + "buy.itunes.apple.com" + authPath
	appStoreAuthP71URL  = url2faPrefex + "buy.itunes.apple.com" + authPath
	appStoreSignInURL   = "https://idmsa.apple.com/appleauth/auth/signin"
	appStoreDownloadURL = urlPrefex + "buy.itunes.apple.com/WebObjects/MZFinance.woa/wa/volumeStoreDownloadProduct"
	appStorePurchaseURL = "https://buy.itunes.apple.com/WebObjects/MZFinance.woa/wa/buyProduct"
	appStoreSearchURL   = "https://itunes.apple.com/search"
	appStoreLookupURL   = "https://itunes.apple.com/lookup"

	// AppStoreSearchLimit is the maximum number of results returned by the App Store search API
	AppStoreSearchLimit = 200

	// Apple routes requests to the private API tier on this exact value.
	userAgent = "Configurator/2.17 (Macintosh; OS X 15.2; 24C5089c) AppleWebKit/0620.1.16.11.6"

	storeFrontHeader  = "X-Set-Apple-Store-Front"
	defaultStoreFront = "143441"

	ErrLoginRequires2fa               = "MZFinance.BadLogin.Configurator_message"
	MsgAccountDisabled                = "Your account is disabled."
	FailureTypeInvalidCredentials     = "-5000"
	FailureTypeUnknownError           = "5002"
	FailureTypePasswordTokenExpired   = "2034"
	FailureTypeLicenseNotFound        = "9610"
	FailureTypeTemporarilyUnavailable = "2059"

	pricingParamAppStore    = "STDQ"
	pricingParamAppleArcade = "GAME"
)

// Endpoints are the private/public API URLs the client talks to. They default
// to Apple's hosts and are only overridden by tests.
type Endpoints struct {
	Authenticate [4]string // login attempt ladder, indexed by attempt-1
	Purchase     string
	Download     string
	Search       string
	Lookup       string
}

// DefaultEndpoints returns the production Apple endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Authenticate: [4]string{
			appStoreAuthURL,
			appStoreAuthP25URL,
			appStoreAuthP71URL,
			appStoreSignInURL,
		},
		Purchase: appStorePurchaseURL,
		Download: appStoreDownloadURL,
		Search:   appStoreSearchURL,
		Lookup:   appStoreLookupURL,
	}
}

// Config holds the AppStore client settings.
type Config struct {
	Proxy    string
	Insecure bool
	Verbose  bool
	// GUID overrides the MAC derived device identifier (tests)
	GUID string
}

// AppStore is a client for Apple's private App Store distribution API.
type AppStore struct {
	Client *http.Client

	config *Config
	ep     Endpoints
}

// NewAppStore returns an AppStore instance
func NewAppStore(config *Config) *AppStore {
	jar, _ := cookiejar.New(nil)

	as := AppStore{
		Client: &http.Client{
			Jar:       jar,
			Transport: download.NewTransport(config.Proxy, config.Insecure),
			// The authenticate endpoint answers domain-prefix probes with a 302
			// that the login ladder must inspect itself; anywhere else the
			// default follow behavior is fine.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if origin := via[len(via)-1].URL; stopRedirect(origin) {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		config: config,
		ep:     DefaultEndpoints(),
	}

	return &as
}

// SetEndpoints swaps the API endpoints (tests substitute a fake transport).
func (as *AppStore) SetEndpoints(ep Endpoints) {
	as.ep = ep
}

func stopRedirect(origin *url.URL) bool {
	return strings.Contains(origin.Path, "/wa/authenticate") ||
		(strings.Contains(origin.Host, "buy.itunes.apple.com") && strings.Contains(origin.Path, "authenticate"))
}

func (as *AppStore) guid() string {
	if as.config.GUID != "" {
		return as.config.GUID
	}
	return DeviceID()
}

var sessionHost = &url.URL{Scheme: "https", Host: "p25-buy.itunes.apple.com"}

// SessionCookies returns the cookies Apple set on the private API host, so the
// caller can persist the session alongside the account.
func (as *AppStore) SessionCookies() []*http.Cookie {
	return as.Client.Jar.Cookies(sessionHost)
}

// RestoreSession primes the cookie jar from a previously stored session.
func (as *AppStore) RestoreSession(cookies []*http.Cookie) {
	as.Client.Jar.SetCookies(sessionHost, cookies)
}

// Logout drops all session state. Apple cookies live in the jar only, so a
// fresh jar is equivalent to deleting every apple.com/itunes.com cookie.
func (as *AppStore) Logout() {
	jar, _ := cookiejar.New(nil)
	as.Client.Jar = jar
}
