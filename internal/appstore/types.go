package appstore

import (
	"strings"

	"github.com/bahattinkoc/ipaverse/internal/download"
)

// Progress is re-exported so callers of Download don't need to import the
// downloader package.
type Progress = download.Progress

// Platform selects which store catalog a query runs against.
type Platform string

const (
	PlatformIOS   Platform = "ios"
	PlatformMacOS Platform = "macos"
)

func (p Platform) entity() string {
	if p == PlatformMacOS {
		return "macSoftware"
	}
	return "software,iPadSoftware"
}

// Credentials are the transient inputs to one login run. AuthCode is appended
// to the password on the wire, never sent as its own field.
type Credentials struct {
	Email      string `json:"email,omitempty"`
	Password   string `json:"password,omitempty"`
	AuthCode   string `json:"auth_code,omitempty"`
	RememberMe bool   `json:"remember_me,omitempty"`
}

// wirePassword is the password as every attempt transmits it: the auth code,
// spaces stripped, concatenated onto the password.
func (c Credentials) wirePassword() string {
	return c.Password + strings.ReplaceAll(c.AuthCode, " ", "")
}

// Account is an authenticated Apple ID session. All four Apple issued fields
// are populated or Login does not return one.
type Account struct {
	Email               string `json:"email,omitempty"`
	Password            string `json:"password,omitempty"`
	Name                string `json:"name,omitempty"`
	StoreFront          string `json:"store_front,omitempty"`
	PasswordToken       string `json:"password_token,omitempty"`
	DirectoryServicesID string `json:"directory_services_id,omitempty"`
}

// ValidToken is a cheap local sanity check on the stored password token shape,
// used to decide whether a persisted session is worth trying at all.
func (a Account) ValidToken() bool {
	if len(a.PasswordToken) < 20 {
		return false
	}
	for _, r := range a.PasswordToken {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '+', r == '/', r == '=':
		default:
			return false
		}
	}
	return true
}

// QueryResults is the public iTunes search/lookup response envelope.
type QueryResults struct {
	ResultCount int  `json:"resultCount"`
	Results     Apps `json:"results"`
}

// App is a purchasable/downloadable catalog item.
type App struct {
	ID             int64    `json:"trackId,omitempty"`
	BundleID       string   `json:"bundleId,omitempty"`
	Name           string   `json:"trackName,omitempty"`
	Version        string   `json:"version,omitempty"`
	Price          float64  `json:"price,omitempty"`
	FormattedPrice string   `json:"formattedPrice,omitempty"`
	IconURL        string   `json:"artworkUrl100,omitempty"`
	SellerName     string   `json:"sellerName,omitempty"`
	Size           string   `json:"fileSizeBytes,omitempty"`
	Platform       Platform `json:"-"`
}

type Apps []App

type loginRequest struct {
	AppleID  string `plist:"appleId,omitempty"`
	Attempt  string `plist:"attempt,omitempty"`
	GuID     string `plist:"guid,omitempty"`
	Password string `plist:"password,omitempty"`
	Rmp      string `plist:"rmp,omitempty"`
	Why      string `plist:"why,omitempty"`
}

// signInRequest is the JSON body the idmsa endpoint expects on attempt 4.
type signInRequest struct {
	AccountName string   `json:"accountName"`
	Password    string   `json:"password"`
	RememberMe  bool     `json:"rememberMe"`
	TrustTokens []string `json:"trustTokens"`
}

type loginResponse struct {
	Pings           []any  `plist:"pings,omitempty"`
	FailureType     string `plist:"failureType,omitempty"`
	CustomerMessage string `plist:"customerMessage,omitempty"`
	AccountInfo     struct {
		AppleID string `plist:"appleId,omitempty"`
		Address struct {
			FirstName string `plist:"firstName,omitempty"`
			LastName  string `plist:"lastName,omitempty"`
		} `plist:"address,omitempty"`
	} `plist:"accountInfo,omitempty"`
	AltDSID       string `plist:"altDsid,omitempty"`
	PasswordToken string `plist:"passwordToken,omitempty"`
	ClearToken    string `plist:"clearToken,omitempty"`
	DsPersonID    string `plist:"dsPersonId,omitempty"`
	CreditDisplay string `plist:"creditDisplay,omitempty"`
	Status        int    `plist:"status,omitempty"`
}

type purchaseRequest struct {
	AppExtVrsID               string `plist:"appExtVrsId,omitempty"`
	HasAskedToFulfillPreorder string `plist:"hasAskedToFulfillPreorder,omitempty"`
	BuyWithoutAuthorization   string `plist:"buyWithoutAuthorization,omitempty"`
	HasDoneAgeCheck           string `plist:"hasDoneAgeCheck,omitempty"`
	GuID                      string `plist:"guid,omitempty"`
	NeedDiv                   string `plist:"needDiv,omitempty"`
	OrigPage                  string `plist:"origPage,omitempty"`
	OrigPageLocation          string `plist:"origPageLocation,omitempty"`
	Price                     string `plist:"price,omitempty"`
	PricingParameters         string `plist:"pricingParameters,omitempty"`
	ProductType               string `plist:"productType,omitempty"`
	SalableAdamID             int64  `plist:"salableAdamId,omitempty"`
}

type purchaseResponse struct {
	FailureType     string `plist:"failureType,omitempty"`
	CustomerMessage string `plist:"customerMessage,omitempty"`
	JingleDocType   string `plist:"jingleDocType,omitempty"`
	Status          int    `plist:"status,omitempty"`
}

type downloadRequest struct {
	CreditDisplay string `plist:"creditDisplay"`
	GuID          string `plist:"guid,omitempty"`
	SalableAdamID int64  `plist:"salableAdamId,omitempty"`
}

type downloadResponse struct {
	FailureType     string          `plist:"failureType,omitempty"`
	CustomerMessage string          `plist:"customerMessage,omitempty"`
	JingleDocType   string          `plist:"jingleDocType,omitempty"`
	JingleAction    string          `plist:"jingleAction,omitempty"`
	Status          int             `plist:"status,omitempty"`
	Authorized      bool            `plist:"authorized,omitempty"`
	Count           int             `plist:"download-queue-item-count,omitempty"`
	Items           []downloadItem  `plist:"songList,omitempty"`
	Metrics         downloadMetrics `plist:"metrics,omitempty"`
}

type downloadMetrics struct {
	ItemIDs  []int64 `plist:"itemIds,omitempty"`
	Currency string  `plist:"currency,omitempty"`
}

type downloadItem struct {
	ID               int64          `plist:"songId,omitempty"`
	URL              string         `plist:"URL,omitempty"`
	ArtworkURL       string         `plist:"artworkURL,omitempty"`
	HashMD5          string         `plist:"md5,omitempty"`
	UncompressedSize string         `plist:"uncompressedSize,omitempty"`
	Metadata         map[string]any `plist:"metadata,omitempty"`
}
