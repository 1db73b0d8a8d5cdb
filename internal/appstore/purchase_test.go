package appstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blacktop/go-plist"
)

const purchaseSuccessPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>jingleDocType</key>
	<string>purchaseSuccess</string>
	<key>status</key>
	<integer>0</integer>
</dict>
</plist>`

func testAccount() *Account {
	return &Account{
		Email:               "jane@example.com",
		StoreFront:          "143441-1,29",
		PasswordToken:       "AbCdEfGhIjKlMnOpQrStUvWxYz0123456789+/=",
		DirectoryServicesID: "182736455463",
	}
}

func TestPurchaseSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("guid"); got != testGUID {
			t.Errorf("guid query = %q, want %q", got, testGUID)
		}
		if got := r.Header.Get("X-Dsid"); got != "182736455463" {
			t.Errorf("X-Dsid = %q, want the account dsid", got)
		}
		if got := r.Header.Get("iCloud-DSID"); got != "182736455463" {
			t.Errorf("iCloud-DSID = %q, want the account dsid", got)
		}
		if got := r.Header.Get("X-Token"); got == "" {
			t.Error("X-Token header missing")
		}
		if got := r.Header.Get("X-Apple-Store-Front"); got != "143441-1,29" {
			t.Errorf("X-Apple-Store-Front = %q, want the account store front", got)
		}

		var pr purchaseRequest
		body, _ := io.ReadAll(r.Body)
		if err := plist.NewDecoder(bytes.NewReader(body)).Decode(&pr); err != nil {
			t.Errorf("purchase body is not a plist: %v", err)
		}
		if pr.PricingParameters != pricingParamAppStore {
			t.Errorf("pricingParameters = %q, want %q", pr.PricingParameters, pricingParamAppStore)
		}
		if pr.SalableAdamID != 42 || pr.Price != "0" || pr.ProductType != "C" {
			t.Errorf("purchase request = %+v", pr)
		}

		io.WriteString(w, purchaseSuccessPlist)
	}))
	defer server.Close()

	as := newTestStore(server)
	app := &App{ID: 42, Name: "FreeApp"}

	if err := as.Purchase(context.Background(), app, testAccount()); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
}

func TestPurchasePaidAppRejectedOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("paid app purchase must not reach the network")
	}))
	defer server.Close()

	as := newTestStore(server)
	app := &App{ID: 42, Name: "PaidApp", Price: 4.99}

	if err := as.Purchase(context.Background(), app, testAccount()); err == nil {
		t.Fatal("Purchase() of a paid app succeeded, want error")
	}
}

// An HTTP 500 from buyProduct means the account already holds a license.
func TestPurchaseAlreadyLicensed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	as := newTestStore(server)
	if err := as.Purchase(context.Background(), &App{ID: 42}, testAccount()); err != nil {
		t.Fatalf("Purchase() error = %v, want nil for already-licensed", err)
	}
}

// A 2059 on the standard pricing code is retried exactly once with the arcade
// pricing code.
func TestPurchaseArcadeRetry(t *testing.T) {
	var pricing []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var pr purchaseRequest
		body, _ := io.ReadAll(r.Body)
		plist.NewDecoder(bytes.NewReader(body)).Decode(&pr)
		pricing = append(pricing, pr.PricingParameters)

		if len(pricing) == 1 {
			io.WriteString(w, failurePlist(FailureTypeTemporarilyUnavailable, "temporarily unavailable"))
			return
		}
		io.WriteString(w, purchaseSuccessPlist)
	}))
	defer server.Close()

	as := newTestStore(server)
	if err := as.Purchase(context.Background(), &App{ID: 42}, testAccount()); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}

	want := []string{pricingParamAppStore, pricingParamAppleArcade}
	if len(pricing) != 2 || pricing[0] != want[0] || pricing[1] != want[1] {
		t.Errorf("pricing parameters = %v, want %v", pricing, want)
	}
}

func TestPurchaseArcadeRetryOnlyOnce(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		io.WriteString(w, failurePlist(FailureTypeTemporarilyUnavailable, "temporarily unavailable"))
	}))
	defer server.Close()

	as := newTestStore(server)
	err := as.Purchase(context.Background(), &App{ID: 42}, testAccount())
	if !errors.Is(err, ErrTemporarilyUnavailable) {
		t.Fatalf("Purchase() error = %v, want ErrTemporarilyUnavailable", err)
	}
	if requests != 2 {
		t.Errorf("server saw %d requests, want 2", requests)
	}
}

func TestPurchaseTokenExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, failurePlist(FailureTypePasswordTokenExpired, "expired"))
	}))
	defer server.Close()

	as := newTestStore(server)
	err := as.Purchase(context.Background(), &App{ID: 42}, testAccount())
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Purchase() error = %v, want ErrTokenExpired", err)
	}
}

func TestPurchaseUnexpectedDocType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0"><dict><key>jingleDocType</key><string>somethingElse</string></dict></plist>`)
	}))
	defer server.Close()

	as := newTestStore(server)
	if err := as.Purchase(context.Background(), &App{ID: 42}, testAccount()); err == nil {
		t.Error("Purchase() succeeded on unexpected jingleDocType, want error")
	}
}
