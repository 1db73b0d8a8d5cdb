package appstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/blacktop/go-plist"
)

const testGUID = "AABBCCDDEEFF"

// newTestStore points every endpoint at the given test server.
func newTestStore(server *httptest.Server) *AppStore {
	as := NewAppStore(&Config{GUID: testGUID})
	as.SetEndpoints(Endpoints{
		Authenticate: [4]string{
			server.URL + "/WebObjects/MZFinance.woa/wa/authenticate",
			server.URL + "/p25/WebObjects/MZFinance.woa/wa/authenticate",
			server.URL + "/p71/WebObjects/MZFinance.woa/wa/authenticate",
			server.URL + "/appleauth/auth/signin",
		},
		Purchase: server.URL + "/WebObjects/MZFinance.woa/wa/buyProduct",
		Download: server.URL + "/WebObjects/MZFinance.woa/wa/volumeStoreDownloadProduct",
		Search:   server.URL + "/search",
		Lookup:   server.URL + "/lookup",
	})
	return as
}

const loginSuccessPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>passwordToken</key>
	<string>AbCdEfGhIjKlMnOpQrStUvWxYz0123456789+/=</string>
	<key>dsPersonId</key>
	<string>182736455463</string>
	<key>accountInfo</key>
	<dict>
		<key>appleId</key>
		<string>jane@example.com</string>
		<key>address</key>
		<dict>
			<key>firstName</key>
			<string>Jane</string>
			<key>lastName</key>
			<string>Doe</string>
		</dict>
	</dict>
</dict>
</plist>`

func failurePlist(failureType, customerMessage string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>failureType</key>
	<string>` + failureType + `</string>
	<key>customerMessage</key>
	<string>` + customerMessage + `</string>
</dict>
</plist>`
}

func TestLoginSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("User-Agent = %q, want %q", got, userAgent)
		}
		w.Header().Set(storeFrontHeader, "143465-19,29")
		io.WriteString(w, loginSuccessPlist)
	}))
	defer server.Close()

	as := newTestStore(server)

	account, err := as.Login(context.Background(), Credentials{Email: "jane@example.com", Password: "hunter2"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if account.Email != "jane@example.com" {
		t.Errorf("Email = %q, want jane@example.com", account.Email)
	}
	if account.Password != "hunter2" {
		t.Errorf("Password = %q, want hunter2", account.Password)
	}
	if account.Name != "Jane Doe" {
		t.Errorf("Name = %q, want 'Jane Doe'", account.Name)
	}
	if account.StoreFront != "143465-19,29" {
		t.Errorf("StoreFront = %q, want 143465-19,29", account.StoreFront)
	}
	if account.DirectoryServicesID != "182736455463" {
		t.Errorf("DirectoryServicesID = %q, want 182736455463", account.DirectoryServicesID)
	}
	if !account.ValidToken() {
		t.Errorf("ValidToken() = false for token %q", account.PasswordToken)
	}
}

func TestLoginDefaultStoreFront(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, loginSuccessPlist)
	}))
	defer server.Close()

	account, err := newTestStore(server).Login(context.Background(), Credentials{Email: "jane@example.com", Password: "x"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if account.StoreFront != defaultStoreFront {
		t.Errorf("StoreFront = %q, want %q", account.StoreFront, defaultStoreFront)
	}
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"invalid credentials", failurePlist(FailureTypeInvalidCredentials, "bad password"), ErrInvalidCredentials},
		{"account locked", failurePlist("-20209", MsgAccountDisabled), ErrAccountLocked},
		{"two factor required", failurePlist("", ErrLoginRequires2fa), ErrTwoFactorRequired},
		{"token expired", failurePlist(FailureTypePasswordTokenExpired, "expired"), ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := newTestStore(server).Login(context.Background(), Credentials{Email: "jane@example.com", Password: "x"})
			if !errors.Is(err, tt.want) {
				t.Errorf("Login() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// A wrong verification code produces the same bad-login sentinel as no code
// at all; both must surface as ErrTwoFactorRequired.
func TestLoginTwoFactorWithBadCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, failurePlist("", ErrLoginRequires2fa))
	}))
	defer server.Close()

	_, err := newTestStore(server).Login(context.Background(), Credentials{
		Email:    "jane@example.com",
		Password: "hunter2",
		AuthCode: "000000",
	})
	if !errors.Is(err, ErrTwoFactorRequired) {
		t.Errorf("Login() error = %v, want ErrTwoFactorRequired", err)
	}
}

func TestLoginUnknownFailureMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, failurePlist("1234", "something odd happened"))
	}))
	defer server.Close()

	_, err := newTestStore(server).Login(context.Background(), Credentials{Email: "jane@example.com", Password: "x"})
	var unknown *UnknownError
	if !errors.As(err, &unknown) {
		t.Fatalf("Login() error = %T %v, want *UnknownError", err, err)
	}
	if unknown.Message != "something odd happened" {
		t.Errorf("Message = %q, want server customer message", unknown.Message)
	}
}

func TestLoginMissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0"><dict><key>dsPersonId</key><string>123</string></dict></plist>`)
	}))
	defer server.Close()

	_, err := newTestStore(server).Login(context.Background(), Credentials{Email: "jane@example.com", Password: "x"})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Login() error = %v, want ErrNetwork", err)
	}
}

// A 404 advances the ladder to the next attempt/endpoint.
func TestLoginAdvancesOn404(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if len(paths) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, loginSuccessPlist)
	}))
	defer server.Close()

	if _, err := newTestStore(server).Login(context.Background(), Credentials{Email: "jane@example.com", Password: "x"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if len(paths) != 2 {
		t.Fatalf("server saw %d requests, want 2", len(paths))
	}
	if paths[1] != "/p25/WebObjects/MZFinance.woa/wa/authenticate" {
		t.Errorf("second attempt hit %s, want the p25 endpoint", paths[1])
	}
}

// A 302 with a Location advances the ladder and the next attempt targets the
// redirect instead of its own endpoint.
func TestLoginFollowsRedirectManually(t *testing.T) {
	var redirected bool
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/WebObjects/MZFinance.woa/wa/authenticate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", server.URL+"/elsewhere/WebObjects/MZFinance.woa/wa/authenticate")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/elsewhere/WebObjects/MZFinance.woa/wa/authenticate", func(w http.ResponseWriter, r *http.Request) {
		redirected = true
		var lr loginRequest
		body, _ := io.ReadAll(r.Body)
		if err := plist.NewDecoder(bytes.NewReader(body)).Decode(&lr); err != nil {
			t.Errorf("redirect target body is not a plist: %v", err)
		}
		if lr.Attempt != "2" {
			t.Errorf("redirect target got attempt %q, want 2", lr.Attempt)
		}
		io.WriteString(w, loginSuccessPlist)
	})

	if _, err := newTestStore(server).Login(context.Background(), Credentials{Email: "jane@example.com", Password: "x"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !redirected {
		t.Error("redirect target was never hit")
	}
}

func TestLoginBareRedirectFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	_, err := newTestStore(server).Login(context.Background(), Credentials{Email: "jane@example.com", Password: "x"})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Login() error = %v, want ErrNetwork", err)
	}
}

func TestLoginExhaustsAttempts(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestStore(server).Login(context.Background(), Credentials{Email: "jane@example.com", Password: "x"})
	var unknown *UnknownError
	if !errors.As(err, &unknown) {
		t.Fatalf("Login() error = %T %v, want *UnknownError", err, err)
	}
	if requests != maxLoginAttempts {
		t.Errorf("server saw %d requests, want %d", requests, maxLoginAttempts)
	}
}

// Each rung of the ladder encodes the request differently; drive all four by
// answering 404 until the last and check what went over the wire.
func TestLoginAttemptEncodings(t *testing.T) {
	type recorded struct {
		contentType string
		body        []byte
	}
	var reqs []recorded

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqs = append(reqs, recorded{r.Header.Get("Content-Type"), body})
		if len(reqs) < maxLoginAttempts {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, loginSuccessPlist)
	}))
	defer server.Close()

	creds := Credentials{
		Email:      "jane@example.com",
		Password:   "hunter2",
		AuthCode:   "123 456",
		RememberMe: true,
	}
	if _, err := newTestStore(server).Login(context.Background(), creds); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if len(reqs) != maxLoginAttempts {
		t.Fatalf("server saw %d requests, want %d", len(reqs), maxLoginAttempts)
	}

	wantPassword := "hunter2123456"

	// attempts 1 and 2: XML plist body declared as a form
	for i := 0; i < 2; i++ {
		if reqs[i].contentType != "application/x-www-form-urlencoded" {
			t.Errorf("attempt %d Content-Type = %q, want application/x-www-form-urlencoded", i+1, reqs[i].contentType)
		}
		var lr loginRequest
		if err := plist.NewDecoder(bytes.NewReader(reqs[i].body)).Decode(&lr); err != nil {
			t.Fatalf("attempt %d body is not a plist: %v", i+1, err)
		}
		if lr.AppleID != creds.Email || lr.Password != wantPassword || lr.GuID != testGUID || lr.Why != "signIn" {
			t.Errorf("attempt %d plist = %+v", i+1, lr)
		}
	}

	// attempt 3: URL-encoded form
	form, err := url.ParseQuery(string(reqs[2].body))
	if err != nil {
		t.Fatalf("attempt 3 body is not a form: %v", err)
	}
	if form.Get("appleId") != creds.Email || form.Get("password") != wantPassword || form.Get("attempt") != "3" {
		t.Errorf("attempt 3 form = %v", form)
	}

	// attempt 4: JSON sign-in
	if reqs[3].contentType != "application/json" {
		t.Errorf("attempt 4 Content-Type = %q, want application/json", reqs[3].contentType)
	}
	var sr signInRequest
	if err := json.Unmarshal(reqs[3].body, &sr); err != nil {
		t.Fatalf("attempt 4 body is not JSON: %v", err)
	}
	if sr.AccountName != creds.Email || sr.Password != wantPassword || !sr.RememberMe {
		t.Errorf("attempt 4 JSON = %+v", sr)
	}
	if sr.TrustTokens == nil || len(sr.TrustTokens) != 0 {
		t.Errorf("attempt 4 trustTokens = %v, want empty array", sr.TrustTokens)
	}
}
