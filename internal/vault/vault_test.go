package vault

import (
	"errors"
	"net/http"
	"testing"

	"github.com/99designs/keyring"

	"github.com/bahattinkoc/ipaverse/internal/appstore"
)

func testVault() *Vault {
	return NewWithKeyring(keyring.NewArrayKeyring(nil))
}

func TestCredentialsRoundTrip(t *testing.T) {
	v := testVault()

	if _, err := v.Credentials(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Credentials() on empty vault error = %v, want ErrNoCredentials", err)
	}

	want := appstore.Credentials{Email: "jane@example.com", Password: "hunter2", RememberMe: true}
	if err := v.SaveCredentials(want); err != nil {
		t.Fatalf("SaveCredentials() error = %v", err)
	}

	got, err := v.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if *got != want {
		t.Errorf("Credentials() = %+v, want %+v", got, want)
	}
}

func TestAccountRoundTrip(t *testing.T) {
	v := testVault()

	if _, _, err := v.Account(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Account() on empty vault error = %v, want ErrNoCredentials", err)
	}

	account := appstore.Account{
		Email:               "jane@example.com",
		Name:                "Jane Doe",
		StoreFront:          "143441-1,29",
		PasswordToken:       "AbCdEfGhIjKlMnOpQrStUvWxYz0123456789+/=",
		DirectoryServicesID: "182736455463",
	}
	cookies := []*http.Cookie{
		{Name: "itspod", Value: "25"},
		{Name: "mzf_in", Value: "123456"},
	}

	if err := v.SaveAccount(account, cookies); err != nil {
		t.Fatalf("SaveAccount() error = %v", err)
	}

	got, gotCookies, err := v.Account()
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if *got != account {
		t.Errorf("Account() = %+v, want %+v", got, account)
	}
	if len(gotCookies) != 2 || gotCookies[0].Name != "itspod" || gotCookies[0].Value != "25" {
		t.Errorf("cookies = %+v", gotCookies)
	}
}

// Saving the account must not clobber the stored credentials and vice versa.
func TestSaveAccountKeepsCredentials(t *testing.T) {
	v := testVault()

	creds := appstore.Credentials{Email: "jane@example.com", Password: "hunter2"}
	if err := v.SaveCredentials(creds); err != nil {
		t.Fatal(err)
	}
	if err := v.SaveAccount(appstore.Account{Email: "jane@example.com"}, nil); err != nil {
		t.Fatal(err)
	}

	got, err := v.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if got.Password != "hunter2" {
		t.Errorf("Password = %q, want original credentials kept", got.Password)
	}

	if err := v.SaveCredentials(appstore.Credentials{Email: "jane@example.com", Password: "newpass"}); err != nil {
		t.Fatal(err)
	}
	account, _, err := v.Account()
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if account.Email != "jane@example.com" {
		t.Errorf("Account() = %+v, want account kept", account)
	}
}

func TestClearCredentials(t *testing.T) {
	v := testVault()

	if err := v.ClearCredentials(); err != nil {
		t.Fatalf("ClearCredentials() on empty vault error = %v", err)
	}

	if err := v.SaveCredentials(appstore.Credentials{Email: "jane@example.com", Password: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := v.ClearCredentials(); err != nil {
		t.Fatalf("ClearCredentials() error = %v", err)
	}

	if _, err := v.Credentials(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Credentials() after clear error = %v, want ErrNoCredentials", err)
	}
	if _, _, err := v.Account(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Account() after clear error = %v, want ErrNoCredentials", err)
	}
}
