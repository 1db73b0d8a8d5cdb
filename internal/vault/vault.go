// Package vault stores Apple ID credentials, the authenticated account and
// the session cookies in the OS keyring (or an encrypted file vault).
package vault

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/bahattinkoc/ipaverse/internal/appstore"
)

const (
	// Name is the vault entry (and file vault name) holding the auth blob.
	Name        = "ipaverse-vault"
	AppName     = "com.bahattinkoc.ipaverse"
	ServiceName = "ipaverse-auth.service"
)

// ErrNoCredentials is returned when nothing has been stored yet.
var ErrNoCredentials = errors.New("no credentials stored")

// auth is the single JSON blob kept under Name.
type auth struct {
	Credentials appstore.Credentials `json:"credentials,omitempty"`
	Account     *appstore.Account    `json:"account,omitempty"`
	Session     session              `json:"session,omitempty"`
}

type session struct {
	Cookies []*http.Cookie `json:"cookies,omitempty"`
}

// Vault wraps a keyring with the credential-store surface the CLI needs.
type Vault struct {
	ring keyring.Keyring
}

// Open creates (or opens) the credential vault. File vaults prompt for an
// encryption password unless one is supplied.
func Open(configDir, password string) (*Vault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:                    ServiceName,
		KeychainSynchronizable:         false,
		KeychainAccessibleWhenUnlocked: true,
		KeychainTrustApplication:       true,
		FileDir:                        configDir,
		FilePasswordFunc: func(string) (string, error) {
			if len(password) == 0 {
				msg := "Enter a password to decrypt your credentials vault: " + filepath.Join(configDir, Name)
				if _, err := os.Stat(filepath.Join(configDir, Name)); errors.Is(err, os.ErrNotExist) {
					msg = "Enter a password to encrypt your credentials to vault: " + filepath.Join(configDir, Name)
				}
				prompt := &survey.Password{
					Message: msg,
				}
				if err := survey.AskOne(prompt, &password); err != nil {
					if err == terminal.InterruptErr {
						log.Warn("Exiting...")
						os.Exit(0)
					}
					return "", err
				}
			}
			return password, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %s", err)
	}

	return &Vault{ring: ring}, nil
}

// NewWithKeyring wraps an existing keyring (tests use an array keyring).
func NewWithKeyring(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

func (v *Vault) load() (*auth, error) {
	item, err := v.ring.Get(Name)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("failed to get auth from vault: %v", err)
	}

	var a auth
	if err := json.Unmarshal(item.Data, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vault auth: %v", err)
	}

	return &a, nil
}

func (v *Vault) store(a *auth) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal vault auth: %v", err)
	}

	return v.ring.Set(keyring.Item{
		Key:         Name,
		Data:        data,
		Label:       AppName,
		Description: "application password",
	})
}

// SaveCredentials stores the login credentials, keeping any existing account
// and session.
func (v *Vault) SaveCredentials(creds appstore.Credentials) error {
	a, err := v.load()
	if err != nil {
		if !errors.Is(err, ErrNoCredentials) {
			return err
		}
		a = &auth{}
	}
	a.Credentials = creds
	return v.store(a)
}

// Credentials returns the stored login credentials.
func (v *Vault) Credentials() (*appstore.Credentials, error) {
	a, err := v.load()
	if err != nil {
		return nil, err
	}
	if a.Credentials.Email == "" {
		return nil, ErrNoCredentials
	}
	return &a.Credentials, nil
}

// SaveAccount stores the authenticated account and its session cookies.
func (v *Vault) SaveAccount(account appstore.Account, cookies []*http.Cookie) error {
	a, err := v.load()
	if err != nil {
		if !errors.Is(err, ErrNoCredentials) {
			return err
		}
		a = &auth{}
	}
	a.Account = &account
	a.Session = session{Cookies: cookies}
	return v.store(a)
}

// Account returns the stored account and session cookies.
func (v *Vault) Account() (*appstore.Account, []*http.Cookie, error) {
	a, err := v.load()
	if err != nil {
		return nil, nil, err
	}
	if a.Account == nil {
		return nil, nil, ErrNoCredentials
	}
	return a.Account, a.Session.Cookies, nil
}

// ClearCredentials removes everything stored for this app.
func (v *Vault) ClearCredentials() error {
	if err := v.ring.Remove(Name); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to clear vault: %v", err)
	}
	return nil
}
