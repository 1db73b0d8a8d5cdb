/*
Copyright © 2025 bahattinkoc

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bahattinkoc/ipaverse/internal/appstore"
	"github.com/bahattinkoc/ipaverse/internal/config"
	"github.com/bahattinkoc/ipaverse/internal/vault"
)

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authWhoamiCmd)

	authLoginCmd.Flags().String("username", "", "Apple ID to sign in with")
	authLoginCmd.Flags().String("password", "", "Password for the Apple ID")
	authLoginCmd.Flags().String("auth-code", "", "Two-factor authentication code")
	authLoginCmd.Flags().StringP("vault-password", "k", "", "Password to unlock credential vault (only for file vaults)")
	viper.BindPFlag("auth.login.username", authLoginCmd.Flags().Lookup("username"))
	viper.BindPFlag("auth.login.password", authLoginCmd.Flags().Lookup("password"))
	viper.BindPFlag("auth.login.auth-code", authLoginCmd.Flags().Lookup("auth-code"))
	viper.BindPFlag("auth.login.vault-password", authLoginCmd.Flags().Lookup("vault-password"))
}

// newAppStore builds the protocol client from the resolved configuration.
func newAppStore() *appstore.AppStore {
	return appstore.NewAppStore(&appstore.Config{
		Proxy:    viper.GetString("proxy"),
		Insecure: viper.GetBool("insecure"),
		Verbose:  viper.GetBool("verbose"),
	})
}

func openVault(cfg *config.Config, password string) (*vault.Vault, error) {
	return vault.Open(cfg.ConfigDir, password)
}

// storedAccount loads the persisted account if its token still looks usable,
// priming the client's session cookies.
func storedAccount(as *appstore.AppStore, v *vault.Vault) (*appstore.Account, error) {
	account, cookies, err := v.Account()
	if err != nil {
		return nil, err
	}
	if !account.ValidToken() {
		return nil, fmt.Errorf("stored session token is unusable")
	}
	as.RestoreSession(cookies)
	return account, nil
}

func askCredentials(username, password string) (appstore.Credentials, error) {
	if username == "" {
		prompt := &survey.Input{
			Message: "Please type your username:",
		}
		if err := survey.AskOne(prompt, &username); err != nil {
			if err == terminal.InterruptErr {
				log.Warn("Exiting...")
				os.Exit(0)
			}
			return appstore.Credentials{}, err
		}
	}
	if password == "" {
		prompt := &survey.Password{
			Message: "Please type your password:",
		}
		if err := survey.AskOne(prompt, &password); err != nil {
			if err == terminal.InterruptErr {
				log.Warn("Exiting...")
				os.Exit(0)
			}
			return appstore.Credentials{}, err
		}
	}
	return appstore.Credentials{Email: username, Password: password, RememberMe: true}, nil
}

// signIn runs the login ladder, collecting a 2FA code interactively when the
// account requires one and none was supplied.
func signIn(ctx context.Context, as *appstore.AppStore, creds appstore.Credentials) (*appstore.Account, error) {
	account, err := as.Login(ctx, creds)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, appstore.ErrTwoFactorRequired) {
		return nil, err
	}

	if creds.AuthCode == "" {
		prompt := &survey.Password{
			Message: "Please type your verification code:",
		}
		if err := survey.AskOne(prompt, &creds.AuthCode); err != nil {
			if err == terminal.InterruptErr {
				log.Warn("Exiting...")
				os.Exit(0)
			}
			return nil, err
		}
	}

	return as.Login(ctx, creds)
}

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Apple ID session",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with an Apple ID",
	Example: heredoc.Doc(`
		# Sign in interactively
		❯ ipaverse auth login

		# Sign in with a two-factor code
		❯ ipaverse auth login --username me@icloud.com --auth-code 123456
	`),
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		v, err := openVault(cfg, viper.GetString("auth.login.vault-password"))
		if err != nil {
			return err
		}

		as := newAppStore()

		// a stored session may still be good, skip the ladder entirely
		if account, err := storedAccount(as, v); err == nil {
			log.Infof("Already signed in as %s (%s)", account.Name, account.Email)
			return nil
		}

		username := viper.GetString("auth.login.username")
		password := viper.GetString("auth.login.password")

		creds, err := v.Credentials()
		if err != nil || username != "" {
			asked, err := askCredentials(username, password)
			if err != nil {
				return err
			}
			creds = &asked
			if err := v.SaveCredentials(*creds); err != nil {
				return fmt.Errorf("failed to save credentials: %v", err)
			}
		}
		creds.AuthCode = viper.GetString("auth.login.auth-code")

		account, err := signIn(cmd.Context(), as, *creds)
		if err != nil {
			return err
		}

		if err := v.SaveAccount(*account, as.SessionCookies()); err != nil {
			return fmt.Errorf("failed to save account: %v", err)
		}

		log.Infof("Signed in as %s (%s)", account.Name, account.Email)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:           "logout",
	Short:         "Sign out and clear stored credentials",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		v, err := openVault(cfg, viper.GetString("auth.login.vault-password"))
		if err != nil {
			return err
		}

		newAppStore().Logout()

		if err := v.ClearCredentials(); err != nil {
			return err
		}

		log.Info("Signed out, credentials cleared")
		return nil
	},
}

var authWhoamiCmd = &cobra.Command{
	Use:           "whoami",
	Short:         "Show the stored account",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		v, err := openVault(cfg, viper.GetString("auth.login.vault-password"))
		if err != nil {
			return err
		}

		account, _, err := v.Account()
		if err != nil {
			return fmt.Errorf("not signed in: %v", err)
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s %s\n%s %s\n%s %s (%s)\n",
			bold("Name:      "), account.Name,
			bold("Apple ID:  "), account.Email,
			bold("StoreFront:"), account.StoreFront, appstore.CountryFromStoreFront(account.StoreFront),
		)
		return nil
	},
}
