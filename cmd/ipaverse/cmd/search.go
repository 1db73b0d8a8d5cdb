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
	"fmt"
	"strconv"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bahattinkoc/ipaverse/internal/appstore"
	"github.com/bahattinkoc/ipaverse/internal/config"
)

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntP("limit", "l", 5, "Number of results to show")
	searchCmd.Flags().StringP("platform", "p", "ios", "Store catalog to search (ios|macos)")
	searchCmd.Flags().StringP("vault-password", "k", "", "Password to unlock credential vault (only for file vaults)")
	viper.BindPFlag("search.limit", searchCmd.Flags().Lookup("limit"))
	viper.BindPFlag("search.platform", searchCmd.Flags().Lookup("platform"))
	viper.BindPFlag("search.vault-password", searchCmd.Flags().Lookup("vault-password"))
}

func platformFlag(name string) appstore.Platform {
	if viper.GetString(name) == "macos" {
		return appstore.PlatformMacOS
	}
	return appstore.PlatformIOS
}

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search the App Store catalog",
	Example: heredoc.Doc(`
		# Search the iOS store
		❯ ipaverse search twitter

		# Search the Mac App Store with more results
		❯ ipaverse search --platform macos --limit 20 pages
	`),
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		color.NoColor = viper.GetBool("no-color")

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		v, err := openVault(cfg, viper.GetString("search.vault-password"))
		if err != nil {
			return err
		}

		as := newAppStore()

		account, err := storedAccount(as, v)
		if err != nil {
			return fmt.Errorf("not signed in (run 'ipaverse auth login'): %v", err)
		}

		apps, err := as.Search(cmd.Context(), args[0], account, viper.GetInt("search.limit"), platformFlag("search.platform"))
		if err != nil {
			return err
		}

		bold := color.New(color.Bold).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()
		for _, app := range apps {
			price := "free"
			if app.Price > 0 {
				price = app.FormattedPrice
			}
			size := ""
			if bytes, err := strconv.ParseUint(app.Size, 10, 64); err == nil {
				size = humanize.Bytes(bytes)
			}
			fmt.Printf("%s %s\n    %s  %s  %s  %s\n",
				bold(app.Name), faint("v"+app.Version),
				app.BundleID, faint(strconv.FormatInt(app.ID, 10)), price, size)
		}

		return nil
	},
}
