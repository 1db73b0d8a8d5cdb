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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/bahattinkoc/ipaverse/internal/appstore"
	"github.com/bahattinkoc/ipaverse/internal/config"
	"github.com/bahattinkoc/ipaverse/internal/db"
	"github.com/bahattinkoc/ipaverse/internal/model"
)

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringP("output", "o", "", "Folder to download files to")
	downloadCmd.MarkFlagDirname("output")
	downloadCmd.Flags().StringP("platform", "p", "ios", "Store catalog to download from (ios|macos)")
	downloadCmd.Flags().StringP("vault-password", "k", "", "Password to unlock credential vault (only for file vaults)")
	viper.BindPFlag("download.output", downloadCmd.Flags().Lookup("output"))
	viper.BindPFlag("download.platform", downloadCmd.Flags().Lookup("platform"))
	viper.BindPFlag("download.vault-password", downloadCmd.Flags().Lookup("vault-password"))
}

// progressBar renders the core's progress stream as an mpb bar.
func progressBar() (func(appstore.Progress), func()) {
	var p *mpb.Progress
	var bar *mpb.Bar

	update := func(prog appstore.Progress) {
		if bar == nil && prog.TotalBytes > 0 {
			p = mpb.New(
				mpb.WithWidth(60),
				mpb.WithRefreshRate(180*time.Millisecond),
			)
			bar = p.New(prog.TotalBytes,
				mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("|"),
				mpb.PrependDecorators(
					decor.CountersKibiByte("\t% .2f / % .2f"),
				),
				mpb.AppendDecorators(
					decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "✅ "),
					decor.Name(" ] "),
					decor.AverageSpeed(decor.SizeB1024(0), "% .2f", decor.WCSyncWidth),
				),
			)
		}
		if bar != nil {
			bar.SetCurrent(prog.BytesWritten)
		}
	}

	wait := func() {
		if p != nil {
			p.Wait()
		}
	}

	return update, wait
}

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:     "download <bundle-id>",
	Aliases: []string{"dl"},
	Short:   "Download an App Store package",
	Example: heredoc.Doc(`
		# Download an app by bundle ID
		❯ ipaverse download com.zhiliaoapp.musically

		# Download a Mac app to a specific directory
		❯ ipaverse download --platform macos --output ./apps com.apple.iwork.pages
	`),
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// ctrl-c cancels the transfer without clobbering the destination
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		v, err := openVault(cfg, viper.GetString("download.vault-password"))
		if err != nil {
			return err
		}

		as := newAppStore()

		account, err := storedAccount(as, v)
		if err != nil {
			return fmt.Errorf("not signed in (run 'ipaverse auth login'): %v", err)
		}

		app, err := as.Lookup(ctx, args[0], account, platformFlag("download.platform"))
		if err != nil {
			return err
		}

		output := viper.GetString("download.output")
		if output == "" {
			output = "."
		}
		dest := filepath.Join(output, appstore.PackageName(app))

		update, wait := progressBar()

		log.WithFields(log.Fields{
			"app":  app.Name,
			"file": dest,
		}).Info("Downloading")

		err = as.Download(ctx, app, account, dest, update)
		wait()
		if err != nil {
			if errors.Is(err, appstore.ErrTokenExpired) {
				// session died under us; one fresh sign-in, then retry
				log.Warn("session expired, signing in again")
				creds, cerr := v.Credentials()
				if cerr != nil {
					return err
				}
				account, cerr = signIn(ctx, as, *creds)
				if cerr != nil {
					return cerr
				}
				if cerr := v.SaveAccount(*account, as.SessionCookies()); cerr != nil {
					return cerr
				}
				update, wait = progressBar()
				err = as.Download(ctx, app, account, dest, update)
				wait()
			}
			if err != nil {
				return err
			}
		}

		log.Infof("Created %s", dest)

		rdb, err := db.NewSqlite(cfg.Database.Path)
		if err != nil {
			return err
		}
		if err := rdb.Connect(); err != nil {
			return err
		}
		defer rdb.Close()

		return rdb.InsertOrUpdate(&model.DownloadedApp{
			AppID:        app.ID,
			BundleID:     app.BundleID,
			Name:         app.Name,
			Version:      app.Version,
			Platform:     string(app.Platform),
			FilePath:     dest,
			DownloadDate: time.Now(),
		})
	},
}
