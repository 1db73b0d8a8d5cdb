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
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bahattinkoc/ipaverse/internal/config"
	"github.com/bahattinkoc/ipaverse/internal/db"
)

func init() {
	rootCmd.AddCommand(appsCmd)
}

// appsCmd represents the apps command
var appsCmd = &cobra.Command{
	Use:           "apps",
	Short:         "List previously downloaded apps",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		color.NoColor = viper.GetBool("no-color")

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		rdb, err := db.NewSqlite(cfg.Database.Path)
		if err != nil {
			return err
		}
		if err := rdb.Connect(); err != nil {
			return err
		}
		defer rdb.Close()

		apps, err := rdb.List()
		if err != nil {
			return err
		}
		if len(apps) == 0 {
			fmt.Println("No downloaded apps recorded")
			return nil
		}

		bold := color.New(color.Bold).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()

		for _, app := range apps {
			missing := ""
			if _, err := os.Stat(app.FilePath); err != nil {
				missing = color.RedString(" (missing)")
			}
			fmt.Printf("%s %s\n", bold(app.Name), faint("v"+app.Version))
			fmt.Printf("    %s | %s | %s\n", app.BundleID, app.Platform, humanize.Time(app.DownloadDate))
			fmt.Printf("    %s%s\n", app.FilePath, missing)
		}

		return nil
	},
}
