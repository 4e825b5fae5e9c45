package main

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/iyulab/huntdesk/internal/releases"
)

func (a *app) releaseCache() *releases.Cache {
	primary := &releases.GitHubSource{
		APIURL: a.cfg.Releases.APIURL,
		Repo:   a.cfg.Releases.Repo,
		Token:  a.cfg.Releases.GitHubToken,
	}
	var fallback releases.Source
	if a.cfg.Releases.Fallback != "" {
		fallback = &releases.StaticSource{Location: a.cfg.Releases.Fallback}
	}
	return releases.NewCache(primary, fallback)
}

func newReleasesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "releases",
		Short: "List, check, and download appliance releases",
	}
	cmd.AddCommand(newReleasesListCmd(a), newReleasesDownloadCmd(a), newReleasesCheckCmd(a))
	return cmd
}

func newReleasesListCmd(a *app) *cobra.Command {
	var changelog bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List published releases, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := a.releaseCache().List(cmd.Context())
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No releases available.")
				return nil
			}

			table := tablewriter.NewWriter(out)
			table.Header("Version", "Date", "Size", "Latest", "SHA256")
			for _, r := range list {
				latest := ""
				if r.IsLatest {
					latest = "yes"
				} else if r.Prerelease {
					latest = "pre"
				}
				row := []string{r.Version, r.Date.Format("2006-01-02"), r.Size, latest, shortDigest(r.SHA256)}
				if err := table.Append(row); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}

			if changelog {
				for _, r := range list {
					fmt.Fprintf(out, "\n%s\n", r.Version)
					for _, item := range r.Changelog {
						fmt.Fprintf(out, "  - %s\n", item)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&changelog, "changelog", false, "print each release's changelog")
	return cmd
}

func newReleasesDownloadCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download <version|latest>",
		Short: "Download a release image and verify its SHA-256",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rel, ok := a.releaseCache().Find(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("release %s not found", args[0])
			}
			asset, ok := releases.PrimaryAsset(rel)
			if !ok || asset.BrowserDownloadURL == "" {
				return fmt.Errorf("release %s has no downloadable asset", rel.Version)
			}

			out := cmd.OutOrStdout()
			a.printer.Fprintf(out, "Downloading %s (%d bytes)\n", asset.Name, asset.Size)
			path, digest, err := releases.Download(cmd.Context(), nil, asset, dir, rel.SHA256)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Saved %s\n", path)
			fmt.Fprintf(out, "SHA256 %s\n", digest)
			if !releases.HasChecksum(rel.SHA256) {
				fmt.Fprintf(out, "Not verified: %s\n", rel.SHA256)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "destination directory")
	return cmd
}

func newReleasesCheckCmd(a *app) *cobra.Command {
	var current string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether a newer appliance release is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			latest, ok := a.releaseCache().Latest(cmd.Context())
			if !ok {
				fmt.Fprintln(out, "No releases available.")
				return nil
			}
			if !releases.IsNewer(current, latest.Version) {
				fmt.Fprintf(out, "Up to date (%s)\n", latest.Version)
				return nil
			}
			fmt.Fprintf(out, "New release: %s -> %s\n", current, latest.Version)
			fmt.Fprintf(out, "Download with: huntdesk releases download %s\n", latest.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", version, "installed appliance version")
	return cmd
}

func shortDigest(s string) string {
	if !releases.HasChecksum(s) {
		return s
	}
	return strings.ToLower(s[:12]) + "..."
}
