package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"blogarchive/pkg/fetch"
	"blogarchive/pkg/logger"
	"blogarchive/pkg/members"
	"blogarchive/pkg/sites"
)

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Manage the member roster",
}

var membersSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the member roster from the site",
	Long: `Seed scrapes the site's member page and stores the roster. When the page
cannot be reached, a built-in roster is stored instead.`,
	RunE: runMembersSeed,
}

var membersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the seeded members",
	RunE:  runMembersList,
}

func init() {
	rootCmd.AddCommand(membersCmd)
	membersCmd.AddCommand(membersSeedCmd)
	membersCmd.AddCommand(membersListCmd)
}

func runMembersSeed(cmd *cobra.Command, args []string) error {
	site, err := selectedSite()
	if err != nil {
		return err
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profile, err := sites.ProfileFor(site)
	if err != nil {
		return err
	}

	log := logger.GetLogger()
	client := fetch.NewClient(a.cfg.Scrape.PageTimeout, log)
	seeder := members.NewSeeder(client, profile, a.db, log)

	roster, err := seeder.Seed(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Seeded %d members for %s\n", len(roster), site)
	return nil
}

func runMembersList(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	roster, err := a.db.GetMembers(context.Background())
	if err != nil {
		return err
	}
	if len(roster) == 0 {
		fmt.Println("No members seeded yet. Run 'blogarchive members seed' first.")
		return nil
	}

	for _, m := range roster {
		fmt.Printf("%4d  %s\n", m.ID, m.Name)
	}
	return nil
}
