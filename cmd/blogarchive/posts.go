package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"blogarchive/pkg/models"
)

var (
	postsMemberID int
	postsLimit    int
	postsSearch   string
)

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Query the archived posts",
	RunE:  runPostsList,
	Example: `  # Latest posts across all members
  blogarchive posts --limit 10

  # One member's archive
  blogarchive posts --member 13

  # Full-text search over titles and content
  blogarchive posts --search "ライブ"`,
}

var postsShowCmd = &cobra.Command{
	Use:   "show <post-id>",
	Short: "Show one archived post",
	Args:  cobra.ExactArgs(1),
	RunE:  runPostsShow,
}

var postsDeleteCmd = &cobra.Command{
	Use:   "delete <post-id>",
	Short: "Delete an archived post and its images",
	Args:  cobra.ExactArgs(1),
	RunE:  runPostsDelete,
}

func init() {
	rootCmd.AddCommand(postsCmd)
	postsCmd.AddCommand(postsShowCmd)
	postsCmd.AddCommand(postsDeleteCmd)

	postsCmd.Flags().IntVar(&postsMemberID, "member", 0, "filter by member id")
	postsCmd.Flags().IntVar(&postsLimit, "limit", 0, "maximum posts to list (0 = all)")
	postsCmd.Flags().StringVar(&postsSearch, "search", "", "case-insensitive search over title and content")
}

func runPostsList(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	var posts []models.BlogPost
	switch {
	case postsSearch != "":
		posts, err = a.db.SearchPosts(ctx, postsSearch)
	case postsMemberID != 0:
		posts, err = a.db.GetPosts(ctx, postsMemberID, postsLimit)
	default:
		posts, err = a.db.GetAllPosts(ctx)
	}
	if err != nil {
		return err
	}

	if postsLimit > 0 && len(posts) > postsLimit {
		posts = posts[:postsLimit]
	}

	if len(posts) == 0 {
		fmt.Println("No posts found.")
		return nil
	}

	for _, p := range posts {
		fmt.Printf("%6d  %s  %-12s  %s  (%d images)\n", p.ID, p.Date, p.MemberName, p.Title, len(p.Images))
	}
	return nil
}

func runPostsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid post id %q", args[0])
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	post, err := a.db.GetPost(context.Background(), id)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("no post with id %d", id)
	}

	fmt.Printf("Title:   %s\n", post.Title)
	fmt.Printf("Member:  %s (id %d)\n", post.MemberName, post.MemberID)
	fmt.Printf("Date:    %s\n", post.Date)
	fmt.Printf("Site:    %s\n", post.Site)
	fmt.Printf("URL:     %s\n", post.URL)
	fmt.Printf("Images:  %d\n", len(post.Images))
	for _, img := range post.Images {
		status := "pending"
		if img.LocalPath != "" {
			status = a.store.Location(img.LocalPath)
		}
		fmt.Printf("  %s -> %s\n", img.ImageURL, status)
	}
	return nil
}

func runPostsDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid post id %q", args[0])
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	deleted, err := a.db.DeletePost(context.Background(), id, a.store)
	if err != nil {
		return err
	}
	if deleted == 0 {
		fmt.Printf("No post with id %d\n", id)
		return nil
	}

	fmt.Printf("Deleted post %d\n", id)
	return nil
}
