package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "haruboard",
	Short: "Haru Board - a small members-only bulletin board",
	Long: `Haru Board serves a server-rendered bulletin board: members sign up,
log in, write posts in Markdown and edit or delete their own posts.

Configuration is read from .env and the environment (see DATABASE_URL,
SESSION_SECRET, TOKEN_SECRET and friends).`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  serve,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE:  migrate,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
