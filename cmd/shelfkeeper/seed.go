package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"shelfkeeper/internal/catalog"
	"shelfkeeper/internal/config"
	"shelfkeeper/internal/membership"
)

type seedUser struct {
	reg   membership.Registration
	admin bool
}

var seedUsers = []seedUser{
	{reg: membership.Registration{Name: "Admin", Email: "admin@library.com", Password: "admin123"}, admin: true},
	{reg: membership.Registration{Name: "John Doe", Email: "user@library.com", Password: "user123"}},
}

var seedBooks = []catalog.NewBook{
	{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", Category: "Fiction", TotalCopies: 3},
	{Title: "To Kill a Mockingbird", Author: "Harper Lee", Category: "Fiction", TotalCopies: 2},
	{Title: "1984", Author: "George Orwell", Category: "Science Fiction", TotalCopies: 4},
	{Title: "Pride and Prejudice", Author: "Jane Austen", Category: "Romance", TotalCopies: 2},
	{Title: "The Catcher in the Rye", Author: "J.D. Salinger", Category: "Fiction", TotalCopies: 3},
}

// seed creates the sample accounts that do not exist yet and, when the
// catalogue is empty, the sample books.
func seed(ctx context.Context, users membership.Service, books catalog.Service, out io.Writer) error {
	for _, su := range seedUsers {
		create := users.Register
		if su.admin {
			create = users.CreateAdmin
		}
		_, err := create(ctx, su.reg)
		switch {
		case errors.Is(err, membership.ErrEmailTaken):
			fmt.Fprintf(out, "user %s already exists\n", su.reg.Email)
		case err != nil:
			return fmt.Errorf("seed user %s: %w", su.reg.Email, err)
		default:
			fmt.Fprintf(out, "created user %s\n", su.reg.Email)
		}
	}

	existing, err := books.ListBooks(ctx, catalog.Filter{})
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	if len(existing) > 0 {
		fmt.Fprintln(out, "catalogue not empty, skipping books")
		return nil
	}
	for _, nb := range seedBooks {
		if _, err := books.AddBook(ctx, nb); err != nil {
			return fmt.Errorf("seed book %q: %w", nb.Title, err)
		}
	}
	fmt.Fprintf(out, "created %d books\n", len(seedBooks))
	return nil
}

func newSeedCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create sample accounts and books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), cfg, func(ctx context.Context, a *app) error {
				if err := seed(ctx, a.membership, a.catalog, cmd.OutOrStdout()); err != nil {
					return err
				}
				a.logger.Info(ctx, "seed complete")
				return nil
			})
		},
	}
}
