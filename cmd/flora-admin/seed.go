package main

import (
	"context"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/chezflora/internal/app"
	"github.com/xenking/chezflora/internal/domain/catalog"
	"github.com/xenking/chezflora/internal/domain/user"
)

var (
	seedAdminEmail    string
	seedAdminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the admin account and the default category tree",
	Long: `Create the first admin account and the default category tree.

Existing rows are left untouched, so seed can be re-run safely. The admin
password is taken from --admin-password or FLORA_SEED_ADMIN_PASSWORD.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@chezflora.com", "Admin account email")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "", "Admin account password")
	rootCmd.AddCommand(seedCmd)
}

type seedCategory struct {
	Name        string
	Description string
	Children    []string
}

var defaultCategories = []seedCategory{
	{Name: "Bouquets", Description: "Fresh flower bouquets for all occasions", Children: []string{"Roses", "Seasonal", "Wedding"}},
	{Name: "Plants", Description: "Indoor and outdoor plants", Children: []string{"Indoor Plants", "Outdoor Plants"}},
	{Name: "Floral Decoration", Description: "Decoration for events and special occasions"},
	{Name: "Accessories", Description: "Vases, pots, and gardening tools", Children: []string{"Vases", "Gardening Tools"}},
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if seedAdminPassword == "" {
		seedAdminPassword = os.Getenv("FLORA_SEED_ADMIN_PASSWORD")
	}
	if len(seedAdminPassword) < 6 {
		return errors.New("admin password of at least 6 characters is required: set --admin-password or FLORA_SEED_ADMIN_PASSWORD")
	}

	repos, pool, err := openRepositories(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := seedAdmin(ctx, repos.Users, seedAdminEmail, seedAdminPassword, cfg.Auth.BcryptCost); err != nil {
		return err
	}
	if err := seedCategories(ctx, app.NewCatalog(repos, nil), repos.Categories); err != nil {
		return err
	}
	lg.Info("Seed completed")
	return nil
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	Create(ctx context.Context, u *user.User) error
}

func seedAdmin(ctx context.Context, users userStore, email, password string, cost int) error {
	_, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		lg.Info("Admin already exists", zap.String("email", email))
		return nil
	case !errors.Is(err, user.ErrNotFound):
		return errors.Wrap(err, "find admin")
	}

	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	admin := &user.User{
		FirstName:    "Admin",
		LastName:     "User",
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		Role:         user.RoleAdmin,
		Status:       user.StatusActive,
	}
	if err := users.Create(ctx, admin); err != nil {
		return errors.Wrap(err, "create admin")
	}
	lg.Info("Admin created", zap.String("email", admin.Email), zap.String("id", admin.ID))
	return nil
}

type categoryCreator interface {
	CreateCategory(ctx context.Context, in catalog.CategoryInput) (*catalog.Category, error)
}

type categoryLister interface {
	ListActive(ctx context.Context) ([]catalog.Category, error)
}

func seedCategories(ctx context.Context, svc categoryCreator, categories categoryLister) error {
	existing, err := categories.ListActive(ctx)
	if err != nil {
		return errors.Wrap(err, "list categories")
	}
	ids := make(map[string]string, len(existing))
	for _, c := range existing {
		ids[c.Name] = c.ID
	}

	ensure := func(name, description, parentID string, order int) (string, error) {
		if id, ok := ids[name]; ok {
			return id, nil
		}
		in := catalog.CategoryInput{Name: &name, SortOrder: &order}
		if description != "" {
			in.Description = &description
		}
		if parentID != "" {
			in.ParentID = &parentID
		}
		c, err := svc.CreateCategory(ctx, in)
		if err != nil {
			return "", errors.Wrapf(err, "create category %q", name)
		}
		ids[name] = c.ID
		lg.Info("Category created", zap.String("name", name))
		return c.ID, nil
	}

	for i, root := range defaultCategories {
		parentID, err := ensure(root.Name, root.Description, "", i+1)
		if err != nil {
			return err
		}
		for j, child := range root.Children {
			if _, err := ensure(child, "", parentID, j+1); err != nil {
				return err
			}
		}
	}
	return nil
}
