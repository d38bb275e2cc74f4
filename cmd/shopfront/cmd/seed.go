package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mharding/shopfront/audit"
	"github.com/mharding/shopfront/crypto"
	"github.com/mharding/shopfront/shop"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with sample data",
	Long: `Creates demo accounts, categories and products for local development.

Accounts: admin@example.com / admin123 and customer@example.com / customer123.
Running seed twice is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		encodedKey := os.Getenv("SHOPFRONT_ENCRYPTION_KEY")
		if encodedKey == "" {
			return errors.New("SHOPFRONT_ENCRYPTION_KEY is not set")
		}
		cipher, err := crypto.NewFieldCipher(encodedKey)
		if err != nil {
			return fmt.Errorf("invalid SHOPFRONT_ENCRYPTION_KEY: %w", err)
		}
		defer cipher.Destroy()

		repo, cleanup, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		store := shop.NewStore(repo, crypto.NewFieldCodec(cipher), audit.NewRecorder(logger), logger)

		return seed(cmd.Context(), store)
	},
}

type seedProduct struct {
	name        string
	description string
	priceCents  int64
	stock       int
	category    string
}

var seedProducts = []seedProduct{
	{"Laptop Computer", "High-performance laptop with 16GB RAM and 512GB SSD.", 99999, 10, "Electronics"},
	{"Wireless Mouse", "Ergonomic wireless mouse with long battery life.", 2999, 50, "Electronics"},
	{"Mechanical Keyboard", "RGB mechanical keyboard with tactile switches.", 12999, 35, "Electronics"},
	{"Wireless Headphones", "Noise-cancelling over-ear headphones.", 19999, 25, "Electronics"},
	{"Smartphone", "Latest model smartphone with triple camera.", 69999, 15, "Electronics"},
	{"Tablet", "10-inch tablet ideal for media and reading.", 39999, 20, "Electronics"},
	{"Smart Watch", "Fitness tracking smart watch with heart rate monitor.", 24999, 30, "Electronics"},
	{"USB-C Cable", "Durable braided 2m USB-C charging cable.", 1299, 100, "Electronics"},
	{"Webcam HD", "1080p webcam with built-in microphone.", 4999, 40, "Electronics"},
	{"Portable Power Bank", "20000mAh power bank with fast charging.", 3499, 60, "Electronics"},
	{"Cotton T-Shirt", "Soft 100% cotton t-shirt, available in many colors.", 1999, 100, "Clothing"},
	{"Jeans", "Classic fit denim jeans.", 4999, 75, "Clothing"},
	{"Hooded Sweatshirt", "Warm fleece-lined hoodie.", 3999, 50, "Clothing"},
	{"Running Shoes", "Lightweight running shoes with cushioned sole.", 8999, 40, "Clothing"},
	{"The Go Programming Language", "The definitive guide to programming in Go.", 3999, 30, "Books"},
	{"Cooking Basics", "Step-by-step recipes for everyday cooking.", 2499, 45, "Books"},
	{"Mystery Novel", "A gripping page-turner full of twists.", 1499, 60, "Books"},
	{"Garden Tool Set", "5-piece stainless steel garden tool set.", 4499, 25, "Home & Garden"},
	{"LED Desk Lamp", "Adjustable desk lamp with three brightness levels.", 2999, 55, "Home & Garden"},
	{"Ceramic Plant Pot", "Hand-glazed ceramic pot for indoor plants.", 1899, 80, "Home & Garden"},
}

func seed(ctx context.Context, store *shop.Store) error {
	if _, err := store.FindUserByEmail("admin@example.com"); err == nil {
		fmt.Println("Database already seeded, nothing to do.")
		return nil
	}

	admin, err := store.Register(ctx, shop.RegisterInput{
		Email:     "admin@example.com",
		Username:  "admin",
		Password:  "admin123",
		FirstName: "Admin",
		LastName:  "User",
	})
	if err != nil {
		return fmt.Errorf("creating admin account: %w", err)
	}
	if err := store.SetUserRole(ctx, admin.ID, shop.RoleAdmin); err != nil {
		return err
	}

	customer, err := store.Register(ctx, shop.RegisterInput{
		Email:     "customer@example.com",
		Username:  "customer",
		Password:  "customer123",
		FirstName: "John",
		LastName:  "Doe",
		Phone:     "555-0123",
	})
	if err != nil {
		return fmt.Errorf("creating customer account: %w", err)
	}
	if _, err := store.UpdateProfile(ctx, customer.ID, shop.ProfileInput{
		Email:     customer.Email,
		Username:  customer.Username,
		FirstName: customer.FirstName,
		LastName:  customer.LastName,
		Phone:     customer.Phone,
		Address:   "123 Main St, City, State 12345",
	}); err != nil {
		return err
	}

	categories := map[string]string{
		"Electronics":   "Electronic devices and gadgets",
		"Clothing":      "Apparel and accessories",
		"Books":         "Fiction and non-fiction books",
		"Home & Garden": "Everything for your home and garden",
	}
	categoryIDs := make(map[string]string, len(categories))
	for name, description := range categories {
		cat, err := store.CreateCategory(ctx, name, description)
		if err != nil {
			return fmt.Errorf("creating category %q: %w", name, err)
		}
		categoryIDs[name] = cat.ID
	}

	for _, p := range seedProducts {
		if _, err := store.CreateProduct(ctx, shop.ProductInput{
			Name:        p.name,
			Description: p.description,
			PriceCents:  p.priceCents,
			Stock:       p.stock,
			CategoryID:  categoryIDs[p.category],
			IsActive:    true,
		}); err != nil {
			return fmt.Errorf("creating product %q: %w", p.name, err)
		}
	}

	fmt.Printf("Seeded %d categories and %d products.\n", len(categories), len(seedProducts))
	fmt.Println("Accounts: admin@example.com / admin123, customer@example.com / customer123")
	return nil
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	seedCmd.Flags().StringVar(&storageBackend, "storage", "bbolt", "Storage backend: bbolt, postgres or memory")
}
