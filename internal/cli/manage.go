package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stockroom/internal/core"
)

func newCategoryCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "List, add or delete categories",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List categories in insertion order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, opts, func(a *app) error {
					for _, name := range a.service.Categories() {
						fmt.Fprintln(cmd.OutOrStdout(), name)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "add NAME",
			Short: "Register a category",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(a *app) error {
					name, _, err := a.service.AddCategory(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					printSuccess(cmd.OutOrStdout(), "added category %s", name)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete NAME",
			Short: "Delete a category and every item filed under it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(a *app) error {
					removed, _, err := a.service.DeleteCategory(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					printSuccess(cmd.OutOrStdout(), "deleted category %s and %d item(s)", args[0], removed)
					return nil
				})
			},
		},
	)
	return cmd
}

func newProductCommand(opts *rootOptions) *cobra.Command {
	var category, sizes string
	var stock int
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a product with one item per size",
		Long: `Create a product with one item per size. Sizes the product already has are
skipped.

Examples:
  stockroom product add "Yellow Helmet" --category Helmets --sizes "S, M, L" --stock 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				out, res, err := a.service.CreateProduct(cmd.Context(), core.ProductInput{
					Category: category, Name: args[0], Sizes: sizes, InitialStock: stock,
				})
				if err != nil {
					return err
				}
				reportCreate(cmd, args[0], out, res)
				return nil
			})
		},
	}
	add.Flags().StringVar(&category, "category", "", "Category the product is filed under")
	add.Flags().StringVar(&sizes, "sizes", "", "Comma-separated sizes")
	add.Flags().IntVar(&stock, "stock", 0, "Initial stock per size")

	var variantSizes string
	var variantStock int
	variant := &cobra.Command{
		Use:   "add-variant NAME",
		Short: "Add sizes to an existing product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				out, res, err := a.service.AddVariant(cmd.Context(), core.VariantInput{
					Product: args[0], Sizes: variantSizes, InitialStock: variantStock,
				})
				if err != nil {
					return err
				}
				reportCreate(cmd, args[0], out, res)
				return nil
			})
		},
	}
	variant.Flags().StringVar(&variantSizes, "sizes", "", "Comma-separated sizes")
	variant.Flags().IntVar(&variantStock, "stock", 0, "Initial stock per size")

	remove := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete every item of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				removed, _, err := a.service.DeleteProduct(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "deleted %s and its %d variant(s)", args[0], removed)
				return nil
			})
		},
	}

	cmd := &cobra.Command{
		Use:   "product",
		Short: "Create products, add variants or delete products",
	}
	cmd.AddCommand(add, variant, remove)
	return cmd
}

func reportCreate(cmd *cobra.Command, name string, out core.CreateOutcome, res core.Result) {
	w := cmd.OutOrStdout()
	if len(out.Created) == 0 {
		printWarning(w, "No new items added: %s already has %s", name, strings.Join(out.Skipped, ", "))
		return
	}
	printSuccess(w, "added %d item(s) for %s", len(out.Created), name)
	if len(out.Skipped) > 0 {
		printWarning(w, "skipped existing sizes: %s", strings.Join(out.Skipped, ", "))
	}
	printWarnings(w, res)
}

func newStockCommand(opts *rootOptions) *cobra.Command {
	adjust := func(use, short string, delta int) *cobra.Command {
		return &cobra.Command{
			Use:   use + " ID",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseItemID(args[0])
				if err != nil {
					return err
				}
				return withApp(cmd, opts, func(a *app) error {
					out, _, err := a.service.AdjustStock(cmd.Context(), id, delta)
					if err != nil {
						return err
					}
					if !out.Changed {
						printWarning(cmd.OutOrStdout(), "%s (%s) is already out of stock", out.Item.Name, out.Item.Size)
						return nil
					}
					printSuccess(cmd.OutOrStdout(), "%s (%s) stock is now %d", out.Item.Name, out.Item.Size, out.Item.Stock)
					return nil
				})
			},
		}
	}
	remove := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a single item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				item, _, err := a.service.DeleteVariant(cmd.Context(), id)
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "deleted %s (%s)", item.Name, item.Size)
				return nil
			})
		},
	}
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Adjust or delete individual items",
	}
	cmd.AddCommand(
		adjust("in", "Add one unit to an item", 1),
		adjust("out", "Remove one unit from an item (never below zero)", -1),
		remove,
	)
	return cmd
}

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, core.ValidationError{Field: "id", Message: "must be an integer"}
	}
	return id, nil
}
