package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfeidau/tableside/internal/models"
)

type MenuCmd struct {
	Unavailable bool `help:"Include items that are out of stock today"`
}

func (m *MenuCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}

	categories, err := c.FullMenu(ctx)
	if err != nil {
		return fmt.Errorf("failed to load menu: %w", err)
	}

	if len(categories) == 0 {
		fmt.Println("The menu is empty.")
		return nil
	}

	for _, cat := range categories {
		fmt.Printf("%s\n%s\n", cat.Name, strings.Repeat("─", 60))
		for _, item := range cat.Items {
			if !item.Available && !m.Unavailable {
				continue
			}
			printMenuItem(item)
		}
		fmt.Println()
	}
	return nil
}

func printMenuItem(item models.MenuItem) {
	name := truncate(item.Name, 40)
	if !item.Available {
		name += " (sold out)"
	}
	fmt.Printf("  %-48s %10s\n", name, item.BasePrice)
	fmt.Printf("    id: %s\n", item.ID)
	for _, v := range item.Variants {
		fmt.Printf("    variant %-36s %10s  %s\n", truncate(v.Name, 36), v.PriceModifier, v.ID)
	}
	for _, mod := range item.Modifiers {
		fmt.Printf("    modifier %-35s %10s  %s\n", truncate(mod.Name, 35), mod.Price, mod.ID)
	}
}
