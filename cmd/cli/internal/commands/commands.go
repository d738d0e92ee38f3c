package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfeidau/tableside/internal/client"
	"github.com/wolfeidau/tableside/internal/models"
)

type Globals struct {
	Debug   bool
	Version string
	Client  ClientFlags
}

// ClientFlags are shared by every command that talks to the API.
type ClientFlags struct {
	Server   string        `help:"Server URL" default:"http://localhost:8080" env:"TABLESIDE_SERVER"`
	Tenant   string        `help:"Tenant id, subdomain or share slug" env:"TABLESIDE_TENANT"`
	Token    string        `help:"Access token" env:"TABLESIDE_TOKEN"`
	Timeout  time.Duration `help:"Request timeout" default:"30s"`
	CacheDir string        `help:"Directory for cached menu responses" env:"TABLESIDE_CACHE_DIR" type:"path"`
}

func (g *Globals) newClient() (*client.Client, error) {
	if g.Client.Tenant == "" {
		return nil, fmt.Errorf("a tenant is required (--tenant or TABLESIDE_TENANT)")
	}
	cfg := client.DefaultConfig()
	cfg.ServerURL = g.Client.Server
	cfg.Tenant = g.Client.Tenant
	cfg.Token = g.Client.Token
	cfg.Timeout = g.Client.Timeout
	cfg.CacheDir = g.Client.CacheDir
	return client.New(cfg), nil
}

func printOrders(orders []*models.Order) {
	if len(orders) == 0 {
		fmt.Println("No orders found.")
		return
	}

	fmt.Printf("%-36s %-14s %-10s %-16s %10s %-20s\n",
		"Order ID", "Number", "Type", "Status", "Total", "Created At")
	fmt.Println(strings.Repeat("─", 112))

	for _, o := range orders {
		fmt.Printf("%-36s %-14s %-10s %-16s %10s %-20s\n",
			o.ID,
			o.OrderNumber,
			o.Type,
			o.Status,
			o.Total,
			o.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

func printOrder(o *models.Order) {
	fmt.Printf("Order %s (%s)\n", o.OrderNumber, o.ID)
	fmt.Printf("  Status:   %s (version %d)\n", o.Status, o.Version)
	fmt.Printf("  Type:     %s\n", o.Type)
	if o.TableNumber != "" {
		fmt.Printf("  Table:    %s\n", o.TableNumber)
	}
	if o.CustomerName != "" {
		fmt.Printf("  Customer: %s\n", o.CustomerName)
	}
	fmt.Println()

	for _, item := range o.Items {
		fmt.Printf("  %3d x %-40s %10s\n", item.Quantity, truncate(item.Name, 40), item.LineTotal)
		if item.SpecialInstructions != "" {
			fmt.Printf("        note: %s\n", item.SpecialInstructions)
		}
	}
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("  %-46s %10s\n", "Subtotal", o.Subtotal)
	fmt.Printf("  %-46s %10s\n", "Tax", o.Tax)
	if o.Tip > 0 {
		fmt.Printf("  %-46s %10s\n", "Tip", o.Tip)
	}
	if o.DeliveryFee > 0 {
		fmt.Printf("  %-46s %10s\n", "Delivery", o.DeliveryFee)
	}
	fmt.Printf("  %-46s %10s\n", "Total", o.Total)

	if o.CancellationReason != "" {
		fmt.Printf("\n  Cancelled: %s\n", o.CancellationReason)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
