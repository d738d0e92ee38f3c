package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/order"
	"gopkg.in/yaml.v3"
)

type OrderCmd struct {
	Create OrderCreateCmd `cmd:"" help:"Place an order from a YAML cart file"`
	Get    OrderGetCmd    `cmd:"" help:"Show an order by id"`
	Track  OrderTrackCmd  `cmd:"" help:"Show an order by its order number"`
	List   OrderListCmd   `cmd:"" help:"List orders"`
	Status OrderStatusCmd `cmd:"" help:"Move an order to a new status"`
	Cancel OrderCancelCmd `cmd:"" help:"Cancel an order"`
}

type OrderCreateCmd struct {
	Cart           string `arg:"" help:"YAML cart file" type:"existingfile"`
	IdempotencyKey string `help:"Key that makes retries return the first order (generated when empty)"`
}

func (o *OrderCreateCmd) Run(ctx context.Context, globals *Globals) error {
	in, err := loadCart(o.Cart)
	if err != nil {
		return err
	}

	c, err := globals.newClient()
	if err != nil {
		return err
	}

	key := o.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	created, err := c.CreateOrder(ctx, in, key)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	printOrder(created)
	return nil
}

// loadCart reads an order.CreateInput from YAML. Prices are never part of
// the cart; the server prices every line from the menu.
func loadCart(path string) (order.CreateInput, error) {
	var in order.CreateInput

	data, err := os.ReadFile(path)
	if err != nil {
		return in, fmt.Errorf("failed to read cart: %w", err)
	}
	if err := yaml.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("failed to parse cart: %w", err)
	}

	in.Type = models.OrderType(strings.ToUpper(string(in.Type)))
	if in.Type == "" {
		in.Type = models.OrderTypeDineIn
	}
	if len(in.Lines) == 0 {
		return in, fmt.Errorf("cart %s has no items", path)
	}
	return in, nil
}

type OrderGetCmd struct {
	ID uuid.UUID `arg:"" help:"Order id"`
}

func (o *OrderGetCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}

	got, err := c.GetOrder(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("failed to get order: %w", err)
	}

	printOrder(got)
	return nil
}

type OrderTrackCmd struct {
	Number string `arg:"" help:"Order number, for example 261016-4kT9xQ"`
}

func (o *OrderTrackCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}

	got, err := c.TrackOrder(ctx, o.Number)
	if err != nil {
		return fmt.Errorf("failed to track order: %w", err)
	}

	printOrder(got)
	return nil
}

type OrderListCmd struct {
	Status string `help:"Status to filter by (pending, confirmed, preparing, ...)"`
	Type   string `help:"Order type to filter by (dine_in, takeaway, delivery)"`
	Skip   int    `help:"Number of orders to skip" default:"0"`
	Take   int    `help:"Number of orders to return" default:"20"`
}

func (o *OrderListCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}

	page, err := c.ListOrders(ctx, order.ListFilter{
		Status: models.OrderStatus(strings.ToUpper(o.Status)),
		Type:   models.OrderType(strings.ToUpper(o.Type)),
		Skip:   o.Skip,
		Take:   o.Take,
	})
	if err != nil {
		return fmt.Errorf("failed to list orders: %w", err)
	}

	printOrders(page.Orders)
	if len(page.Orders) > 0 {
		fmt.Printf("\nShowing %d-%d of %d\n", page.Skip+1, page.Skip+len(page.Orders), page.Total)
		if next := page.Skip + len(page.Orders); next < page.Total {
			fmt.Printf("Use --skip=%d to see the next page\n", next)
		}
	}
	return nil
}

type OrderStatusCmd struct {
	ID              uuid.UUID `arg:"" help:"Order id"`
	Status          string    `arg:"" help:"New status (confirmed, preparing, ready, delivered, completed, cancelled)"`
	Reason          string    `help:"Reason, required when cancelling"`
	ExpectedVersion int64     `help:"Fail instead of retrying when the order has moved past this version (0 disables)" default:"0"`
}

func (o *OrderStatusCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}

	in := order.AdvanceInput{
		Status: models.OrderStatus(strings.ToUpper(o.Status)),
		Reason: o.Reason,
	}
	if o.ExpectedVersion > 0 {
		in.ExpectedVersion = &o.ExpectedVersion
	}

	updated, err := c.AdvanceStatus(ctx, o.ID, in)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	printOrder(updated)
	return nil
}

type OrderCancelCmd struct {
	ID     uuid.UUID `arg:"" help:"Order id"`
	Reason string    `help:"Cancellation reason" required:""`
}

func (o *OrderCancelCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}

	cancelled, err := c.Cancel(ctx, o.ID, o.Reason)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	printOrder(cancelled)
	return nil
}
