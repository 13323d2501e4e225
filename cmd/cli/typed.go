package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	u "github.com/gofrs/uuid/v5"

	"github.com/and161185/shopfloor/internal/client"
	"github.com/and161185/shopfloor/internal/protocol"
	"github.com/and161185/shopfloor/internal/validate"
)

// ------- action codes -------

// domainBase maps CLI domain names to the tens digit of their action codes.
var domainBase = map[string]int{
	"accounts": 10,
	"items":    20,
	"devices":  30,
	"work":     40,
	"orders":   50,
	"shifts":   60,
}

var opUnit = map[string]int{
	"list":   1,
	"get":    2,
	"create": 3,
	"status": 4,
	"rm":     5,
}

func actionCode(domain, op string) (int, error) {
	base, ok := domainBase[domain]
	if !ok {
		return 0, fmt.Errorf("unknown domain %q", domain)
	}
	unit, ok := opUnit[op]
	if !ok {
		return 0, fmt.Errorf("unknown operation %q", op)
	}
	if op == "status" && domain == "shifts" {
		return 0, errors.New("shifts have no status change")
	}
	return base + unit, nil
}

// ------- builders -------

var checker = validate.New()

// parseLines reads "item-uuid:qty,item-uuid:qty".
func parseLines(s string) ([]protocol.OrderLine, error) {
	var out []protocol.OrderLine
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, qty, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("line %q: want item:qty", part)
		}
		if _, err := u.FromString(id); err != nil {
			return nil, fmt.Errorf("line %q: %w", part, err)
		}
		n, err := strconv.Atoi(qty)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("line %q: bad quantity", part)
		}
		out = append(out, protocol.OrderLine{ItemID: id, Quantity: n})
	}
	if len(out) == 0 {
		return nil, errors.New("at least one order line required")
	}
	return out, nil
}

// send validates dto locally, then submits it with the stored token.
func send(ctx context.Context, cli *client.Client, domain string, dto any) int {
	if err := checker.Check(dto); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	code, err := actionCode(domain, "create")
	if err != nil {
		fail(err)
	}
	token, err := loadToken()
	if err != nil {
		fail(err)
	}
	resp, err := cli.CallWith(ctx, code, token, dto)
	if err != nil {
		fail(err)
	}
	return report(resp, os.Stdout, os.Stderr)
}

// ------- commands -------

// cmdByID runs list, get, status and rm for a domain.
func cmdByID(ctx context.Context, cli *client.Client, op string, args []string) int {
	fs := flag.NewFlagSet(op, flag.ExitOnError)
	domain := fs.String("domain", "", "entity domain")
	id := fs.String("id", "", "entity id (uuid)")
	filter := fs.String("filter", "", "list filter (true/false, OPEN/DONE)")
	_ = fs.Parse(args)

	code, err := actionCode(*domain, op)
	if err != nil {
		fail(err)
	}
	body := *filter
	if op != "list" {
		if _, err := u.FromString(*id); err != nil {
			fmt.Fprintln(os.Stderr, "need -id <uuid>")
			return 2
		}
		body = *id
	}
	token, err := loadToken()
	if err != nil {
		fail(err)
	}
	resp, err := cli.Call(ctx, code, token, body)
	if err != nil {
		fail(err)
	}
	return report(resp, os.Stdout, os.Stderr)
}

func cmdAddAccount(ctx context.Context, cli *client.Client, args []string) int {
	fs := flag.NewFlagSet("add-account", flag.ExitOnError)
	email := fs.String("email", "", "email")
	pass := fs.String("password", "", "password")
	name := fs.String("name", "", "display name")
	role := fs.String("role", "CLIENT", "CLIENT|WORKER|ADMIN")
	_ = fs.Parse(args)

	return send(ctx, cli, "accounts", protocol.Account{
		Email:    *email,
		Password: *pass,
		Name:     *name,
		Role:     strings.ToUpper(*role),
	})
}

func cmdAddItem(ctx context.Context, cli *client.Client, args []string) int {
	fs := flag.NewFlagSet("add-item", flag.ExitOnError)
	sku := fs.String("sku", "", "stock-keeping unit")
	name := fs.String("name", "", "name")
	qty := fs.Int("qty", 0, "quantity")
	loc := fs.String("location", "", "location")
	_ = fs.Parse(args)

	return send(ctx, cli, "items", protocol.InventoryItem{
		SKU:       *sku,
		Name:      *name,
		Quantity:  *qty,
		Location:  *loc,
		Available: *qty > 0,
	})
}

func cmdAddDevice(ctx context.Context, cli *client.Client, args []string) int {
	fs := flag.NewFlagSet("add-device", flag.ExitOnError)
	serial := fs.String("serial", "", "serial number")
	model := fs.String("model", "", "model")
	assign := fs.String("assign", "", "assigned worker (uuid)")
	_ = fs.Parse(args)

	return send(ctx, cli, "devices", protocol.Device{Serial: *serial, Model: *model, AssignedTo: *assign})
}

func cmdAddWork(ctx context.Context, cli *client.Client, args []string) int {
	fs := flag.NewFlagSet("add-work", flag.ExitOnError)
	title := fs.String("title", "", "title")
	desc := fs.String("desc", "", "description")
	assignee := fs.String("assignee", "", "assignee (uuid)")
	device := fs.String("device", "", "device (uuid)")
	_ = fs.Parse(args)

	return send(ctx, cli, "work", protocol.WorkItem{
		Title:       *title,
		Description: *desc,
		AssigneeID:  *assignee,
		DeviceID:    *device,
	})
}

func cmdAddOrder(ctx context.Context, cli *client.Client, args []string) int {
	fs := flag.NewFlagSet("add-order", flag.ExitOnError)
	lines := fs.String("lines", "", "item-uuid:qty,...")
	customer := fs.String("customer", "", "customer account (uuid, staff only)")
	_ = fs.Parse(args)

	ls, err := parseLines(*lines)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return send(ctx, cli, "orders", protocol.Order{CustomerID: *customer, Lines: ls})
}

func cmdAddShift(ctx context.Context, cli *client.Client, args []string) int {
	fs := flag.NewFlagSet("add-shift", flag.ExitOnError)
	worker := fs.String("worker", "", "worker account (uuid)")
	start := fs.String("start", "", "start time (RFC3339)")
	end := fs.String("end", "", "end time (RFC3339)")
	_ = fs.Parse(args)

	from, err1 := time.Parse(time.RFC3339, *start)
	to, err2 := time.Parse(time.RFC3339, *end)
	if err := errors.Join(err1, err2); err != nil {
		fmt.Fprintln(os.Stderr, "bad -start/-end:", err)
		return 2
	}
	return send(ctx, cli, "shifts", protocol.Shift{WorkerID: *worker, StartsAt: from, EndsAt: to})
}
