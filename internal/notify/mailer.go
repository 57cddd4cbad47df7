package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/qbcart/internal/config"
	"github.com/flicky/qbcart/internal/metrics"
	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/repository"
)

const (
	subjectOrderPlaced  = "order placed"
	subjectOrdersReport = "orders report"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type orderRow struct {
	Buyer    string
	Product  string
	Quantity int
	Price    string
	Placed   string
}

// Mailer executes notification tasks. Each recipient is attempted on its own;
// one failing address never stops the others.
type Mailer struct {
	store   repository.Store
	sender  Sender
	admins  []string
	retries int
	backoff time.Duration
	window  time.Duration
	log     *slog.Logger
	now     func() time.Time
}

func NewMailer(store repository.Store, sender Sender, mailCfg config.MailConfig, reportCfg config.ReportConfig, log *slog.Logger) *Mailer {
	retries := mailCfg.Retries
	if retries < 1 {
		retries = 1
	}
	return &Mailer{
		store:   store,
		sender:  sender,
		admins:  mailCfg.Admins,
		retries: retries,
		backoff: time.Second,
		window:  reportCfg.Window,
		log:     log,
		now:     time.Now,
	}
}

// Handle runs one task. Only failures to read state are returned; delivery
// failures are logged and counted.
func (m *Mailer) Handle(ctx context.Context, task model.TaskMessage) error {
	switch task.Kind {
	case model.TaskSendConfirmation:
		return m.SendConfirmation(ctx, task.UserID, task.OrderIDs)
	case model.TaskSendHourlyReport:
		return m.SendHourlyReport(ctx)
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidTask, task.Kind)
	}
}

func (m *Mailer) SendConfirmation(ctx context.Context, userID uuid.UUID, orderIDs []uuid.UUID) error {
	log := m.log.With("user_id", userID, "orders", len(orderIDs))

	buyer, err := m.store.Users().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load buyer: %w", err)
	}
	if buyer == nil {
		log.Warn("confirmation for unknown user, skipping")
		return nil
	}
	if len(orderIDs) == 0 {
		log.Warn("confirmation without orders, skipping")
		return nil
	}
	orders, err := m.store.Orders().ListByIDs(ctx, orderIDs)
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}
	if len(orders) == 0 {
		log.Warn("confirmed orders no longer exist, skipping")
		return nil
	}

	rows := make([]orderRow, 0, len(orders))
	bySeller := map[uuid.UUID][]orderRow{}
	var sellers []uuid.UUID
	total := decimal.Zero
	for _, o := range orders {
		product, err := m.store.Products().GetByID(ctx, o.ProductID)
		if err != nil {
			return fmt.Errorf("load product: %w", err)
		}
		row := m.row(o, buyer.Username, product)
		rows = append(rows, row)
		total = total.Add(o.Price)
		if product == nil {
			continue
		}
		if _, seen := bySeller[product.OwnerID]; !seen {
			sellers = append(sellers, product.OwnerID)
		}
		bySeller[product.OwnerID] = append(bySeller[product.OwnerID], row)
	}

	if buyer.Email != "" {
		m.deliver(ctx, "buyer", []string{buyer.Email}, subjectOrderPlaced, "confirmation_buyer.html", map[string]any{
			"Username": buyer.Username, "Orders": rows, "Total": total.StringFixed(2),
		})
	}
	if len(m.admins) > 0 {
		m.deliver(ctx, "admin", m.admins, subjectOrderPlaced, "confirmation_admin.html", map[string]any{
			"Username": buyer.Username, "Orders": rows,
		})
	}
	for _, sellerID := range sellers {
		seller, err := m.store.Users().GetByID(ctx, sellerID)
		if err != nil {
			return fmt.Errorf("load seller: %w", err)
		}
		if seller == nil || seller.Email == "" {
			log.Warn("seller has no address, skipping", "seller_id", sellerID)
			continue
		}
		m.deliver(ctx, "seller", []string{seller.Email}, subjectOrderPlaced, "confirmation_seller.html", map[string]any{
			"Username": buyer.Username, "Seller": seller.Username, "Orders": bySeller[sellerID],
		})
	}
	return nil
}

// SendHourlyReport mails the admins every order placed within the last window.
func (m *Mailer) SendHourlyReport(ctx context.Context) error {
	end := m.now()
	start := end.Add(-m.window)

	orders, err := m.store.Orders().ListPlacedBetween(ctx, start, end)
	if err != nil {
		return fmt.Errorf("load placed orders: %w", err)
	}

	rows := make([]orderRow, 0, len(orders))
	buyers := map[uuid.UUID]string{}
	for _, o := range orders {
		name, ok := buyers[o.UserID]
		if !ok {
			u, err := m.store.Users().GetByID(ctx, o.UserID)
			if err != nil {
				return fmt.Errorf("load buyer: %w", err)
			}
			if u != nil {
				name = u.Username
			}
			buyers[o.UserID] = name
		}
		product, err := m.store.Products().GetByID(ctx, o.ProductID)
		if err != nil {
			return fmt.Errorf("load product: %w", err)
		}
		rows = append(rows, m.row(o, name, product))
	}

	m.log.Info("sending hourly report", "start", start, "end", end, "orders", len(rows))
	if len(m.admins) == 0 {
		return nil
	}
	m.deliver(ctx, "report", m.admins, subjectOrdersReport, "hourly_report.html", map[string]any{
		"Start": start.Format(time.DateTime), "End": end.Format(time.DateTime), "Orders": rows,
	})
	return nil
}

func (m *Mailer) row(o model.Order, buyer string, product *model.Product) orderRow {
	row := orderRow{Buyer: buyer, Quantity: o.Quantity, Price: o.Price.StringFixed(2), Product: "(deleted)"}
	if product != nil {
		row.Product = product.Name
	}
	if o.PlacedAt != nil {
		row.Placed = o.PlacedAt.Format(time.DateTime)
	}
	return row
}

func (m *Mailer) deliver(ctx context.Context, kind string, to []string, subject, tmpl string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		m.log.Error("render mail", "template", tmpl, "error", err)
		metrics.RecordNotification(kind, false)
		return
	}
	msg := Message{To: to, Subject: subject, HTML: buf.String()}

	var lastErr error
	for attempt := 1; attempt <= m.retries; attempt++ {
		if lastErr = m.sender.Send(ctx, msg); lastErr == nil {
			metrics.RecordNotification(kind, true)
			return
		}
		if attempt < m.retries {
			backoff := time.Duration(attempt) * m.backoff
			m.log.Warn("retrying mail", "kind", kind, "attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = m.retries
			}
		}
	}
	metrics.RecordNotification(kind, false)
	m.log.Error("mail failed", "kind", kind, "to", to, "attempts", m.retries, "error", lastErr)
}
