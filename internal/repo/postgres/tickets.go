package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/swiftloan/api/internal/domain/ticket"
	"github.com/swiftloan/api/internal/domain/user"
	"github.com/swiftloan/api/internal/observability"
)

type TicketsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTicketsRepo(pool *pgxpool.Pool, prom *observability.Prom) *TicketsRepo {
	return &TicketsRepo{pool: pool, prom: prom}
}

func (r *TicketsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *TicketsRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *TicketsRepo) Create(ctx context.Context, userID string, req ticket.CreateTicketRequest) (ticket.Ticket, error) {
	t := ticket.NewFromCreateRequest(userID, req)

	err := r.observe("tickets.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO support_tickets (id, user_id, subject, message, status, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			t.ID, t.UserID, t.Subject, t.Message, t.Status, t.CreatedAt, t.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return ticket.Ticket{}, err
	}

	return t, nil
}

const ticketColumns = `t.id, t.user_id, t.subject, t.message, t.status, t.created_at, t.updated_at`

// ListByUser returns the caller's tickets, newest first, replies
// embedded in order.
func (r *TicketsRepo) ListByUser(ctx context.Context, userID string) ([]ticket.Ticket, error) {
	var out []ticket.Ticket

	err := r.observe("tickets.list_by_user", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+ticketColumns+` FROM support_tickets t WHERE t.user_id = $1 ORDER BY t.created_at DESC`,
			userID,
		)

		if err != nil {
			return err
		}

		tickets, err := collectTickets(rows)

		if err != nil {
			return err
		}

		out, err = r.attachReplies(ctx, tickets)
		return err
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// GetForUser is owner-scoped: a ticket owned by someone else reads as
// absent.
func (r *TicketsRepo) GetForUser(ctx context.Context, id, userID string) (ticket.Ticket, error) {
	var out ticket.Ticket

	err := r.observe("tickets.get_for_user", func() error {
		row := r.pool.QueryRow(ctx,
			`SELECT `+ticketColumns+` FROM support_tickets t WHERE t.id = $1 AND t.user_id = $2`,
			id, userID,
		)

		t, err := scanTicket(row)

		if err != nil {
			return err
		}

		withReplies, err := r.attachReplies(ctx, []ticket.Ticket{t})

		if err != nil {
			return err
		}

		out = withReplies[0]
		return nil
	})

	if err != nil {
		return ticket.Ticket{}, err
	}

	return out, nil
}

// ListAll is the admin queue: every ticket with the requester summary.
func (r *TicketsRepo) ListAll(ctx context.Context) ([]ticket.Ticket, error) {
	var out []ticket.Ticket

	err := r.observe("tickets.list_all", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+ticketColumns+`, u.id, u.name, u.email
			 FROM support_tickets t
			 JOIN users u ON u.id = t.user_id
			 ORDER BY t.created_at DESC`,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		tickets := make([]ticket.Ticket, 0)

		for rows.Next() {
			var t ticket.Ticket
			var requester user.Summary

			err = rows.Scan(
				&t.ID, &t.UserID, &t.Subject, &t.Message, &t.Status, &t.CreatedAt, &t.UpdatedAt,
				&requester.ID, &requester.Name, &requester.Email,
			)

			if err != nil {
				return err
			}

			t.Requester = &requester
			t.Replies = []ticket.Reply{}
			tickets = append(tickets, t)
		}

		if err = rows.Err(); err != nil {
			return err
		}

		out, err = r.attachReplies(ctx, tickets)
		return err
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *TicketsRepo) GetByID(ctx context.Context, id string) (ticket.Ticket, error) {
	var out ticket.Ticket

	err := r.observe("tickets.get_by_id", func() error {
		var t ticket.Ticket
		var requester user.Summary

		err := r.pool.QueryRow(ctx,
			`SELECT `+ticketColumns+`, u.id, u.name, u.email
			 FROM support_tickets t
			 JOIN users u ON u.id = t.user_id
			 WHERE t.id = $1`,
			id,
		).Scan(
			&t.ID, &t.UserID, &t.Subject, &t.Message, &t.Status, &t.CreatedAt, &t.UpdatedAt,
			&requester.ID, &requester.Name, &requester.Email,
		)

		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ticket.ErrNotFound
			}
			return err
		}

		t.Requester = &requester
		t.Replies = []ticket.Reply{}

		withReplies, err := r.attachReplies(ctx, []ticket.Ticket{t})

		if err != nil {
			return err
		}

		out = withReplies[0]
		return nil
	})

	if err != nil {
		return ticket.Ticket{}, err
	}

	return out, nil
}

// AppendReplyTx appends a reply inside tx. Only open tickets accept
// replies; the open check and the updated_at bump share one UPDATE.
func (r *TicketsRepo) AppendReplyTx(ctx context.Context, tx pgx.Tx, ticketID string, reply ticket.Reply) error {
	tag, err := tx.Exec(ctx,
		`UPDATE support_tickets SET updated_at = $1 WHERE id = $2 AND status = $3`,
		reply.CreatedAt, ticketID, ticket.StatusOpen,
	)

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		var status string

		err = tx.QueryRow(ctx, `SELECT status FROM support_tickets WHERE id = $1`, ticketID).Scan(&status)

		if errors.Is(err, pgx.ErrNoRows) {
			return ticket.ErrNotFound
		}

		if err != nil {
			return err
		}

		return ticket.ErrClosed
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO support_replies (id, ticket_id, sender_id, message, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		reply.ID, ticketID, reply.SenderID, reply.Message, reply.CreatedAt,
	)

	return err
}

// Close transitions an open ticket to closed.
func (r *TicketsRepo) Close(ctx context.Context, id string) (ticket.Ticket, error) {
	err := r.observe("tickets.close", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE support_tickets SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
			ticket.StatusClosed, time.Now().UTC(), id, ticket.StatusOpen,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			var status string

			err = r.pool.QueryRow(ctx, `SELECT status FROM support_tickets WHERE id = $1`, id).Scan(&status)

			if errors.Is(err, pgx.ErrNoRows) {
				return ticket.ErrNotFound
			}

			if err != nil {
				return err
			}

			return ticket.ErrClosed
		}

		return nil
	})

	if err != nil {
		return ticket.Ticket{}, err
	}

	return r.GetByID(ctx, id)
}

func scanTicket(row pgx.Row) (ticket.Ticket, error) {
	var t ticket.Ticket

	err := row.Scan(&t.ID, &t.UserID, &t.Subject, &t.Message, &t.Status, &t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ticket.Ticket{}, ticket.ErrNotFound
		}

		return ticket.Ticket{}, err
	}

	t.Replies = []ticket.Reply{}
	return t, nil
}

func collectTickets(rows pgx.Rows) ([]ticket.Ticket, error) {
	defer rows.Close()

	out := make([]ticket.Ticket, 0)

	for rows.Next() {
		t, err := scanTicket(rows)

		if err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, rows.Err()
}

// attachReplies loads the ordered reply lists for a batch of tickets in
// one query.
func (r *TicketsRepo) attachReplies(ctx context.Context, tickets []ticket.Ticket) ([]ticket.Ticket, error) {
	if len(tickets) == 0 {
		return tickets, nil
	}

	ids := make([]string, 0, len(tickets))
	byID := make(map[string]int, len(tickets))

	for i, t := range tickets {
		ids = append(ids, t.ID)
		byID[t.ID] = i
	}

	rows, err := r.pool.Query(ctx,
		`SELECT rp.id, rp.ticket_id, rp.sender_id, rp.message, rp.created_at, u.id, u.name, u.email
		 FROM support_replies rp
		 JOIN users u ON u.id = rp.sender_id
		 WHERE rp.ticket_id = ANY($1)
		 ORDER BY rp.created_at ASC, rp.id ASC`,
		ids,
	)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var rep ticket.Reply
		var ticketID string
		var sender user.Summary

		err = rows.Scan(&rep.ID, &ticketID, &rep.SenderID, &rep.Message, &rep.CreatedAt,
			&sender.ID, &sender.Name, &sender.Email)

		if err != nil {
			return nil, err
		}

		rep.Sender = &sender

		if i, ok := byID[ticketID]; ok {
			tickets[i].Replies = append(tickets[i].Replies, rep)
		}
	}

	return tickets, rows.Err()
}
