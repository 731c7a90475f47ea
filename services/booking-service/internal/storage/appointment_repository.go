package storage

import (
	"context"

	"github.com/calbook/calbook/libs/db"
	"github.com/calbook/calbook/services/booking-service/internal/model"
	"github.com/calbook/calbook/services/booking-service/internal/outbox"
	"github.com/jackc/pgx/v5"
)

type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, ob *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: ob}
}

// Create inserts a confirmed appointment and its outbox event atomically.
// A second confirmed row for the same seller and start time is rejected
// with model.ErrSlotTaken.
func (r *AppointmentRepository) Create(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO appointments
				(title, description, start_time, end_time, seller_id, buyer_id, status, google_event_id, meeting_link)
			VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''))
			RETURNING id::text, created_at
		`, appt.Title, appt.Description, appt.StartTime, appt.EndTime, appt.SellerID, appt.BuyerID,
			appt.Status, appt.GoogleEventID, appt.MeetingLink).Scan(&appt.ID, &appt.CreatedAt)
		if err != nil {
			return err
		}

		evt, err := outbox.AppointmentConfirmed(appt)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if IsConflict(err) {
		return model.Appointment{}, model.ErrSlotTaken
	}
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// ListByParticipant returns appointments where userID is seller or buyer,
// earliest first, with both participants attached.
func (r *AppointmentRepository) ListByParticipant(ctx context.Context, userID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id::text, a.title, COALESCE(a.description, ''), a.start_time, a.end_time,
			a.seller_id, a.buyer_id, a.status, COALESCE(a.google_event_id, ''), COALESCE(a.meeting_link, ''), a.created_at,
			s.id, COALESCE(s.name, ''), COALESCE(s.email, ''), COALESCE(s.image, ''),
			b.id, COALESCE(b.name, ''), COALESCE(b.email, ''), COALESCE(b.image, '')
		FROM appointments a
		JOIN users s ON s.id = a.seller_id
		JOIN users b ON b.id = a.buyer_id
		WHERE a.seller_id = $1 OR a.buyer_id = $1
		ORDER BY a.start_time ASC, a.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appts := []model.Appointment{}
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Description, &a.StartTime, &a.EndTime,
			&a.SellerID, &a.BuyerID, &a.Status, &a.GoogleEventID, &a.MeetingLink, &a.CreatedAt,
			&a.Seller.ID, &a.Seller.Name, &a.Seller.Email, &a.Seller.Image,
			&a.Buyer.ID, &a.Buyer.Name, &a.Buyer.Email, &a.Buyer.Image,
		); err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}
