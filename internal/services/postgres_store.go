package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"qwikchat/internal/models"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresStore is the pgx backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateUser(ctx context.Context, username, phone string) (*models.User, error) {
	user := models.User{ID: uuid.New().String(), Username: username, Phone: phone}
	query := `INSERT INTO users (id, username, phone) VALUES ($1, $2, $3) RETURNING created_at`
	err := s.pool.QueryRow(ctx, query, user.ID, username, phone).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, phone, created_at FROM users WHERE phone = $1`
	err := s.pool.QueryRow(ctx, query, phone).Scan(&user.ID, &user.Username, &user.Phone, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username, phone, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Phone, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) CreateRoom(ctx context.Context, name string, participantIDs []string) (*models.Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	room := models.Room{
		ID:             uuid.New().String(),
		Name:           name,
		ParticipantIDs: strings.Join(participantIDs, ","),
	}
	err = tx.QueryRow(ctx, `INSERT INTO rooms (id, name) VALUES ($1, $2) RETURNING created_at`, room.ID, name).
		Scan(&room.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, userID := range participantIDs {
		_, err = tx.Exec(ctx, `INSERT INTO room_participants (room_id, user_id) VALUES ($1, $2)`, room.ID, userID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
				return nil, ErrNotFound
			}
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *PostgresStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	query := `
		SELECT r.id, r.name, r.last_message, r.created_at,
		       COALESCE(string_agg(p.user_id, ',' ORDER BY p.user_id), '')
		FROM rooms r
		LEFT JOIN room_participants p ON p.room_id = r.id
		WHERE r.id = $1
		GROUP BY r.id
	`
	var room models.Room
	err := s.pool.QueryRow(ctx, query, roomID).
		Scan(&room.ID, &room.Name, &room.LastMessage, &room.CreatedAt, &room.ParticipantIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *PostgresStore) FindDirectRoom(ctx context.Context, a, b string) (*models.Room, error) {
	query := `
		SELECT r.id
		FROM rooms r
		JOIN room_participants p1 ON r.id = p1.room_id
		JOIN room_participants p2 ON r.id = p2.room_id
		WHERE p1.user_id = $1
		AND p2.user_id = $2
		AND (SELECT count(*) FROM room_participants p WHERE p.room_id = r.id) = 2
		LIMIT 1
	`
	var roomID string
	err := s.pool.QueryRow(ctx, query, a, b).Scan(&roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.GetRoom(ctx, roomID)
}

func (s *PostgresStore) ListRooms(ctx context.Context, userID string) ([]models.RoomMembership, error) {
	query := `
		SELECT r.id, r.name, r.last_message, r.created_at,
		       u.id, u.username, u.phone, u.created_at
		FROM rooms r
		JOIN room_participants p ON p.room_id = r.id
		JOIN users u ON u.id = p.user_id
		WHERE $1::text = ''
		   OR r.id IN (SELECT room_id FROM room_participants WHERE user_id = $1::text)
		ORDER BY r.created_at DESC, r.id, u.id
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []models.RoomMembership{}
	for rows.Next() {
		var r models.Room
		var u models.User
		if err := rows.Scan(&r.ID, &r.Name, &r.LastMessage, &r.CreatedAt,
			&u.ID, &u.Username, &u.Phone, &u.CreatedAt); err != nil {
			return nil, err
		}
		if n := len(rooms); n == 0 || rooms[n-1].Room.ID != r.ID {
			rooms = append(rooms, models.RoomMembership{Room: r})
		}
		last := &rooms[len(rooms)-1]
		last.Users = append(last.Users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range rooms {
		ids := make([]string, len(rooms[i].Users))
		for j, u := range rooms[i].Users {
			ids[j] = u.ID
		}
		rooms[i].Room.ParticipantIDs = strings.Join(ids, ",")
	}
	return rooms, nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var id int64
	query := `INSERT INTO messages (room_id, user_id, content, client_id) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	if err := tx.QueryRow(ctx, query, msg.RoomID, msg.UserID, msg.Content, msg.ClientID).Scan(&id, &msg.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrNotFound
		}
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE rooms SET last_message = $2 WHERE id = $1`, msg.RoomID, msg.Content); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	msg.ID = strconv.FormatInt(id, 10)
	return nil
}

func (s *PostgresStore) GetRecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	query := `SELECT id, room_id, user_id, content, client_id, created_at FROM messages WHERE room_id = $1 ORDER BY id DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		var id int64
		if err := rows.Scan(&id, &msg.RoomID, &msg.UserID, &msg.Content, &msg.ClientID, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.ID = strconv.FormatInt(id, 10)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
