package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"dm-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// PeerRepository is the peer directory: the users a client may address.
type PeerRepository interface {
	ListPeers(ctx context.Context, userID int) ([]models.Peer, error)
	GetUser(ctx context.Context, userID int) (models.Peer, error)
	FindOrCreateUser(ctx context.Context, username string) (models.Peer, error)
}

// PeerRepo is a sqlx implementation of PeerRepository.
type PeerRepo struct {
	db *sqlx.DB
}

// NewPeerRepo constructs a PeerRepo.
func NewPeerRepo(db *sqlx.DB) *PeerRepo {
	return &PeerRepo{db: db}
}

// ListPeers returns every other known user, ordered by name.
func (r *PeerRepo) ListPeers(ctx context.Context, userID int) ([]models.Peer, error) {
	var peers []models.Peer
	err := r.db.SelectContext(ctx, &peers,
		`SELECT id, username FROM users WHERE id <> $1 ORDER BY username ASC`, userID)
	return peers, err
}

// GetUser fetches one user by id.
func (r *PeerRepo) GetUser(ctx context.Context, userID int) (models.Peer, error) {
	var peer models.Peer
	err := r.db.GetContext(ctx, &peer, `SELECT id, username FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Peer{}, ErrUserNotFound
	}
	return peer, err
}

// FindOrCreateUser resolves a username to a user row, creating it on first
// login.
func (r *PeerRepo) FindOrCreateUser(ctx context.Context, username string) (models.Peer, error) {
	var peer models.Peer
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (username) VALUES ($1)
         ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
         RETURNING id, username`, username).
		Scan(&peer.ID, &peer.Username)
	return peer, err
}
