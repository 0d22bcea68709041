package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dm-service/internal/history"
	"dm-service/internal/models"
	"dm-service/internal/outbound"
	"dm-service/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Record(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepositoryMock) HistoryPage(ctx context.Context, localID, peerID, limit int, before int64) ([]models.Message, error) {
	args := m.Called(ctx, localID, peerID, limit, before)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type PeerRepositoryMock struct {
	mock.Mock
}

func (m *PeerRepositoryMock) ListPeers(ctx context.Context, userID int) ([]models.Peer, error) {
	args := m.Called(ctx, userID)
	var peers []models.Peer
	if val := args.Get(0); val != nil {
		peers = val.([]models.Peer)
	}
	return peers, args.Error(1)
}

func (m *PeerRepositoryMock) GetUser(ctx context.Context, userID int) (models.Peer, error) {
	args := m.Called(ctx, userID)
	var peer models.Peer
	if val := args.Get(0); val != nil {
		peer = val.(models.Peer)
	}
	return peer, args.Error(1)
}

func (m *PeerRepositoryMock) FindOrCreateUser(ctx context.Context, username string) (models.Peer, error) {
	args := m.Called(ctx, username)
	var peer models.Peer
	if val := args.Get(0); val != nil {
		peer = val.(models.Peer)
	}
	return peer, args.Error(1)
}

type FetcherMock struct {
	mock.Mock
}

func (m *FetcherMock) FetchPage(ctx context.Context, localID, peerID, limit int, before int64) ([]models.Message, error) {
	args := m.Called(ctx, localID, peerID, limit, before)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type RecorderMock struct {
	mock.Mock
}

func (m *RecorderMock) Record(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.PeerRepository = (*PeerRepositoryMock)(nil)
var _ history.Fetcher = (*FetcherMock)(nil)
var _ outbound.Recorder = (*RecorderMock)(nil)
