package api

import (
	"github.com/zhouzhouyin/lifetrace/internal/archive"
	"github.com/zhouzhouyin/lifetrace/internal/config"
	"github.com/zhouzhouyin/lifetrace/internal/database"
	"github.com/zhouzhouyin/lifetrace/internal/storage"
	"github.com/zhouzhouyin/lifetrace/internal/websocket"
)

type Server struct {
	config   *config.Config
	store    *database.PostgresStore
	media    *storage.LocalStorage
	archiver *archive.Presigner
	wsHub    *websocket.Hub
}

func NewServer(cfg *config.Config, store *database.PostgresStore, media *storage.LocalStorage, archiver *archive.Presigner, wsHub *websocket.Hub) *Server {
	return &Server{
		config:   cfg,
		store:    store,
		media:    media,
		archiver: archiver,
		wsHub:    wsHub,
	}
}
