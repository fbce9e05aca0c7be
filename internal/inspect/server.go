// Package inspect отдаёт по HTTP (только чтение) то, что сейчас лежит в
// кэшах клиента и в архиве.
package inspect

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"example.com/blacket/internal/archive"
	"example.com/blacket/pkg/blacket"
)

// Server: gin поверх клиента. Архив необязателен.
type Server struct {
	c       *blacket.Client
	archive archive.Store
	log     *zap.Logger
	router  *gin.Engine
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func New(c *blacket.Client, store archive.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{c: c, archive: store, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests)

	r.GET("/healthz", s.handleHealth)
	r.GET("/me", s.handleMe)
	r.GET("/users/:id", s.handleUser)
	r.GET("/clans/:id", s.handleClan)
	r.GET("/rooms", s.handleRooms)
	r.GET("/messages/:id", s.handleMessage)
	r.GET("/booster", s.handleBooster)
	r.GET("/archive/rooms/:id/messages", s.handleArchive)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe держит сервер до отмены ctx.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("inspect listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debug("inspect request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("took", time.Since(start)))
}

func respondError(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, errorResponse{Error: msg, Code: code})
}

// fail переводит ошибку клиента в HTTP-статус.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, blacket.ErrNotReady):
		respondError(c, http.StatusServiceUnavailable, "client is not ready")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondError(c, http.StatusGatewayTimeout, err.Error())
	default:
		s.log.Warn("inspect upstream error", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusBadGateway, err.Error())
	}
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func force(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("force"))
	return v
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":     s.c.State().String(),
		"connected": s.c.IsConnected(),
		"users":     len(s.c.Users.Values()),
		"clans":     len(s.c.Clans.Values()),
		"messages":  s.c.Messages.Len(),
		"archive":   s.archive != nil,
	})
}

func (s *Server) handleMe(c *gin.Context) {
	me, err := s.c.Users.Me(c.Request.Context(), force(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newPrivateUserView(me))
}

func (s *Server) handleUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	u, err := s.c.Users.Fetch(c.Request.Context(), id, force(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if u == nil {
		respondError(c, http.StatusNotFound, "user not found")
		return
	}
	c.JSON(http.StatusOK, newUserView(u))
}

func (s *Server) handleClan(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	cl, err := s.c.Clans.Fetch(c.Request.Context(), id, force(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if cl == nil {
		respondError(c, http.StatusNotFound, "clan not found")
		return
	}
	c.JSON(http.StatusOK, newClanView(cl))
}

func (s *Server) handleRooms(c *gin.Context) {
	rooms := s.c.Rooms.Values()
	out := make([]roomView, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomView{ID: r.ID, Name: r.Name, Pending: r.Pending()})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleMessage(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	m := s.c.Messages.Get(id)
	if m == nil {
		respondError(c, http.StatusNotFound, "message not cached")
		return
	}
	c.JSON(http.StatusOK, newMessageView(m))
}

func (s *Server) handleBooster(c *gin.Context) {
	b, err := s.c.Data.Booster(c.Request.Context(), force(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newBoosterView(b))
}

func (s *Server) handleArchive(c *gin.Context) {
	if s.archive == nil {
		respondError(c, http.StatusNotFound, "archive disabled")
		return
	}
	room, ok := paramID(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		respondError(c, http.StatusBadRequest, "limit must be in 1..500")
		return
	}
	list, err := s.archive.RecentMessages(c.Request.Context(), room, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]archivedView, 0, len(list))
	for _, r := range list {
		out = append(out, newArchivedView(r))
	}
	c.JSON(http.StatusOK, out)
}
