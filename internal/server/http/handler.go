package http

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/processor"
	"arcade/internal/server/service"
)

const rateLimitRate = 10 // req/sec

// HTTPHandler handles HTTP requests and routes them to the processor
type HTTPHandler struct {
	proc *processor.Processor
	svc  *service.Service
}

func NewHTTPHandler(proc *processor.Processor, svc *service.Service) *HTTPHandler {
	return &HTTPHandler{proc: proc, svc: svc}
}

// Options tunes the API app
type Options struct {
	DevMode bool
	// RateLimit is requests per second per client; zero uses the default
	RateLimit int
}

func NewFiberApp(proc *processor.Processor, svc *service.Service, validateToken TokenValidator, opts Options) *fiber.App {
	h := NewHTTPHandler(proc, svc)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: service.WaitTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	})

	// Global middleware (order matters)
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check (no rate limit, no auth)
	app.Get("/health", h.Health)

	api := app.Group("/api/v1")

	maxReq := rateLimitRate
	if opts.RateLimit > 0 {
		maxReq = opts.RateLimit
	}
	if opts.DevMode {
		maxReq *= 2
	}
	api.Use(limiter.New(limiter.Config{
		Max:        maxReq,
		Expiration: 1 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			if xff := c.Get("X-Forwarded-For"); xff != "" {
				if idx := strings.Index(xff, ","); idx != -1 {
					return strings.TrimSpace(xff[:idx])
				}
				return xff
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.ErrRateLimitExceeded,
				Details: fmt.Sprintf("%d requests per second allowed", maxReq),
			})
		},
	}))

	api.Use(contentTypeValidator)
	api.Use(AuthRequired(validateToken))
	api.Use(validationMiddleware)

	api.Post("/games", h.CreateGame)
	api.Get("/games", h.ListGames)
	api.Get("/games/:gameId", h.GetGame)
	api.Post("/games/:gameId/accept", h.AcceptGame)
	api.Post("/games/:gameId/decline", h.DeclineGame)
	api.Post("/games/:gameId/moves", h.MakeMove)
	api.Get("/games/:gameId/moves", h.GetMoves)
	api.Get("/games/:gameId/board", h.GetBoard)
	api.Get("/stats", h.GetStats)

	return app
}

// contentTypeValidator ensures POST bodies are JSON
func contentTypeValidator(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		contentType := c.Get("Content-Type")
		if contentType != "" && !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(core.ErrorResponse{
				Error:   "unsupported media type",
				Code:    core.ErrInvalidContent,
				Details: "Content-Type must be application/json",
			})
		}
	}
	return c.Next()
}

// customErrorHandler provides consistent error responses
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.ErrInternalError,
	}

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		response.Error = e.Message

		switch code {
		case fiber.StatusNotFound:
			response.Code = core.ErrInvalidRequest
			response.Details = "no such route"
		case fiber.StatusBadRequest:
			response.Code = core.ErrInvalidRequest
		case fiber.StatusTooManyRequests:
			response.Code = core.ErrRateLimitExceeded
		}
	}

	return c.Status(code).JSON(response)
}

// statusFor maps an error code to its HTTP status
func statusFor(code string) int {
	switch code {
	case core.ErrGameNotFound:
		return fiber.StatusNotFound
	case core.ErrNotEligible:
		return fiber.StatusForbidden
	case core.ErrConflict, core.ErrAlreadyResolved:
		return fiber.StatusConflict
	case core.ErrUnauthorized:
		return fiber.StatusUnauthorized
	case core.ErrInternalError:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusBadRequest
	}
}

// respond writes a processor response with the given success status
func respond(c *fiber.Ctx, resp processor.ProcessorResponse, okStatus int) error {
	if !resp.Success {
		return c.Status(statusFor(resp.Error.Code)).JSON(resp.Error)
	}
	return c.Status(okStatus).JSON(resp.Data)
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}

func invalidGameID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
		Error:   "invalid game ID format",
		Code:    core.ErrInvalidRequest,
		Details: "game ID must be a valid UUID",
	})
}

func bypassDetected(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
		Error: "validation bypass detected",
		Code:  core.ErrInternalError,
	})
}

// Health reports storage and realtime status
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"time":     time.Now().Unix(),
		"storage":  h.svc.GetStorageHealth(),
		"realtime": h.svc.GetRealtimeHealth(c.UserContext()),
	})
}

// CreateGame sends an invitation from the caller
func (h *HTTPHandler) CreateGame(c *fiber.Ctx) error {
	req, ok := validatedBody[core.CreateGameRequest](c)
	if !ok {
		return bypassDetected(c)
	}

	resp := h.proc.Execute(c.UserContext(), processor.NewCreateGameCommand(userID(c), req))
	return respond(c, resp, fiber.StatusCreated)
}

// ListGames returns the caller's games, optionally filtered by a comma
// separated status list
func (h *HTTPHandler) ListGames(c *fiber.Ctx) error {
	var statuses []core.Status
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, core.Status(strings.TrimSpace(s)))
		}
	}

	resp := h.proc.Execute(c.UserContext(), processor.NewListGamesCommand(userID(c), statuses...))
	return respond(c, resp, fiber.StatusOK)
}

// GetGame returns the current game state. With wait=true it long-polls
// until the game's updatedAt differs from since.
func (h *HTTPHandler) GetGame(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return invalidGameID(c)
	}

	if c.Query("wait", "false") != "true" {
		resp := h.proc.Execute(c.UserContext(), processor.NewGetGameCommand(gameID))
		return respond(c, resp, fiber.StatusOK)
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		var err error
		since, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
				Error:   "invalid since parameter",
				Code:    core.ErrInvalidRequest,
				Details: "since must be an RFC 3339 timestamp",
			})
		}
	}

	// Register before reading so a change between the two is not missed.
	// A wake that still shows since re-parks until the deadline.
	reqCtx := c.Context()
	ctx, cancel := context.WithTimeout(reqCtx, service.WaitTimeout)
	defer cancel()
	for {
		notify := h.svc.RegisterWait(ctx, gameID, since)

		resp := h.proc.Execute(c.UserContext(), processor.NewGetGameCommand(gameID))
		if !resp.Success {
			return respond(c, resp, fiber.StatusOK)
		}
		current, ok := resp.Data.(*game.Game)
		if !ok || !current.UpdatedAt.Equal(since) {
			return respond(c, resp, fiber.StatusOK)
		}

		<-notify

		if reqCtx.Err() != nil {
			return nil
		}
		if ctx.Err() != nil || h.svc.Draining() {
			resp = h.proc.Execute(c.UserContext(), processor.NewGetGameCommand(gameID))
			return respond(c, resp, fiber.StatusOK)
		}
	}
}

// AcceptGame seats the caller in a pending game
func (h *HTTPHandler) AcceptGame(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return invalidGameID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewAcceptGameCommand(userID(c), gameID))
	return respond(c, resp, fiber.StatusOK)
}

// DeclineGame declines or withdraws a pending invitation
func (h *HTTPHandler) DeclineGame(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return invalidGameID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewDeclineGameCommand(userID(c), gameID))
	return respond(c, resp, fiber.StatusOK)
}

// MakeMove submits a move for the caller
func (h *HTTPHandler) MakeMove(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return invalidGameID(c)
	}

	req, ok := validatedBody[core.MoveRequest](c)
	if !ok {
		return bypassDetected(c)
	}

	resp := h.proc.Execute(c.UserContext(), processor.NewMakeMoveCommand(userID(c), gameID, req))
	return respond(c, resp, fiber.StatusOK)
}

// GetMoves returns the move history
func (h *HTTPHandler) GetMoves(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return invalidGameID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewGetMovesCommand(gameID))
	return respond(c, resp, fiber.StatusOK)
}

// GetBoard returns ASCII representation of the board
func (h *HTTPHandler) GetBoard(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return invalidGameID(c)
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewGetBoardCommand(gameID))
	return respond(c, resp, fiber.StatusOK)
}

// GetStats returns the caller's results per game type
func (h *HTTPHandler) GetStats(c *fiber.Ctx) error {
	resp := h.proc.Execute(c.UserContext(), processor.NewGetStatsCommand(userID(c)))
	return respond(c, resp, fiber.StatusOK)
}
