package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"transit-observer/src/logger"
	"transit-observer/src/models"
	"transit-observer/src/prediction"
	"transit-observer/src/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

type Server struct {
	Config *models.MConfig
	Logger *logger.Logger
	Hub    *BroadcastHub
	engine *gin.Engine

	locations  *store.LiveLocationStore
	predictor  *prediction.Engine
	metricsWeb http.Handler
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewServer(cfg *models.MConfig, log *logger.Logger, hub *BroadcastHub, locations *store.LiveLocationStore, predictor *prediction.Engine, metricsHandler http.Handler) *Server {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Config:     cfg,
		Logger:     log,
		Hub:        hub,
		engine:     gin.Default(),
		locations:  locations,
		predictor:  predictor,
		metricsWeb: metricsHandler,
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/snapshot", s.getSnapshot)
	s.engine.GET("/api/predictions/:routeID/:busID", s.getPredictions)

	// Prometheus endpoint
	if s.metricsWeb != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metricsWeb))
	}

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":          "ok",
		"connections":     s.Hub.SubscriberCount(),
		"active_vehicles": s.locations.Len(),
		"timestamp":       time.Now(),
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getSnapshot(c *gin.Context) {
	c.JSON(200, models.MLatestData{
		Type:         "update",
		Timestamp:    time.Now(),
		BusLocations: s.locations.ActiveSnapshot(),
		Predictions:  s.predictor.CachedSnapshot(),
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getPredictions(c *gin.Context) {
	routeID, err := strconv.Atoi(c.Param("routeID"))
	if err != nil {
		c.JSON(400, gin.H{"error": "routeID must be numeric"})
		return
	}
	busID, err := strconv.Atoi(c.Param("busID"))
	if err != nil {
		c.JSON(400, gin.H{"error": "busID must be numeric"})
		return
	}

	predictions := s.predictor.Predict(routeID, busID)
	if predictions == nil {
		predictions = []models.MArrivalPrediction{}
	}
	c.JSON(200, gin.H{
		"route_id":    routeID,
		"bus_id":      busID,
		"predictions": predictions,
	})
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s.Hub,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan interface{}, sendBufferSize),
		done: make(chan struct{}),
	}

	// Start goroutines for reading/writing, then hand the client to the hub
	go client.writePump()
	go client.readPump()

	s.Hub.Register(client)
}
