// Package bridge exposes the tool engine over HTTP for non-Go clients:
// tool listing, direct execution, health and Prometheus metrics.
package bridge

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"conduit/internal/dispatcher"
	"conduit/internal/logging"
	"conduit/internal/observability"
	"conduit/internal/ports"
	"conduit/internal/toolregistry"
)

const executeTimeout = 30 * time.Second

// Options wires the bridge collaborators.
type Options struct {
	Registry   *toolregistry.Registry
	Dispatcher *dispatcher.Dispatcher
	Metrics    *observability.Metrics
	Logger     logging.Logger
}

// Bridge is the HTTP face of the engine.
type Bridge struct {
	registry   *toolregistry.Registry
	dispatcher *dispatcher.Dispatcher
	metrics    *observability.Metrics
	log        logging.Logger
	engine     *gin.Engine
}

type executeRequest struct {
	ToolName string         `json:"tool_name" binding:"required"`
	Params   map[string]any `json:"params"`
}

type executeResponse struct {
	Success       bool   `json:"success"`
	Result        string `json:"result"`
	Message       string `json:"message,omitempty"`
	ExecutionTime string `json:"execution_time"`
	Server        string `json:"server"`
	Tool          string `json:"tool"`
}

// New builds the bridge and its routes.
func New(opts Options) *Bridge {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	b := &Bridge{
		registry:   opts.Registry,
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		log:        logging.OrNop(opts.Logger),
		engine:     engine,
	}

	engine.GET("/tools", b.handleTools)
	engine.GET("/servers", b.handleServers)
	engine.POST("/execute", b.handleExecute)
	engine.GET("/health", b.handleHealth)
	engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	return b
}

// Handler returns the underlying HTTP handler, primarily for tests.
func (b *Bridge) Handler() http.Handler { return b.engine }

// Run serves until the listener fails or the context is cancelled.
func (b *Bridge) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: b.engine}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	b.log.Info("bridge listening on %s", addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (b *Bridge) handleTools(c *gin.Context) {
	defs := b.registry.Definitions()
	c.JSON(http.StatusOK, gin.H{"tools": defs, "count": len(defs)})
}

func (b *Bridge) handleServers(c *gin.Context) {
	counts := b.registry.ProviderCounts()
	total := 0
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"servers":     counts,
		"total_tools": total,
		"count":       len(counts),
	})
}

func (b *Bridge) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	entry, err := b.registry.Get(req.ToolName)
	if err != nil {
		c.JSON(http.StatusOK, executeResponse{
			Success: false,
			Message: fmt.Sprintf("unknown tool %q", req.ToolName),
			Tool:    req.ToolName,
		})
		return
	}

	timeout := executeTimeout
	if t := entry.Meta.Timeout; t > 0 && t < timeout {
		timeout = t
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	started := time.Now()
	result := b.dispatcher.Dispatch(ctx, entry.QualifiedName, req.Params)
	resp := executeResponse{
		Success:       result.Kind != ports.ResultError,
		Result:        result.Content,
		Message:       result.Message,
		ExecutionTime: time.Since(started).Round(time.Millisecond).String(),
		Server:        entry.Provider,
		Tool:          entry.QualifiedName,
	}
	if !resp.Success && resp.Message == "" && result.Error != nil {
		resp.Message = result.Error.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (b *Bridge) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"servers":   len(b.registry.ProviderCounts()),
		"tools":     b.registry.Size(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
