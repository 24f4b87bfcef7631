package http_mock_app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"fake_api_server/internal/domain/iface"
	"fake_api_server/internal/domain/registry"
	"fake_api_server/internal/domain/services"
	configs "fake_api_server/internal/infra/config"
	"fake_api_server/utils"

	"github.com/sirupsen/logrus"
)

// Server 进程生命周期：装载路由、对外服务、探活、优雅退出
type Server struct {
	config      *configs.AppConfig
	handler     http.Handler
	ruleService iface.RuleService
	prober      *services.LivenessProber
	routes      *registry.RouteRegistry
}

func NewServer(c *configs.AppConfig, handler http.Handler, ruleService iface.RuleService, prober *services.LivenessProber, routes *registry.RouteRegistry) *Server {
	return &Server{
		config:      c,
		handler:     handler,
		ruleService: ruleService,
		prober:      prober,
		routes:      routes,
	}
}

func (s *Server) Handler() http.Handler { return s.handler }

// Run 阻塞直到 ctx 取消或监听失败
func (s *Server) Run(ctx context.Context) error {
	log := utils.GetLogger()

	installed, err := s.ruleService.LoadRoutes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load routes: %w", err)
	}

	ln, err := net.Listen("tcp", s.config.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr, err)
	}

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	probeCtx, stopProbe := context.WithCancel(ctx)
	defer stopProbe()
	var wg sync.WaitGroup
	if s.config.LivenessConfig.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.prober.Run(probeCtx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":         ln.Addr().String(),
			"routes":       installed,
			"admin_prefix": s.config.Server.AdminPrefix,
		}).Info("fake api server listening")
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		stopProbe()
		wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	stopProbe()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	wg.Wait()
	s.routes.Clear()
	if err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	log.Info("server stopped")
	return nil
}
