//go:build wireinject
// +build wireinject

package http_mock_app

import (
	configs "fake_api_server/internal/infra/config"

	"github.com/google/wire"
)

func InitializeServer(c *configs.AppConfig) (*Server, func(), error) {
	wire.Build(AppSet)
	return nil, nil, nil
}
