package repo

import (
	configs "fake_api_server/internal/infra/config"
	"fake_api_server/internal/infra/storage"

	"github.com/google/wire"
)

var Reposet = wire.NewSet(
	configs.NewRuleRepoConfig,
	storage.StorageSet,
	NewRuleRepoImpl,
)
