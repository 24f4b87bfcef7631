package services

import (
	"fake_api_server/internal/domain/iface"

	"github.com/google/wire"
)

var ServiceSet = wire.NewSet(
	NewSequenceStore,
	NewResponseSynthesizer,
	wire.Bind(new(ResponseSynthesizerIface), new(*ResponseSynthesizer)),
	NewRequestRecorder,
	wire.Bind(new(RequestRecorderIface), new(*RequestRecorder)),
	wire.Bind(new(iface.RequestLogService), new(*RequestRecorder)),
	NewMockHandlerFactory,
	NewRuleManageService,
	wire.Bind(new(iface.RuleService), new(*RuleManageService)),
	NewLivenessProber,
	wire.Bind(new(iface.LivenessService), new(*LivenessProber)),
)
