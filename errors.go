package mirror

import "errors"

var (
	ErrNotReady                 = errors.New("gateway connection not ready")
	ErrClosed                   = errors.New("gateway connection closed")
	ErrConnectFailed            = errors.New("gateway connect failed")
	ErrInvalidHeartbeatInterval = errors.New("invalid heartbeat interval")

	ErrNoGatewayHandler  = errors.New("no gateway handler found")
	ErrNoDispatchHandler = errors.New("no dispatch handler found")

	ErrMissingToken    = errors.New("missing token")
	ErrMissingConsumer = errors.New("missing consumer")
	ErrMissingREST     = errors.New("missing rest client")

	ErrUnexpectedStatus = errors.New("unexpected status code")

	ErrReadConfigurationFailure = errors.New("failed to read configuration")
	ErrLoadConfigurationFailure = errors.New("failed to load configuration")
)
